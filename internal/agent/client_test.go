package agent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fieldvision/fieldvision/internal/agent"
	"github.com/fieldvision/fieldvision/internal/mocks"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHTTPClient_FetchPending tests the authenticated pull of the pending
// command list.
func TestHTTPClient_FetchPending(t *testing.T) {
	// Setup
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(models.PendingCommandsResponse{
			Commands: []models.PendingCommand{
				{ID: "cmd-1", TargetID: "camera-7", Kind: models.CommandStart, IssuedAt: time.Now().UTC()},
			},
		})
	}))
	defer server.Close()

	tokenManager := new(mocks.MockTokenManager)
	tokenManager.On("GetToken").Return("test-token")

	client := agent.NewHTTPClient(server.URL, 5*time.Second, tokenManager, zerolog.Nop())

	// Execute
	cmds, err := client.FetchPending(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "cmd-1", cmds[0].ID)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "/api/v1/commands/pending", gotPath)
}

// TestHTTPClient_Acknowledge tests the acknowledgment round trip.
func TestHTTPClient_Acknowledge(t *testing.T) {
	// Setup
	var gotBody models.AckRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(models.AckResponse{UpdatedCount: 2})
	}))
	defer server.Close()

	tokenManager := new(mocks.MockTokenManager)
	tokenManager.On("GetToken").Return("test-token")

	client := agent.NewHTTPClient(server.URL, 5*time.Second, tokenManager, zerolog.Nop())

	// Execute
	count, err := client.Acknowledge(context.Background(), []string{"cmd-1", "cmd-2"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"cmd-1", "cmd-2"}, gotBody.CommandIDs)
}

// TestHTTPClient_NoToken tests that calls without a provisioned token fail
// fast instead of hitting the network.
func TestHTTPClient_NoToken(t *testing.T) {
	tokenManager := new(mocks.MockTokenManager)
	tokenManager.On("GetToken").Return("")

	client := agent.NewHTTPClient("http://127.0.0.1:1", time.Second, tokenManager, zerolog.Nop())

	_, err := client.FetchPending(context.Background())

	assert.ErrorIs(t, err, agent.ErrNoToken)
}

// TestHTTPClient_ServerError tests the error for a non-2xx response.
func TestHTTPClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"access denied"}`, http.StatusForbidden)
	}))
	defer server.Close()

	tokenManager := new(mocks.MockTokenManager)
	tokenManager.On("GetToken").Return("test-token")

	client := agent.NewHTTPClient(server.URL, 5*time.Second, tokenManager, zerolog.Nop())

	_, err := client.FetchPending(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 403")
}

// TestHTTPClient_ContextCancellation tests that a canceled context aborts
// the round trip.
func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	tokenManager := new(mocks.MockTokenManager)
	tokenManager.On("GetToken").Return("test-token")

	client := agent.NewHTTPClient(server.URL, 5*time.Second, tokenManager, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.FetchPending(ctx)

	assert.Error(t, err)
}
