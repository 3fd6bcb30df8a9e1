package jwt_test

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvision/fieldvision/pkg/encryption"
	"github.com/fieldvision/fieldvision/pkg/file"
	"github.com/fieldvision/fieldvision/pkg/jwt"
)

// newTokenManager builds a manager over a real encrypted file in a temp dir.
func newTokenManager(t *testing.T) (jwt.TokenManagerInterface, string) {
	t.Helper()

	dir := t.TempDir()
	fileOps := file.NewFileService()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	keyPath := filepath.Join(dir, "aes.key")
	require.NoError(t, os.WriteFile(keyPath, key, 0600))

	encryptionManager := encryption.NewEncryptionManager(fileOps)
	require.NoError(t, encryptionManager.Initialize(keyPath))

	tokenPath := filepath.Join(dir, "token.dat")
	manager := jwt.NewTokenManager(tokenPath, fileOps, encryptionManager)
	require.NoError(t, manager.Initialize())
	return manager, tokenPath
}

// mintToken signs a throwaway HS256 token. The manager never verifies
// signatures, only structure and expiry.
func mintToken(t *testing.T, ttl time.Duration) string {
	t.Helper()

	claims := gojwt.MapClaims{
		"sub": "camera-7",
		"exp": time.Now().Add(ttl).Unix(),
	}
	raw, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("provisioning-secret"))
	require.NoError(t, err)
	return raw
}

// TestTokenManager_SaveAndLoad tests that a saved token survives a restart.
func TestTokenManager_SaveAndLoad(t *testing.T) {
	// Setup
	manager, _ := newTokenManager(t)
	token := mintToken(t, time.Hour)

	// Execute
	require.NoError(t, manager.SaveToken(token))
	require.NoError(t, manager.LoadToken())

	// Assert
	assert.Equal(t, token, manager.GetToken())
}

// TestTokenManager_MissingFile tests that a fresh install starts with an
// empty token instead of an error.
func TestTokenManager_MissingFile(t *testing.T) {
	manager, _ := newTokenManager(t)

	assert.Empty(t, manager.GetToken())

	valid, err := manager.IsTokenValid()
	require.NoError(t, err)
	assert.False(t, valid)
}

// TestTokenManager_GetToken_Expired tests that an expired token reads back
// as empty, forcing the caller to re-provision.
func TestTokenManager_GetToken_Expired(t *testing.T) {
	// Setup
	manager, _ := newTokenManager(t)
	require.NoError(t, manager.SaveToken(mintToken(t, -time.Minute)))

	// Execute and assert
	assert.Empty(t, manager.GetToken())

	valid, err := manager.IsTokenValid()
	require.NoError(t, err)
	assert.False(t, valid)
}

// TestTokenManager_MissingExpClaim tests that a token without an expiry is
// reported as an error, not treated as immortal.
func TestTokenManager_MissingExpClaim(t *testing.T) {
	// Setup
	manager, _ := newTokenManager(t)
	raw, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{"sub": "camera-7"}).
		SignedString([]byte("provisioning-secret"))
	require.NoError(t, err)
	require.NoError(t, manager.SaveToken(raw))

	// Execute
	valid, err := manager.IsTokenValid()

	// Assert
	require.Error(t, err)
	assert.False(t, valid)
	assert.Empty(t, manager.GetToken())
}

// TestTokenManager_SaveToken_RejectsMalformed tests that garbage never
// reaches the token file.
func TestTokenManager_SaveToken_RejectsMalformed(t *testing.T) {
	// Setup
	manager, tokenPath := newTokenManager(t)

	// Execute
	err := manager.SaveToken("not-a-jwt")

	// Assert
	require.Error(t, err)
	_, statErr := os.Stat(tokenPath)
	assert.True(t, os.IsNotExist(statErr), "rejected token must not be persisted")
}

// TestTokenManager_FileIsEncrypted tests that the token is unreadable at
// rest.
func TestTokenManager_FileIsEncrypted(t *testing.T) {
	// Setup
	manager, tokenPath := newTokenManager(t)
	token := mintToken(t, time.Hour)
	require.NoError(t, manager.SaveToken(token))

	// Execute
	stored, err := os.ReadFile(tokenPath)
	require.NoError(t, err)

	// Assert
	assert.NotContains(t, string(stored), token)
	assert.NotContains(t, string(stored), "bearer_token")
}

// TestTokenManager_MalformedStoredToken tests validity of a token that was
// never structurally checked, covering managers hydrated by hand.
func TestTokenManager_MalformedStoredToken(t *testing.T) {
	// Setup
	manager := &jwt.TokenManager{Token: "not-a-jwt"}

	// Execute
	valid, err := manager.IsTokenValid()

	// Assert
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Empty(t, manager.GetToken())
}
