package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/directory"
	"github.com/fieldvision/fieldvision/internal/dispatch"
	"github.com/fieldvision/fieldvision/internal/mocks"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/internal/presence"
	"github.com/fieldvision/fieldvision/internal/services"
	"github.com/fieldvision/fieldvision/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// flowFixture wires the real issuance, dispatch, fetch and ack pipeline over
// the in-memory store, with only the broker channels mocked.
type flowFixture struct {
	store    *store.MemoryStore
	tracker  *presence.Tracker
	realtime *mocks.MockDeliveryChannel
	durable  *mocks.MockDeliveryChannel
	issuer   *services.IssuerService
	fetcher  *services.FetchService
	acks     *services.AckService
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	logger := zerolog.Nop()

	f := &flowFixture{
		store:    store.NewMemoryStore(),
		tracker:  presence.NewTracker(logger),
		realtime: new(mocks.MockDeliveryChannel),
		durable:  new(mocks.MockDeliveryChannel),
	}

	targets := directory.NewMemoryDirectory()
	require.NoError(t, targets.Register(context.Background(), &directory.TargetInfo{
		ID: "camera-7", Name: "Gate 7 camera", Active: true, RegisteredAt: time.Now().UTC(),
	}))

	dispatcher := dispatch.NewDispatcher(f.store, f.tracker, f.realtime, f.durable, 3, logger)
	f.issuer = services.NewIssuerService(0, "", f.store, targets, dispatcher, f.tracker, logger)
	f.fetcher = services.NewFetchService(f.store, logger)
	f.acks = services.NewAckService(f.store, logger)

	f.realtime.On("Name").Return(constants.ChannelRealtime).Maybe()
	f.durable.On("Name").Return(constants.ChannelDurable).Maybe()
	return f
}

// TestCommandFlow_OnlineTarget tests the full round trip for a connected
// target: push delivery, pull confirmation, acknowledgment.
func TestCommandFlow_OnlineTarget(t *testing.T) {
	// Setup
	f := newFlowFixture(t)
	ctx := context.Background()
	f.tracker.Set("camera-7", models.PresenceOnline, time.Now().UTC())
	f.realtime.On("Send", mock.Anything, "camera-7", mock.Anything).Return(nil)

	// Execute: issue start.
	result, err := f.issuer.Issue(ctx, services.IssueRequest{TargetID: "camera-7", Kind: models.CommandStart})
	require.NoError(t, err)
	assert.Equal(t, constants.DeliveryAccepted, result.Delivery)

	// The device pulls its authoritative list.
	pending, err := f.fetcher.FetchPending(ctx, "camera-7")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, result.Command.ID, pending[0].ID)
	assert.True(t, pending[0].Published)

	// The device confirms execution.
	count, err := f.acks.Acknowledge(ctx, "camera-7", []string{result.Command.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Assert: the command left circulation but not the record book.
	pending, err = f.fetcher.FetchPending(ctx, "camera-7")
	require.NoError(t, err)
	assert.Empty(t, pending)

	stored, err := f.store.GetByID(ctx, result.Command.ID)
	require.NoError(t, err)
	assert.True(t, stored.Acknowledged)
	assert.True(t, stored.Published)

	// A retried ack batch is harmless.
	count, err = f.acks.Acknowledge(ctx, "camera-7", []string{result.Command.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	f.durable.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

// TestCommandFlow_OfflineTarget tests that an offline target's command waits
// on the durable queue and completes after the target reconnects and pulls.
func TestCommandFlow_OfflineTarget(t *testing.T) {
	// Setup
	f := newFlowFixture(t)
	ctx := context.Background()
	f.durable.On("Send", mock.Anything, "camera-7", mock.Anything).Return(nil)

	// Execute: issue while the target is offline.
	result, err := f.issuer.Issue(ctx, services.IssueRequest{TargetID: "camera-7", Kind: models.CommandStop})
	require.NoError(t, err)
	assert.Equal(t, constants.DeliveryQueued, result.Delivery)

	f.realtime.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)

	// The target reconnects and pulls.
	f.tracker.Set("camera-7", models.PresenceOnline, time.Now().UTC())
	pending, err := f.fetcher.FetchPending(ctx, "camera-7")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, result.Command.ID, pending[0].ID)

	count, err := f.acks.Acknowledge(ctx, "camera-7", []string{result.Command.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Assert
	stored, err := f.store.GetByID(ctx, result.Command.ID)
	require.NoError(t, err)
	assert.True(t, stored.Acknowledged)
}

// TestCommandFlow_ConflictingIssuance tests that a stop issued while a start
// is still in flight force expires the start, and the late ack for the
// expired start is refused.
func TestCommandFlow_ConflictingIssuance(t *testing.T) {
	// Setup
	f := newFlowFixture(t)
	ctx := context.Background()
	f.tracker.Set("camera-7", models.PresenceOnline, time.Now().UTC())
	f.realtime.On("Send", mock.Anything, "camera-7", mock.Anything).Return(nil)

	// Execute: start goes out and reaches the device.
	start, err := f.issuer.Issue(ctx, services.IssueRequest{TargetID: "camera-7", Kind: models.CommandStart})
	require.NoError(t, err)
	pending, err := f.fetcher.FetchPending(ctx, "camera-7")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// The operator changes their mind before the device confirms.
	stop, err := f.issuer.Issue(ctx, services.IssueRequest{TargetID: "camera-7", Kind: models.CommandStop})
	require.NoError(t, err)
	assert.Equal(t, []string{start.Command.ID}, stop.Superseded)

	// Assert: only the stop is live now.
	pending, err = f.fetcher.FetchPending(ctx, "camera-7")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stop.Command.ID, pending[0].ID)

	startRecord, err := f.store.GetByID(ctx, start.Command.ID)
	require.NoError(t, err)
	assert.True(t, startRecord.IsExpired(time.Now().UTC()))

	// The device's late confirmation of the dead start is dropped, the
	// stop's is applied.
	count, err := f.acks.Acknowledge(ctx, "camera-7", []string{start.Command.ID, stop.Command.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	startRecord, err = f.store.GetByID(ctx, start.Command.ID)
	require.NoError(t, err)
	assert.False(t, startRecord.Acknowledged)

	stopRecord, err := f.store.GetByID(ctx, stop.Command.ID)
	require.NoError(t, err)
	assert.True(t, stopRecord.Acknowledged)
}
