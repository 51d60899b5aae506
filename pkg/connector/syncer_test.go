package connector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/pollen/pkg/failure"
	"github.com/Ramsey-B/pollen/pkg/graph"
	"github.com/Ramsey-B/pollen/pkg/models"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestSyncer(g *fakeGraph, channels *memChannels, opts ...SyncerOption) *Syncer {
	opts = append([]SyncerOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewSyncer(g, channels, testLogger(), opts...)
}

func pagesN(n int) []graph.Page {
	pages := make([]graph.Page, n)
	for i := range pages {
		pages[i] = graph.Page{
			ID:          fmt.Sprintf("p%d", i+1),
			Name:        fmt.Sprintf("Page %d", i+1),
			AccessToken: fmt.Sprintf("pt%d", i+1),
		}
	}
	return pages
}

func TestUpsertChannel_CreatesDisabled(t *testing.T) {
	channels := &memChannels{}
	s := newTestSyncer(&fakeGraph{}, channels)

	channel, err := s.UpsertChannel(context.Background(), graph.Page{
		ID: "p1", Name: "Page One", AccessToken: "pt1", ExpiresIn: graph.ExpiresInSeconds(3600),
	})
	require.NoError(t, err)

	assert.False(t, channel.IsEnabled)
	assert.Equal(t, models.ChannelSourceFacebook, channel.Source)
	require.NotNil(t, channel.ExpiredDate)
	assert.Equal(t, fixedNow.Add(time.Hour), *channel.ExpiredDate)
	assert.Len(t, channels.rows, 1)
}

func TestUpsertChannel_NoExpiry(t *testing.T) {
	channels := &memChannels{}
	s := newTestSyncer(&fakeGraph{}, channels)

	channel, err := s.UpsertChannel(context.Background(), graph.Page{ID: "p1", Name: "Page One", AccessToken: "pt1"})
	require.NoError(t, err)
	assert.Nil(t, channel.ExpiredDate)
}

func TestUpsertChannel_UpdatesInPlace(t *testing.T) {
	id := uuid.New()
	channels := &memChannels{rows: []models.Channel{{
		ID: id, PageID: "p1", PageName: "Old", Token: "old", IsEnabled: true, Source: models.ChannelSourceFacebook,
	}}}
	s := newTestSyncer(&fakeGraph{}, channels)

	channel, err := s.UpsertChannel(context.Background(), graph.Page{ID: "p1", Name: "New", AccessToken: "pt-new"})
	require.NoError(t, err)

	assert.Equal(t, id, channel.ID)
	assert.Equal(t, "New", channel.PageName)
	assert.Equal(t, "pt-new", channel.Token)
	assert.True(t, channel.IsEnabled, "update must not touch is_enabled")
	require.Len(t, channels.rows, 1)
	require.Len(t, channels.ops, 1)
	assert.Nil(t, channels.ops[0].update.IsEnabled)
}

func TestUpsertChannel_IgnoresOtherSources(t *testing.T) {
	channels := &memChannels{rows: []models.Channel{{
		ID: uuid.New(), PageID: "p1", Source: models.ChannelSourceZalo,
	}}}
	s := newTestSyncer(&fakeGraph{}, channels)

	_, err := s.UpsertChannel(context.Background(), graph.Page{ID: "p1", Name: "Page One", AccessToken: "pt1"})
	require.NoError(t, err)
	assert.Len(t, channels.rows, 2)
}

func TestUpsertChannel_StoreFailure(t *testing.T) {
	s := newTestSyncer(&fakeGraph{}, &memChannels{readErr: errBoom})

	_, err := s.UpsertChannel(context.Background(), graph.Page{ID: "p1"})
	assert.True(t, errors.Is(err, failure.ErrStoreOperation))

	s = newTestSyncer(&fakeGraph{}, &memChannels{createErr: errBoom})
	_, err = s.UpsertChannel(context.Background(), graph.Page{ID: "p1"})
	assert.True(t, errors.Is(err, failure.ErrStoreOperation))
	assert.True(t, errors.Is(err, errBoom))
}

func TestSubscribePageWebhook_EnablesAfterSuccess(t *testing.T) {
	channels := &memChannels{}
	events := &recordingEvents{}
	g := &fakeGraph{channels: channels}
	s := newTestSyncer(g, channels, WithChannelEvents(events))

	page := graph.Page{ID: "p1", Name: "Page One", AccessToken: "pt1"}
	_, err := s.UpsertChannel(context.Background(), page)
	require.NoError(t, err)

	channel, err := s.SubscribePageWebhook(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, channel.IsEnabled)
	assert.False(t, g.enabledAtSubcall["p1"], "channel must be disabled while subscribing")
	assert.Equal(t, []string{"p1"}, events.enabled)
}

func TestSubscribePageWebhook_FailureLeavesDisabled(t *testing.T) {
	channels := &memChannels{}
	g := &fakeGraph{subscribeErr: map[string]error{"p1": failure.New(failure.PageSubscription, "not acknowledged", nil)}}
	s := newTestSyncer(g, channels)

	page := graph.Page{ID: "p1", Name: "Page One", AccessToken: "pt1"}
	_, err := s.UpsertChannel(context.Background(), page)
	require.NoError(t, err)

	_, err = s.SubscribePageWebhook(context.Background(), page)
	assert.True(t, errors.Is(err, failure.ErrPageSubscription))
	assert.False(t, channels.rows[0].IsEnabled)
}

func TestSubscribePageWebhook_EventFailureIsNotFatal(t *testing.T) {
	channels := &memChannels{}
	s := newTestSyncer(&fakeGraph{}, channels, WithChannelEvents(&recordingEvents{err: errBoom}))

	page := graph.Page{ID: "p1", Name: "Page One", AccessToken: "pt1"}
	_, err := s.UpsertChannel(context.Background(), page)
	require.NoError(t, err)

	channel, err := s.SubscribePageWebhook(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, channel.IsEnabled)
}

func TestSyncPages_CreatesAndEnablesUnseenPages(t *testing.T) {
	channels := &memChannels{}
	g := &fakeGraph{pages: pagesN(3), channels: channels}
	s := newTestSyncer(g, channels)

	synced, err := s.SyncPages(context.Background(), "lt1")
	require.NoError(t, err)
	assert.Equal(t, 3, synced)

	require.Len(t, channels.rows, 3)
	for _, c := range channels.rows {
		assert.True(t, c.IsEnabled, c.PageID)
		assert.False(t, g.enabledAtSubcall[c.PageID], c.PageID)
	}

	var creates, enables int
	for _, op := range channels.ops {
		switch {
		case op.op == "create":
			creates++
		case op.update.IsEnabled != nil && *op.update.IsEnabled:
			enables++
		}
	}
	assert.Equal(t, 3, creates)
	assert.Equal(t, 3, enables)
	assert.Equal(t, []string{"list:lt1", "subscribe:p1", "subscribe:p2", "subscribe:p3"}, g.calls)
}

func TestSyncPages_AbortStopsAtFailingPage(t *testing.T) {
	channels := &memChannels{}
	g := &fakeGraph{
		pages:        pagesN(4),
		subscribeErr: map[string]error{"p2": failure.New(failure.PageSubscription, "subscription of page p2 was not acknowledged", nil)},
	}
	s := newTestSyncer(g, channels)

	synced, err := s.SyncPages(context.Background(), "lt1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrPageSubscription))
	assert.Equal(t, 1, synced)

	assert.Equal(t, []string{"list:lt1", "subscribe:p1", "subscribe:p2"}, g.calls)
	assert.Empty(t, channels.byPage("p3"))
	assert.Empty(t, channels.byPage("p4"))
	require.Len(t, channels.byPage("p2"), 1)
	assert.False(t, channels.byPage("p2")[0].IsEnabled)
}

func TestSyncPages_ContinueSkipsFailingPage(t *testing.T) {
	channels := &memChannels{}
	logs := &memLogs{}
	g := &fakeGraph{
		pages:        pagesN(3),
		subscribeErr: map[string]error{"p2": failure.New(failure.PageSubscription, "subscription of page p2 was not acknowledged", nil)},
	}
	s := newTestSyncer(g, channels, WithFailurePolicy(PolicyContinue), WithAuditor(NewAuditor(logs, testLogger())))

	synced, err := s.SyncPages(context.Background(), "lt1")
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.True(t, channels.byPage("p3")[0].IsEnabled)
	assert.False(t, channels.byPage("p2")[0].IsEnabled)

	warns := logs.byLevel(models.LogLevelWarn)
	require.Len(t, warns, 1)
	require.NotNil(t, warns[0].ErrorKind)
	assert.Equal(t, "PageSubscriptionError", *warns[0].ErrorKind)
}

func TestSyncPages_ContinueFailsWhenEveryPageFails(t *testing.T) {
	g := &fakeGraph{
		pages: pagesN(2),
		subscribeErr: map[string]error{
			"p1": failure.New(failure.PageSubscription, "p1 failed", nil),
			"p2": failure.New(failure.PageSubscription, "p2 failed", nil),
		},
	}
	s := newTestSyncer(g, &memChannels{}, WithFailurePolicy(PolicyContinue))

	synced, err := s.SyncPages(context.Background(), "lt1")
	assert.Equal(t, 0, synced)
	assert.True(t, errors.Is(err, failure.ErrPageSubscription))
	assert.Contains(t, err.Error(), "all 2 pages failed to sync")
}

func TestSyncPages_NoPages(t *testing.T) {
	g := &fakeGraph{listErr: failure.New(failure.NoPagesFound, "no pages found for the authorized user", nil)}
	s := newTestSyncer(g, &memChannels{})

	_, err := s.SyncPages(context.Background(), "lt1")
	assert.True(t, errors.Is(err, failure.ErrNoPagesFound))
}

func TestParseFailurePolicy(t *testing.T) {
	assert.Equal(t, PolicyContinue, ParseFailurePolicy(" Continue "))
	assert.Equal(t, PolicyAbort, ParseFailurePolicy("abort"))
	assert.Equal(t, PolicyAbort, ParseFailurePolicy(""))
}

func TestSyncPages_HoldsLockPerPage(t *testing.T) {
	g := &fakeGraph{pages: pagesN(2)}
	locker := &recordingLocker{}
	s := newTestSyncer(g, &memChannels{}, WithPageLocker(locker))

	synced, err := s.SyncPages(context.Background(), "lt1")
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, []string{"facebook:page:p1", "facebook:page:p2"}, locker.held)
	assert.Equal(t, locker.held, locker.released)
}

func TestSyncPages_LockFailureSkipsPage(t *testing.T) {
	g := &fakeGraph{pages: pagesN(2)}
	channels := &memChannels{}
	locker := &recordingLocker{err: map[string]error{"facebook:page:p1": errBoom}}
	s := newTestSyncer(g, channels, WithPageLocker(locker), WithFailurePolicy(PolicyContinue))

	synced, err := s.SyncPages(context.Background(), "lt1")
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
	assert.Empty(t, channels.byPage("p1"))
	assert.Len(t, channels.byPage("p2"), 1)
	assert.NotContains(t, g.calls, "subscribe:p1")
}

func TestSyncPages_LockFailureAborts(t *testing.T) {
	g := &fakeGraph{pages: pagesN(1)}
	locker := &recordingLocker{err: map[string]error{"facebook:page:p1": errBoom}}
	s := newTestSyncer(g, &memChannels{}, WithPageLocker(locker))

	_, err := s.SyncPages(context.Background(), "lt1")
	assert.True(t, errors.Is(err, failure.ErrStoreOperation))
	assert.True(t, errors.Is(err, errBoom))
}
