package connector

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/pollen/pkg/failure"
	"github.com/Ramsey-B/pollen/pkg/graph"
	"github.com/Ramsey-B/pollen/pkg/metrics"
	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/repositories"
	"github.com/Ramsey-B/pollen/pkg/tracing"
)

// FailurePolicy decides what SyncPages does when one page fails.
type FailurePolicy string

const (
	// PolicyAbort stops at the first failing page.
	PolicyAbort FailurePolicy = "abort"
	// PolicyContinue skips failing pages and fails only when no page succeeded.
	PolicyContinue FailurePolicy = "continue"
)

func ParseFailurePolicy(s string) FailurePolicy {
	if FailurePolicy(strings.ToLower(strings.TrimSpace(s))) == PolicyContinue {
		return PolicyContinue
	}
	return PolicyAbort
}

const stepPageSync = "facebook.page_sync"

// PageAPI is the part of the Graph client the syncer needs.
type PageAPI interface {
	ListManagedPages(ctx context.Context, userToken string) ([]graph.Page, error)
	SubscribePage(ctx context.Context, page graph.Page) error
}

// PageLocker serializes the sync of one page across concurrent callbacks.
type PageLocker interface {
	Hold(ctx context.Context, key string) (release func(), err error)
}

// Syncer mirrors the user's Facebook pages into omni_channels and subscribes each one
// to the app webhook.
type Syncer struct {
	graph    PageAPI
	channels repositories.ChannelRepo
	events   ChannelEvents
	audit    *Auditor
	locker   PageLocker
	policy   FailurePolicy
	logger   ectologger.Logger
	now      func() time.Time
}

type SyncerOption func(*Syncer)

func WithFailurePolicy(p FailurePolicy) SyncerOption {
	return func(s *Syncer) { s.policy = p }
}

func WithChannelEvents(events ChannelEvents) SyncerOption {
	return func(s *Syncer) {
		if events != nil {
			s.events = events
		}
	}
}

func WithAuditor(a *Auditor) SyncerOption {
	return func(s *Syncer) { s.audit = a }
}

// WithPageLocker holds a lock per page while it is upserted and subscribed.
func WithPageLocker(l PageLocker) SyncerOption {
	return func(s *Syncer) { s.locker = l }
}

func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) { s.now = now }
}

func NewSyncer(pages PageAPI, channels repositories.ChannelRepo, logger ectologger.Logger, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		graph:    pages,
		channels: channels,
		events:   NopChannelEvents{},
		policy:   PolicyAbort,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertChannel creates the channel for page disabled, or refreshes the name and token
// of the existing one. is_enabled is never changed here.
func (s *Syncer) UpsertChannel(ctx context.Context, page graph.Page) (*models.Channel, error) {
	ctx, span := tracing.StartSpan(ctx, "Syncer.UpsertChannel")
	defer span.End()
	span.SetAttributes(attribute.String("channel.page_id", page.ID))

	existing, err := s.findChannel(ctx, page.ID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	if existing != nil {
		updated, err := s.channels.UpdateOne(ctx, existing.ID, models.ChannelUpdate{
			PageName: &page.Name,
			Token:    &page.AccessToken,
		})
		if err != nil {
			tracing.RecordError(span, err)
			return nil, failure.Newf(failure.StoreOperation, err, "failed to update channel for page %s", page.ID)
		}
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"channel_id": existing.ID,
			"page_id":    page.ID,
		}).Info("Refreshed existing channel")
		return updated, nil
	}

	channel := &models.Channel{
		PageID:      page.ID,
		PageName:    page.Name,
		Token:       page.AccessToken,
		IsEnabled:   false,
		ExpiredDate: page.ExpiresIn.Resolve(s.now()),
		Source:      models.ChannelSourceFacebook,
	}
	if err := s.channels.CreateOne(ctx, channel); err != nil {
		tracing.RecordError(span, err)
		return nil, failure.Newf(failure.StoreOperation, err, "failed to create channel for page %s", page.ID)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"channel_id": channel.ID,
		"page_id":    page.ID,
	}).Info("Created channel")
	return channel, nil
}

// SubscribePageWebhook subscribes the page and, once Facebook acknowledges, marks its
// channel enabled.
func (s *Syncer) SubscribePageWebhook(ctx context.Context, page graph.Page) (*models.Channel, error) {
	ctx, span := tracing.StartSpan(ctx, "Syncer.SubscribePageWebhook")
	defer span.End()
	span.SetAttributes(attribute.String("channel.page_id", page.ID))

	if err := s.graph.SubscribePage(ctx, page); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	existing, err := s.findChannel(ctx, page.ID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	if existing == nil {
		err := failure.Newf(failure.StoreOperation, nil, "channel for page %s disappeared before it could be enabled", page.ID)
		tracing.RecordError(span, err)
		return nil, err
	}

	enabled := true
	channel, err := s.channels.UpdateOne(ctx, existing.ID, models.ChannelUpdate{IsEnabled: &enabled})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, failure.Newf(failure.StoreOperation, err, "failed to enable channel for page %s", page.ID)
	}

	if err := s.events.ChannelEnabled(ctx, *channel); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("channel_id", channel.ID).Warn("failed to publish channel.enabled event")
	}
	return channel, nil
}

// SyncPages lists the user's pages and processes them one at a time in list order. It
// returns the number of pages that ended up enabled.
func (s *Syncer) SyncPages(ctx context.Context, userToken string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "Syncer.SyncPages")
	defer span.End()

	pages, err := s.graph.ListManagedPages(ctx, userToken)
	if err != nil {
		tracing.RecordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("sync.page_count", len(pages)), attribute.String("sync.policy", string(s.policy)))

	var firstErr error
	synced := 0
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return synced, err
		}

		err := s.syncPage(ctx, page)
		if err == nil {
			synced++
			metrics.RecordPageSync("enabled")
			continue
		}

		metrics.RecordPageSync("failed")
		log := s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"page_id":    page.ID,
			"error_kind": failure.KindOf(err),
		})
		if s.policy != PolicyContinue {
			log.Error("page sync failed; aborting remaining pages")
			tracing.RecordError(span, err)
			return synced, err
		}

		log.Warn("page sync failed; continuing with next page")
		if s.audit != nil {
			s.audit.Warn(ctx, stepPageSync, "Skipped page "+page.ID+" after a failure.", err)
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	if synced == 0 && firstErr != nil {
		err := failure.Newf(failure.PageSubscription, firstErr, "all %d pages failed to sync", len(pages))
		tracing.RecordError(span, err)
		return 0, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"pages":  len(pages),
		"synced": synced,
	}).Info("Page sync complete")
	return synced, nil
}

func (s *Syncer) syncPage(ctx context.Context, page graph.Page) error {
	if s.locker != nil {
		release, err := s.locker.Hold(ctx, "facebook:page:"+page.ID)
		if err != nil {
			return failure.Newf(failure.StoreOperation, err, "failed to lock page %s for sync", page.ID)
		}
		defer release()
	}

	if _, err := s.UpsertChannel(ctx, page); err != nil {
		return err
	}
	_, err := s.SubscribePageWebhook(ctx, page)
	return err
}

func (s *Syncer) findChannel(ctx context.Context, pageID string) (*models.Channel, error) {
	found, err := s.channels.ReadByQuery(ctx, models.ChannelQuery{
		Source: models.ChannelSourceFacebook,
		PageID: pageID,
		Limit:  1,
	})
	if err != nil {
		return nil, failure.Newf(failure.StoreOperation, err, "failed to look up channel for page %s", pageID)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}
