package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/pollen/pkg/failure"
	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/repositories"
	"github.com/Ramsey-B/pollen/pkg/tracing"
)

const (
	StepCallback = "facebook.callback"
	stepToken    = "facebook.token_exchange"
	stepWebhook  = "facebook.webhook"
)

// TokenAPI is the part of the Graph client used before page sync.
type TokenAPI interface {
	ExchangeCodeForShortLivedToken(ctx context.Context, settings models.AppSettings, redirectURI, code string) (string, error)
	UpgradeToLongLivedToken(ctx context.Context, settings models.AppSettings, shortToken string) (string, error)
	ConfigureWebhook(ctx context.Context, settings models.AppSettings) error
}

// Connector runs the OAuth callback workflow: exchange code, upgrade token, configure
// the app webhook, then sync pages.
type Connector struct {
	settings     repositories.SettingsRepo
	tokens       TokenAPI
	syncer       *Syncer
	audit        *Auditor
	callbackPath string
	logger       ectologger.Logger
}

func NewConnector(settings repositories.SettingsRepo, tokens TokenAPI, syncer *Syncer, audit *Auditor, callbackPath string, logger ectologger.Logger) *Connector {
	return &Connector{
		settings:     settings,
		tokens:       tokens,
		syncer:       syncer,
		audit:        audit,
		callbackPath: callbackPath,
		logger:       logger,
	}
}

func (c *Connector) Auditor() *Auditor {
	return c.audit
}

// LoadSettings reads and validates the integration settings. Every field is required.
func (c *Connector) LoadSettings(ctx context.Context) (models.AppSettings, error) {
	ctx, span := tracing.StartSpan(ctx, "Connector.LoadSettings")
	defer span.End()

	settings, err := c.settings.Get(ctx)
	if repositories.IsNotFound(err) {
		err := failure.New(failure.SettingsValidation, "integration settings have not been configured", err)
		tracing.RecordError(span, err)
		return models.AppSettings{}, err
	}
	if err != nil {
		err := failure.New(failure.StoreOperation, "failed to load integration settings", err)
		tracing.RecordError(span, err)
		return models.AppSettings{}, err
	}

	if missing := settings.MissingFields(); len(missing) > 0 {
		err := failure.Newf(failure.SettingsValidation, nil, "integration settings are missing %s", strings.Join(missing, ", "))
		tracing.RecordError(span, err)
		return models.AppSettings{}, err
	}
	return *settings, nil
}

// RedirectURI is the callback URL registered with Facebook for these settings.
func (c *Connector) RedirectURI(settings models.AppSettings) string {
	return settings.URL(c.callbackPath)
}

// Run executes the workflow for code and returns the number of pages enabled. Errors
// are returned unrecovered; the caller records them.
func (c *Connector) Run(ctx context.Context, settings models.AppSettings, code string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "Connector.Run")
	defer span.End()

	shortToken, err := c.tokens.ExchangeCodeForShortLivedToken(ctx, settings, c.RedirectURI(settings), code)
	if err != nil {
		tracing.RecordError(span, err)
		return 0, err
	}
	c.audit.Info(ctx, stepToken, "Exchanged authorization code for a short-lived user token.")

	longToken, err := c.tokens.UpgradeToLongLivedToken(ctx, settings, shortToken)
	if err != nil {
		tracing.RecordError(span, err)
		return 0, err
	}
	c.audit.Info(ctx, stepToken, "Obtained long-lived user token.")

	if err := c.tokens.ConfigureWebhook(ctx, settings); err != nil {
		tracing.RecordError(span, err)
		return 0, err
	}
	c.audit.Info(ctx, stepWebhook, "Configured app webhook subscription for "+settings.WebhookURL+".")

	synced, err := c.syncer.SyncPages(ctx, longToken)
	if err != nil {
		tracing.RecordError(span, err)
		return synced, err
	}
	c.audit.Info(ctx, stepPageSync, fmt.Sprintf("Synchronized %d Facebook page(s).", synced))

	span.SetAttributes(attribute.Int("sync.synced", synced))
	c.logger.WithContext(ctx).WithField("synced", synced).Info("Facebook connection completed")
	return synced, nil
}
