package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/Ramsey-B/pollen/pkg/connector"
	appctx "github.com/Ramsey-B/pollen/pkg/context"
	"github.com/Ramsey-B/pollen/pkg/failure"
	"github.com/Ramsey-B/pollen/pkg/metrics"
	"github.com/Ramsey-B/pollen/pkg/models"
)

const missingCodeMessage = "No authorization code received from Facebook."

// FacebookPaths are the redirect targets, relative to the public URL of the settings.
type FacebookPaths struct {
	// FallbackURL is the public base used when settings cannot be loaded.
	FallbackURL   string
	FrontendPath  string
	ErrorPagePath string
}

// FacebookHandler serves the OAuth login redirect and callback.
type FacebookHandler struct {
	connector *connector.Connector
	paths     FacebookPaths
	scopes    []string
	logger    ectologger.Logger
	now       func() time.Time
}

func NewFacebookHandler(conn *connector.Connector, paths FacebookPaths, scopes []string, logger ectologger.Logger) *FacebookHandler {
	return &FacebookHandler{
		connector: conn,
		paths:     paths,
		scopes:    scopes,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterRoutes registers the public Facebook auth routes
func (h *FacebookHandler) RegisterRoutes(g *echo.Group) {
	auth := g.Group("/facebook/auth")
	auth.GET("/login", h.Login)
	auth.GET("/callback", h.Callback)
}

// Login handles GET /facebook/auth/login by redirecting to the Facebook OAuth dialog.
func (h *FacebookHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	start := h.now()

	settings, err := h.connector.LoadSettings(ctx)
	if err != nil {
		return h.fail(c, models.JoinURL(h.paths.FallbackURL, h.paths.ErrorPagePath), err, start)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     settings.FacebookAppID,
		ClientSecret: settings.FacebookAppSecret,
		Endpoint:     facebook.Endpoint,
		RedirectURL:  h.connector.RedirectURI(settings),
		Scopes:       h.scopes,
	}

	// the callback does not check state; the request id ties the round trip together in logs
	state := appctx.GetRequestID(ctx)
	h.logger.WithContext(ctx).WithField("state", state).Debugf("Redirecting to Facebook OAuth dialog")

	return c.Redirect(http.StatusFound, oauthCfg.AuthCodeURL(state))
}

// Callback handles GET /facebook/auth/callback?code=. It always answers with exactly one
// redirect: the frontend on success, the error page (with the log entry id) otherwise.
func (h *FacebookHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()
	start := h.now()

	settings, err := h.connector.LoadSettings(ctx)
	if err != nil {
		return h.fail(c, models.JoinURL(h.paths.FallbackURL, h.paths.ErrorPagePath), err, start)
	}
	errorPage := settings.URL(h.paths.ErrorPagePath)

	code := c.QueryParam("code")
	if code == "" {
		var cause error
		if desc := c.QueryParam("error_description"); desc != "" {
			cause = errors.New(desc)
		}
		return h.fail(c, errorPage, failure.New(failure.MissingAuthorizationCode, missingCodeMessage, cause), start)
	}

	h.connector.Auditor().Info(ctx, connector.StepCallback, "Received authorization code "+maskCode(code)+".")

	synced, err := h.connector.Run(ctx, settings, code)
	if err != nil {
		return h.fail(c, errorPage, err, start)
	}

	metrics.RecordCallback("success", h.now().Sub(start).Seconds())
	h.logger.WithContext(ctx).WithField("synced", synced).Info("Facebook callback succeeded")
	return c.Redirect(http.StatusFound, settings.URL(h.paths.FrontendPath))
}

// fail records err in the integration log and redirects to target. The log_id is left off
// when the entry could not be written.
func (h *FacebookHandler) fail(c echo.Context, target string, err error, start time.Time) error {
	ctx := c.Request().Context()
	kind := failure.KindOf(err)

	h.logger.WithContext(ctx).WithError(err).WithField("kind", kind).Error("Facebook callback failed")

	id, auditErr := h.connector.Auditor().Failure(ctx, connector.StepCallback, err)
	if auditErr == nil {
		target = withQueryParam(target, "log_id", id.String())
	}

	metrics.RecordCallback(string(kind), h.now().Sub(start).Seconds())
	return c.Redirect(http.StatusFound, target)
}

func withQueryParam(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// maskCode keeps enough of an authorization code to correlate it with Facebook logs.
func maskCode(code string) string {
	if len(code) <= 8 {
		return "****"
	}
	return code[:4] + "****"
}
