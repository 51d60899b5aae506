package graph

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/pollen/pkg/failure"
	"github.com/Ramsey-B/pollen/pkg/httpclient"
	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/tracing"
)

const (
	DefaultBaseURL = "https://graph.facebook.com/v23.0"

	subscribedFields = "messages"
	// maxAccountPages caps the /me/accounts requests made per listing, first page included.
	maxAccountPages = 20
)

// Client calls the Facebook Graph API endpoints used by the page connector.
type Client struct {
	http    *httpclient.Client
	baseURL string
	logger  ectologger.Logger
}

func NewClient(httpClient *httpclient.Client, baseURL string, logger ectologger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// ExchangeCodeForShortLivedToken trades the OAuth code for a user access token.
func (c *Client) ExchangeCodeForShortLivedToken(ctx context.Context, settings models.AppSettings, redirectURI, code string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "GraphClient.ExchangeCodeForShortLivedToken")
	defer span.End()

	var res tokenResponse
	err := c.get(ctx, "oauth_access_token", "oauth/access_token", url.Values{
		"client_id":     {settings.FacebookAppID},
		"client_secret": {settings.FacebookAppSecret},
		"redirect_uri":  {redirectURI},
		"code":          {code},
	}, &res)
	if err != nil {
		tracing.RecordError(span, err)
		return "", failure.New(failure.TokenExchange, "failed to exchange authorization code", err)
	}
	if res.AccessToken == "" {
		err := failure.New(failure.TokenExchange, "token endpoint returned no access token", nil)
		tracing.RecordError(span, err)
		return "", err
	}

	c.logger.WithContext(ctx).Debug("Exchanged authorization code for short-lived token")
	return res.AccessToken, nil
}

// UpgradeToLongLivedToken exchanges shortToken for a long-lived user token. A response
// with neither token nor error yields shortToken unchanged.
func (c *Client) UpgradeToLongLivedToken(ctx context.Context, settings models.AppSettings, shortToken string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "GraphClient.UpgradeToLongLivedToken")
	defer span.End()

	var res tokenResponse
	err := c.get(ctx, "oauth_access_token", "oauth/access_token", url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {settings.FacebookAppID},
		"client_secret":     {settings.FacebookAppSecret},
		"fb_exchange_token": {shortToken},
	}, &res)
	if err != nil {
		tracing.RecordError(span, err)
		return "", failure.New(failure.TokenExchange, "failed to upgrade to long-lived token", err)
	}
	if res.AccessToken == "" {
		c.logger.WithContext(ctx).Warn("Long-lived token exchange returned no token; keeping the short-lived token")
		return shortToken, nil
	}

	span.SetAttributes(attribute.Int64("graph.token_expires_in", res.ExpiresIn))
	return res.AccessToken, nil
}

// GetAppAccessToken obtains an app token through the client-credentials grant.
func (c *Client) GetAppAccessToken(ctx context.Context, settings models.AppSettings) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "GraphClient.GetAppAccessToken")
	defer span.End()

	var res tokenResponse
	err := c.get(ctx, "oauth_access_token", "oauth/access_token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {settings.FacebookAppID},
		"client_secret": {settings.FacebookAppSecret},
	}, &res)
	if err != nil {
		tracing.RecordError(span, err)
		return "", failure.New(failure.TokenExchange, "failed to get app access token", err)
	}
	if res.AccessToken == "" {
		err := failure.New(failure.TokenExchange, "client credentials grant returned no access token", nil)
		tracing.RecordError(span, err)
		return "", err
	}
	return res.AccessToken, nil
}

// ConfigureWebhook (re)registers the app-level "page" webhook. Facebook replaces any
// previous registration, so repeated calls are safe.
func (c *Client) ConfigureWebhook(ctx context.Context, settings models.AppSettings) error {
	ctx, span := tracing.StartSpan(ctx, "GraphClient.ConfigureWebhook")
	defer span.End()

	appToken, err := c.GetAppAccessToken(ctx, settings)
	if err != nil {
		return err
	}

	var res successResponse
	err = c.post(ctx, "app_subscriptions", settings.FacebookAppID+"/subscriptions",
		url.Values{"access_token": {appToken}},
		webhookSubscription{
			Object:      "page",
			CallbackURL: settings.WebhookURL,
			Fields:      subscribedFields,
			VerifyToken: settings.WebhookVerifyToken,
		}, &res)
	if err != nil {
		tracing.RecordError(span, err)
		return failure.New(failure.WebhookConfig, "failed to configure app webhook", err)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"app_id":       settings.FacebookAppID,
		"callback_url": settings.WebhookURL,
	}).Info("Configured app webhook subscription")
	return nil
}

// ListManagedPages returns the pages the user manages, following pagination. A failure
// on a later batch keeps the pages already listed.
func (c *Client) ListManagedPages(ctx context.Context, userToken string) ([]Page, error) {
	ctx, span := tracing.StartSpan(ctx, "GraphClient.ListManagedPages")
	defer span.End()

	var res accountsResponse
	if err := c.get(ctx, "me_accounts", "me/accounts", url.Values{"access_token": {userToken}}, &res); err != nil {
		tracing.RecordError(span, err)
		return nil, failure.New(failure.NoPagesFound, "failed to list managed pages", err)
	}

	pages := res.Data
	for i := 1; i < maxAccountPages && res.Paging.Next != ""; i++ {
		next := res.Paging.Next
		res = accountsResponse{}
		if err := c.getURL(ctx, "me_accounts", next, &res); err != nil {
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"batch":        i + 1,
				"pages_so_far": len(pages),
			}).Warn("Failed to fetch next batch of managed pages, keeping the pages listed so far")
			break
		}
		pages = append(pages, res.Data...)
	}

	if len(pages) == 0 {
		err := failure.New(failure.NoPagesFound, "no pages found for the authorized user", nil)
		tracing.RecordError(span, err)
		return nil, err
	}

	for _, p := range pages {
		if p.ExpiresIn.Unparsed != "" {
			c.logger.WithContext(ctx).WithFields(map[string]any{
				"page_id":    p.ID,
				"expires_in": p.ExpiresIn.Unparsed,
			}).Warn("Ignoring unrecognised expires_in for page")
		}
	}

	span.SetAttributes(attribute.Int("graph.page_count", len(pages)))
	return pages, nil
}

// SubscribePage subscribes the app to the page's "messages" webhook field using the
// page token.
func (c *Client) SubscribePage(ctx context.Context, page Page) error {
	ctx, span := tracing.StartSpan(ctx, "GraphClient.SubscribePage")
	defer span.End()
	span.SetAttributes(attribute.String("graph.page_id", page.ID))

	var res successResponse
	err := c.post(ctx, "page_subscribed_apps", page.ID+"/subscribed_apps", nil,
		pageSubscription{AccessToken: page.AccessToken, SubscribedFields: subscribedFields}, &res)
	if err != nil {
		tracing.RecordError(span, err)
		return failure.Newf(failure.PageSubscription, err, "failed to subscribe page %s", page.ID)
	}
	if !res.Success {
		err := failure.Newf(failure.PageSubscription, nil, "subscription of page %s was not acknowledged", page.ID)
		tracing.RecordError(span, err)
		return err
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	resp, err := c.http.Get(ctx, endpoint, c.url(path), query)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) getURL(ctx context.Context, endpoint, rawURL string, out any) error {
	resp, err := c.http.Get(ctx, endpoint, rawURL, nil)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) post(ctx context.Context, endpoint, path string, query url.Values, body, out any) error {
	resp, err := c.http.PostJSON(ctx, endpoint, c.url(path), query, body)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

type errorCarrier interface {
	apiError() *APIError
}

func (e envelope) apiError() *APIError { return e.Error }

// decode treats a top-level error object as failure whatever the status, then any
// non-2xx status.
func decode(resp *httpclient.Response, out any) error {
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			if !resp.OK() {
				return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(resp.Body), 512)}
			}
			return errors.Wrap(err, "failed to decode graph api response")
		}
	}
	if ec, ok := out.(errorCarrier); ok {
		if apiErr := ec.apiError(); apiErr != nil {
			return apiErr
		}
	}
	if !resp.OK() {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(resp.Body), 512)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
