package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/pollen/pkg/connector"
	"github.com/Ramsey-B/pollen/pkg/graph"
	"github.com/Ramsey-B/pollen/pkg/httpclient"
	"github.com/Ramsey-B/pollen/pkg/middleware"
	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/repositories"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func validSettings() *models.AppSettings {
	return &models.AppSettings{
		ID:                 uuid.New(),
		FacebookAppID:      "app-1",
		FacebookAppSecret:  "secret",
		PublicURL:          "https://cms.example.com",
		WebhookVerifyToken: "verify-me",
		WebhookURL:         "https://hooks.example.com/facebook",
	}
}

type memSettings struct {
	settings *models.AppSettings
	err      error
}

func (m *memSettings) Get(_ context.Context) (*models.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.settings == nil {
		return nil, repositories.NotFound("integration settings have not been configured")
	}
	s := *m.settings
	return &s, nil
}

func (m *memSettings) Upsert(_ context.Context, s *models.AppSettings) error {
	if m.err != nil {
		return m.err
	}
	if m.settings != nil {
		s.ID = m.settings.ID
	} else {
		s.ID = uuid.New()
	}
	stored := *s
	m.settings = &stored
	return nil
}

type memLogs struct {
	mu      sync.Mutex
	entries []models.IntegrationLog
	err     error
}

func (m *memLogs) Create(_ context.Context, e *models.IntegrationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	e.ID = uuid.New()
	e.Timestamp = time.Now().UTC()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memLogs) GetByID(_ context.Context, id uuid.UUID) (*models.IntegrationLog, error) {
	for _, e := range m.entries {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, repositories.NotFound("integration log %s does not exist", id)
}

func (m *memLogs) List(_ context.Context, f models.LogFilter) ([]models.IntegrationLog, error) {
	var out []models.IntegrationLog
	for _, e := range m.entries {
		if f.Level != "" && e.Level != f.Level {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memLogs) byLevel(level models.LogLevel) []models.IntegrationLog {
	var out []models.IntegrationLog
	for _, e := range m.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

type memChannels struct {
	rows    []models.Channel
	creates int
	updates []models.ChannelUpdate
}

func (m *memChannels) ReadByQuery(_ context.Context, q models.ChannelQuery) ([]models.Channel, error) {
	var out []models.Channel
	for _, c := range m.rows {
		if q.Source != "" && c.Source != q.Source {
			continue
		}
		if q.PageID != "" && c.PageID != q.PageID {
			continue
		}
		if q.IsEnabled != nil && c.IsEnabled != *q.IsEnabled {
			continue
		}
		out = append(out, c)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *memChannels) CreateOne(_ context.Context, c *models.Channel) error {
	c.ID = uuid.New()
	m.rows = append(m.rows, *c)
	m.creates++
	return nil
}

func (m *memChannels) UpdateOne(_ context.Context, id uuid.UUID, u models.ChannelUpdate) (*models.Channel, error) {
	for i := range m.rows {
		if m.rows[i].ID != id {
			continue
		}
		if u.PageName != nil {
			m.rows[i].PageName = *u.PageName
		}
		if u.Token != nil {
			m.rows[i].Token = *u.Token
		}
		if u.IsEnabled != nil {
			m.rows[i].IsEnabled = *u.IsEnabled
		}
		m.updates = append(m.updates, u)
		c := m.rows[i]
		return &c, nil
	}
	return nil, repositories.NotFound("channel %s does not exist", id)
}

func (m *memChannels) GetByID(_ context.Context, id uuid.UUID) (*models.Channel, error) {
	for _, c := range m.rows {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, repositories.NotFound("channel %s does not exist", id)
}

// graphServer fakes the Graph endpoints for the abc123 -> st1 -> lt1 -> p1 flow.
type graphServer struct {
	mu            sync.Mutex
	hits          []string
	failSubscribe bool
	pages         string
}

func (g *graphServer) handler(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.hits = append(g.hits, r.Method+" "+r.URL.Path)
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/v23.0/")
	q := r.URL.Query()

	switch {
	case path == "oauth/access_token" && q.Get("grant_type") == "fb_exchange_token":
		_, _ = w.Write([]byte(`{"access_token":"lt1","token_type":"bearer","expires_in":5183944}`))
	case path == "oauth/access_token" && q.Get("grant_type") == "client_credentials":
		_, _ = w.Write([]byte(`{"access_token":"app-token","token_type":"bearer"}`))
	case path == "oauth/access_token" && q.Get("code") == "abc123":
		_, _ = w.Write([]byte(`{"access_token":"st1","token_type":"bearer"}`))
	case path == "oauth/access_token":
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid verification code format.","type":"OAuthException","code":100}}`))
	case path == "app-1/subscriptions":
		_, _ = w.Write([]byte(`{"success":true}`))
	case path == "me/accounts":
		pages := g.pages
		if pages == "" {
			pages = `[{"id":"p1","name":"Page One","access_token":"pt1","category":"Shop"}]`
		}
		_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{"data": json.RawMessage(pages)})
	case strings.HasSuffix(path, "/subscribed_apps") && g.failSubscribe:
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"Permissions error","type":"OAuthException","code":200}}`))
	case strings.HasSuffix(path, "/subscribed_apps"):
		_, _ = w.Write([]byte(`{"success":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"Unknown path","code":803}}`))
	}
}

func (g *graphServer) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.hits...)
}

type fixture struct {
	e        *echo.Echo
	graph    *graphServer
	settings *memSettings
	logs     *memLogs
	channels *memChannels
}

var testPaths = FacebookPaths{
	FallbackURL:   "http://localhost:3000",
	FrontendPath:  "/admin/settings/integrations",
	ErrorPagePath: "/admin/settings/integrations/error",
}

const testCallbackPath = "/api/v1/facebook/auth/callback"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testLogger()

	f := &fixture{
		graph:    &graphServer{},
		settings: &memSettings{settings: validSettings()},
		logs:     &memLogs{},
		channels: &memChannels{},
	}

	srv := httptest.NewServer(http.HandlerFunc(f.graph.handler))
	t.Cleanup(srv.Close)

	client := graph.NewClient(httpclient.NewClient(httpclient.DefaultConfig(), logger), srv.URL+"/v23.0", logger)
	audit := connector.NewAuditor(f.logs, logger)
	syncer := connector.NewSyncer(client, f.channels, logger, connector.WithAuditor(audit))
	conn := connector.NewConnector(f.settings, client, syncer, audit, testCallbackPath, logger)

	f.e = echo.New()
	f.e.HTTPErrorHandler = middleware.Error(logger)
	f.e.Validator = NewRequestValidator()
	f.e.Use(middleware.Context(true))

	api := f.e.Group("/api/v1")
	NewFacebookHandler(conn, testPaths, []string{"pages_show_list", "pages_messaging"}, logger).RegisterRoutes(api)
	NewChannelHandler(f.channels).RegisterRoutes(api)
	NewLogHandler(f.logs).RegisterRoutes(api)
	NewSettingsHandler(f.settings).RegisterRoutes(api)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(middleware.HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

var errBoom = errors.New("boom")
