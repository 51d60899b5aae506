package connector

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/pollen/pkg/graph"
	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/repositories"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func validSettings() models.AppSettings {
	return models.AppSettings{
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
	gets     int
}

func (m *memSettings) Get(_ context.Context) (*models.AppSettings, error) {
	m.gets++
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
	m.settings = s
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
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
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

func (m *memLogs) List(_ context.Context, _ models.LogFilter) ([]models.IntegrationLog, error) {
	return m.entries, nil
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

type channelOp struct {
	op     string
	pageID string
	update models.ChannelUpdate
}

type memChannels struct {
	rows      []models.Channel
	ops       []channelOp
	createErr error
	readErr   error
}

func (m *memChannels) ReadByQuery(_ context.Context, q models.ChannelQuery) ([]models.Channel, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []models.Channel
	for _, c := range m.rows {
		if q.Source != "" && c.Source != q.Source {
			continue
		}
		if q.PageID != "" && c.PageID != q.PageID {
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
	if m.createErr != nil {
		return m.createErr
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.rows = append(m.rows, *c)
	m.ops = append(m.ops, channelOp{op: "create", pageID: c.PageID})
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
		m.ops = append(m.ops, channelOp{op: "update", pageID: m.rows[i].PageID, update: u})
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

func (m *memChannels) byPage(pageID string) []models.Channel {
	var out []models.Channel
	for _, c := range m.rows {
		if c.PageID == pageID {
			out = append(out, c)
		}
	}
	return out
}

// fakeGraph records calls in order and fails the steps it is told to.
type fakeGraph struct {
	calls []string

	shortToken   string
	longToken    string
	exchangeErr  error
	upgradeErr   error
	webhookErr   error
	pages        []graph.Page
	listErr      error
	subscribeErr map[string]error

	// channels, when set, is snapshotted at each subscribe call
	channels         *memChannels
	enabledAtSubcall map[string]bool
}

func (f *fakeGraph) ExchangeCodeForShortLivedToken(_ context.Context, _ models.AppSettings, redirectURI, code string) (string, error) {
	f.calls = append(f.calls, "exchange:"+code+"@"+redirectURI)
	return f.shortToken, f.exchangeErr
}

func (f *fakeGraph) UpgradeToLongLivedToken(_ context.Context, _ models.AppSettings, shortToken string) (string, error) {
	f.calls = append(f.calls, "upgrade:"+shortToken)
	if f.upgradeErr != nil {
		return "", f.upgradeErr
	}
	if f.longToken == "" {
		return shortToken, nil
	}
	return f.longToken, nil
}

func (f *fakeGraph) ConfigureWebhook(_ context.Context, _ models.AppSettings) error {
	f.calls = append(f.calls, "webhook")
	return f.webhookErr
}

func (f *fakeGraph) ListManagedPages(_ context.Context, userToken string) ([]graph.Page, error) {
	f.calls = append(f.calls, "list:"+userToken)
	return f.pages, f.listErr
}

func (f *fakeGraph) SubscribePage(_ context.Context, page graph.Page) error {
	f.calls = append(f.calls, "subscribe:"+page.ID)
	if f.channels != nil {
		if f.enabledAtSubcall == nil {
			f.enabledAtSubcall = map[string]bool{}
		}
		for _, c := range f.channels.byPage(page.ID) {
			f.enabledAtSubcall[page.ID] = c.IsEnabled
		}
	}
	return f.subscribeErr[page.ID]
}

type recordingEvents struct {
	enabled []string
	err     error
}

func (r *recordingEvents) ChannelEnabled(_ context.Context, c models.Channel) error {
	r.enabled = append(r.enabled, c.PageID)
	return r.err
}

var errBoom = errors.New("boom")

type recordingLocker struct {
	held     []string
	released []string
	err      map[string]error
}

func (l *recordingLocker) Hold(_ context.Context, key string) (func(), error) {
	if err := l.err[key]; err != nil {
		return nil, err
	}
	l.held = append(l.held, key)
	return func() { l.released = append(l.released, key) }, nil
}
