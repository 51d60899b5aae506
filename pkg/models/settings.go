package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AppSettings is the single integration_settings row used by the Facebook connector.
type AppSettings struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	FacebookAppID      string    `db:"facebook_app_id" json:"facebook_app_id"`
	FacebookAppSecret  string    `db:"facebook_app_secret" json:"facebook_app_secret"`
	PublicURL          string    `db:"public_url" json:"public_url"`
	WebhookVerifyToken string    `db:"webhook_verify_token" json:"webhook_verify_token"`
	WebhookURL         string    `db:"webhook_url" json:"webhook_url"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (AppSettings) TableName() string {
	return "integration_settings"
}

// MissingFields lists the column names of required fields that are blank.
func (s AppSettings) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"facebook_app_id", s.FacebookAppID},
		{"facebook_app_secret", s.FacebookAppSecret},
		{"public_url", s.PublicURL},
		{"webhook_verify_token", s.WebhookVerifyToken},
		{"webhook_url", s.WebhookURL},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// RedactedSecret replaces the app secret in API responses.
const RedactedSecret = "********"

// Redacted returns a copy safe to hand to admin clients.
func (s AppSettings) Redacted() AppSettings {
	if s.FacebookAppSecret != "" {
		s.FacebookAppSecret = RedactedSecret
	}
	return s
}

// URL joins the public base URL and path without doubling the slash.
func (s AppSettings) URL(path string) string {
	return JoinURL(s.PublicURL, path)
}

func JoinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
