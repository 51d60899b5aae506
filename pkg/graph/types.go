package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// APIError is the error object Facebook returns in failed Graph responses.
type APIError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	FbtraceID    string `json:"fbtrace_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("(#%d) %s: %s", e.Code, e.Type, e.Message)
	}
	return fmt.Sprintf("(#%d) %s", e.Code, e.Message)
}

// StatusError is returned for non-2xx responses that carry no error object.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph api responded with status %d: %s", e.StatusCode, e.Body)
}

type envelope struct {
	Error *APIError `json:"error"`
}

type tokenResponse struct {
	envelope
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type successResponse struct {
	envelope
	Success bool `json:"success"`
}

type accountsResponse struct {
	envelope
	Data   []Page `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// Page is one entry of /me/accounts.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	Category    string `json:"category,omitempty"`
	ExpiresIn   Expiry `json:"expires_in"`
}

// Expiry accepts an RFC3339 timestamp, a number of seconds from now (number or numeric
// string), or null. Anything else decodes to an unknown expiry with the raw value kept in
// Unparsed, so one odd page never fails the whole listing.
type Expiry struct {
	At       time.Time
	Seconds  int64
	Unparsed string
}

// maxExpirySeconds bounds expires_in; larger values are treated as unknown.
const maxExpirySeconds = 100 * 365 * 24 * 60 * 60

func ExpiresAt(t time.Time) Expiry {
	return Expiry{At: t}
}

func ExpiresInSeconds(s int64) Expiry {
	return Expiry{Seconds: s}
}

func (e Expiry) IsZero() bool {
	return e.At.IsZero() && !e.validSeconds()
}

func (e Expiry) validSeconds() bool {
	return e.Seconds > 0 && e.Seconds <= maxExpirySeconds
}

// Resolve returns the absolute expiry relative to now, or nil when unknown.
func (e Expiry) Resolve(now time.Time) *time.Time {
	switch {
	case !e.At.IsZero():
		t := e.At.UTC()
		return &t
	case e.validSeconds():
		t := now.Add(time.Duration(e.Seconds) * time.Second).UTC()
		return &t
	}
	return nil
}

func (e *Expiry) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	*e = Expiry{}
	if raw == "null" || raw == `""` || raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			e.Unparsed = raw
			return nil
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			e.setSeconds(float64(secs), s)
			return nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			e.At = t
			return nil
		}
		e.Unparsed = s
		return nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.Unparsed = raw
		return nil
	}
	e.setSeconds(f, raw)
	return nil
}

func (e *Expiry) setSeconds(f float64, raw string) {
	if math.IsNaN(f) || f > maxExpirySeconds {
		e.Unparsed = raw
		return
	}
	e.Seconds = int64(f)
}

func (e Expiry) MarshalJSON() ([]byte, error) {
	switch {
	case !e.At.IsZero():
		return json.Marshal(e.At.Format(time.RFC3339))
	case e.validSeconds():
		return json.Marshal(e.Seconds)
	}
	return []byte("null"), nil
}

type webhookSubscription struct {
	Object      string `json:"object"`
	CallbackURL string `json:"callback_url"`
	Fields      string `json:"fields"`
	VerifyToken string `json:"verify_token"`
}

type pageSubscription struct {
	AccessToken      string `json:"access_token"`
	SubscribedFields string `json:"subscribed_fields"`
}
