// Package failure defines the error kinds raised by the Facebook connector workflow.
// Every kind is a *Error; callers match kinds with errors.Is against the Err* sentinels
// or read them with KindOf.
package failure

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

type Kind string

const (
	MissingAuthorizationCode Kind = "MissingAuthorizationCode"
	SettingsValidation       Kind = "SettingsValidationError"
	TokenExchange            Kind = "TokenExchangeError"
	WebhookConfig            Kind = "WebhookConfigError"
	NoPagesFound             Kind = "NoPagesFoundError"
	PageSubscription         Kind = "PageSubscriptionError"
	StoreOperation           Kind = "StoreOperationError"
	Unknown                  Kind = "UnknownError"
)

var (
	ErrMissingAuthorizationCode = &Error{Kind: MissingAuthorizationCode}
	ErrSettingsValidation       = &Error{Kind: SettingsValidation}
	ErrTokenExchange            = &Error{Kind: TokenExchange}
	ErrWebhookConfig            = &Error{Kind: WebhookConfig}
	ErrNoPagesFound             = &Error{Kind: NoPagesFound}
	ErrPageSubscription         = &Error{Kind: PageSubscription}
	ErrStoreOperation           = &Error{Kind: StoreOperation}
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type Error struct {
	Kind    Kind
	Message string
	Cause   error

	origin error
}

// New records the caller's stack alongside the kind and message.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		origin:  errors.New(message),
	}
}

func Newf(kind Kind, cause error, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...), cause)
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind. A sentinel (no message) matches any
// error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func (e *Error) StackTrace() errors.StackTrace {
	if st, ok := e.origin.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

// Format prints the kind, message, stack and cause chain for %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s: %s", e.Kind, e.Message)
			if st := e.StackTrace(); st != nil {
				fmt.Fprintf(s, "%+v", st)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, "\ncaused by: %+v", e.Cause)
			}
			return
		}
		fallthrough
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// KindOf returns the kind of the outermost *Error in err's chain, Unknown for other
// errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Chain lists one message per link of err's cause chain, outermost first.
func Chain(err error) []string {
	var chain []string
	for err != nil {
		var msg string
		if fe, ok := err.(*Error); ok {
			msg = fe.Message
			if msg == "" {
				msg = string(fe.Kind)
			}
		} else {
			msg = err.Error()
		}
		// pkg/errors wrappers repeat the message of the error they wrap
		if len(chain) == 0 || chain[len(chain)-1] != msg {
			chain = append(chain, msg)
		}
		err = errors.Unwrap(err)
	}
	return chain
}

// StackTrace renders err with %+v when any link carries a stack.
func StackTrace(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fmt.Sprintf("%+v", fe)
	}
	var st stackTracer
	if errors.As(err, &st) {
		return fmt.Sprintf("%+v", err)
	}
	return ""
}
