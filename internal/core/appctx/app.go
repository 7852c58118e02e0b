// Package appctx holds the explicit application context shared by the UI
// engines: notification sink, current session, trace identifiers. Engines
// receive an *App at construction; there is no ambient global state.
package appctx

import "time"

// NotifyKind classifies a user-facing notification.
type NotifyKind string

const (
	NotifySuccess NotifyKind = "success"
	NotifyError   NotifyKind = "error"
	NotifyInfo    NotifyKind = "info"
	NotifyWarning NotifyKind = "warning"
)

// Notifier delivers transient user-facing notifications.
type Notifier interface {
	Notify(message string, kind NotifyKind)
}

// Session is the persisted user/session record. Token is opaque to the
// engine; it may or may not be a JWT.
type Session struct {
	Username string    `json:"username"`
	Roles    []string  `json:"roles,omitempty"`
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// SessionSource exposes the current persisted session to consumers that
// must not own its storage.
type SessionSource interface {
	Current() (*Session, bool)
	Clear() error
}

// App is the application context object injected into every engine.
type App struct {
	Notifier Notifier
	Sessions SessionSource

	// OnAuthFailure is invoked after a 401 clears the session. It is the
	// host's "force full reload" hook; the transport does not retry.
	OnAuthFailure func()
}

// Notify forwards to the configured Notifier, dropping the message when
// none is set (headless use in tests).
func (a *App) Notify(message string, kind NotifyKind) {
	if a != nil && a.Notifier != nil {
		a.Notifier.Notify(message, kind)
	}
}

// CurrentSession returns the persisted session, if any.
func (a *App) CurrentSession() (*Session, bool) {
	if a == nil || a.Sessions == nil {
		return nil, false
	}
	return a.Sessions.Current()
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string, kind NotifyKind)

// Notify implements Notifier.
func (f NotifierFunc) Notify(message string, kind NotifyKind) { f(message, kind) }
