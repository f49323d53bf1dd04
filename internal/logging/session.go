package logging

import (
	"context"
	"log/slog"
)

// sessionKey groups the game session attributes on every record.
const sessionKey = "session"

// ContextProvider reports the current game session, typically the map,
// instance and character. It returns nil before the first context update.
type ContextProvider func() []slog.Attr

// sessionHandler stamps records with the session as it is when the record is
// handled, not when the logger was built.
type sessionHandler struct {
	slog.Handler
	session ContextProvider
}

func withSession(h slog.Handler, session ContextProvider) slog.Handler {
	if session == nil {
		return h
	}
	return &sessionHandler{Handler: h, session: session}
}

func (h *sessionHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := h.session(); len(attrs) > 0 {
		r.AddAttrs(slog.Attr{Key: sessionKey, Value: slog.GroupValue(attrs...)})
	}
	return h.Handler.Handle(ctx, r)
}

func (h *sessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionHandler{Handler: h.Handler.WithAttrs(attrs), session: h.session}
}

func (h *sessionHandler) WithGroup(name string) slog.Handler {
	return &sessionHandler{Handler: h.Handler.WithGroup(name), session: h.session}
}
