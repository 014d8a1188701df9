package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"

	"github.com/ssc-dashboards/portal/internal/access"
	"github.com/ssc-dashboards/portal/internal/auth"
	"github.com/ssc-dashboards/portal/internal/backend"
)

// Refresher re-reads a session's role and status from the backend.
type Refresher interface {
	Refresh(ctx context.Context, s access.Session) (access.Session, error)
}

// Watcher re-checks a pending session on a fixed interval and tells the
// page once it resolves somewhere other than the waiting route.
type Watcher struct {
	hub       *Hub
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger
}

func NewWatcher(hub *Hub, refresher Refresher, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		hub:       hub,
		refresher: refresher,
		interval:  interval,
		logger:    logger,
	}
}

// Watch loops until s resolves away from the waiting route, the backend
// rejects the token, or ctx ends. It re-checks on every tick and on every
// nudge.
func (w *Watcher) Watch(ctx context.Context, s access.Session, nudge <-chan struct{}, emit func(Message) bool) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-nudge:
		}

		next, err := w.refresher.Refresh(ctx, s)
		if err != nil {
			if errors.Is(err, backend.ErrUnauthorized) {
				emit(Message{Type: TypeRedirect, Route: access.RouteLogin.String()})
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("status re-check failed", "error", err, "user_id", s.UserID)
			continue
		}
		s = next

		route := access.Resolve(&s)
		emit(Message{Type: TypeStatus, Status: s.Status.String(), Route: route.String()})
		if route != access.RouteWaiting {
			w.logger.Info("pending session resolved", "user_id", s.UserID, "route", route)
			emit(Message{Type: TypeRedirect, Route: route.String()})
			return nil
		}
	}
}

// Handler upgrades GET /waiting/status. The session comes from the request
// context; the route gate has already confirmed it is pending.
func (w *Watcher) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		s := auth.Session(r.Context())
		if s == nil {
			http.Error(rw, "Unauthorized", http.StatusUnauthorized)
			return
		}
		session := *s

		conn, err := ws.Accept(rw, r, nil)
		if err != nil {
			w.logger.Warn("accept", "error", err)
			return
		}

		client := NewClient(w.hub, conn, session.UserID)
		err = client.Run(r.Context(), func(ctx context.Context, nudge <-chan struct{}, emit func(Message) bool) error {
			return w.Watch(ctx, session, nudge, emit)
		})
		if err != nil {
			w.logger.Error("status watch", "error", err, "user_id", session.UserID)
		}
	}
}
