package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/LagoAI/LiebExplorer/pkg/events"
)

const eventWriteTimeout = 10 * time.Second

// Events (GET /events) streams instance lifecycle events over a websocket.
// The optional "types" query parameter is a comma separated type filter.
func (s *Server) Events(ectx echo.Context) error {
	if s.events == nil {
		return NewInternalServerError("event stream unavailable", nil)
	}

	var types []string
	if raw := ectx.QueryParam("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, s.allowedOrigins)
		},
	}
	conn, err := upgrader.Upgrade(ectx.Response(), ectx.Request(), nil)
	if err != nil {
		// The upgrader has already written the response.
		s.logger.Debugf("Event stream upgrade failed: %v", err)
		return nil
	}
	defer conn.Close()

	output, cancel := s.events.SubscribeTypes(types...)
	defer cancel()

	s.logger.Debugf("Event stream opened by %s", ectx.RealIP())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-output:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return nil
			}
			if err := writeEvent(conn, event); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}

func writeEvent(conn *websocket.Conn, event events.InstanceEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

// isOriginAllowed accepts requests without an Origin, origins listed in
// allowed (full origin or host), and same-host origins when allowed is empty.
func isOriginAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	originHost := parsed.Hostname()

	if len(allowed) > 0 {
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(origin, a) || strings.EqualFold(originHost, a) {
				return true
			}
		}
		return false
	}

	requestHost := r.Host
	if u, err := url.Parse("//" + r.Host); err == nil {
		requestHost = u.Hostname()
	}
	return strings.EqualFold(originHost, requestHost)
}
