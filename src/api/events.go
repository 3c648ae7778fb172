package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const heartbeatInterval = 15 * time.Second

// streamEvents pushes a conversation's engine events to the client as SSE.
// The subscription lives as long as the request; a dropped client releases
// it through the request context.
func (s *Server) streamEvents(c echo.Context) error {
	conversationID := c.Param("id")
	if _, err := s.engine.GetConversation(c.Request().Context(), conversationID); err != nil {
		return httpError(err)
	}

	events, cancel := s.engine.Events().Subscribe(conversationID)
	defer cancel()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	ctx := c.Request().Context()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			// Comment lines keep proxies from closing an idle stream.
			fmt.Fprint(resp, ": heartbeat\n\n")
			resp.Flush()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Warn("failed to marshal event", "type", event.GetType(), "error", err)
				continue
			}
			fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event.GetType(), data)
			resp.Flush()
		}
	}
}
