package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"slotbook/internal/events"
	"slotbook/internal/models"
)

const (
	streamBuffer    = 32
	streamHeartbeat = 15 * time.Second
)

// handleEvents streams ledger change events as Server-Sent Events.
// A slow client loses events instead of stalling publishers.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeMessage(w, http.StatusServiceUnavailable, "event stream is disabled")
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date != "" {
		if _, err := models.ParseDate(date); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
	}

	rc := http.NewResponseController(w)
	// стрим живёт дольше WriteTimeout сервера
	_ = rc.SetWriteDeadline(time.Time{})

	ch := make(chan *events.Event, streamBuffer)
	unsubscribe := s.bus.Subscribe(events.AllEvents, func(event *events.Event) error {
		if date != "" && event.Date() != date {
			return nil
		}
		select {
		case ch <- event:
		default:
			s.logger.Warn().Str("event_id", event.ID).Msg("event stream client too slow, dropping event")
		}
		return nil
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Error().Err(err).Msg("event stream flush unsupported")
		return
	}

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case event := <-ch:
			if err := writeSSE(w, event); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
	return err
}
