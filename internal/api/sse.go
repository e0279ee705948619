package api

import (
	"fmt"
	"net/http"
	"time"

	"tablequeue/internal/metrics"

	"github.com/google/uuid"
)

const sseBuffer = 16

// handleEvents streams the shop channel as Server-Sent Events.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.svc.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream disabled")
		return
	}
	shopID := r.PathValue("shopId")

	// The stream outlives the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.NewString()
	stream, cancel := s.svc.Hub.Stream(shopID, sseBuffer)
	defer cancel()

	metrics.AddSSESubscribers(1)
	defer metrics.AddSSESubscribers(-1)

	log := s.logger.With().Str("subscriber_id", subscriberID).Str("shop_id", shopID).Logger()
	log.Info().Msg("new SSE connection")

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	flush(w)

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)

		case evt, ok := <-stream:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", evt.Payload)
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
