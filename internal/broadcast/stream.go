package broadcast

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"attackwatch/internal/httpx"
)

// HeartbeatInterval is how often an idle stream sends a comment line to
// keep proxies from closing it.
const HeartbeatInterval = 25 * time.Second

// StreamHandler serves the distributor as text/event-stream. Each message
// is written as "event: <name>" followed by "data: <json>".
type StreamHandler struct {
	Distributor *Distributor
	Logger      *zap.Logger
	Heartbeat   time.Duration
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	// The server's write timeout would otherwise cut long-lived streams.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.Logger.Debug("clear write deadline", zap.Error(err))
	}

	// Subscribe first so nothing broadcast after the preamble is missed.
	sub := h.Distributor.Subscribe()
	defer h.Distributor.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	interval := h.Heartbeat
	if interval <= 0 {
		interval = HeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Name, msg.Data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
