package api

import (
	"context"
	"net/http"
	"time"

	"github.com/maltedev/pricehawk/internal/database"
)

const (
	pendingWarnThreshold     = 1000
	deadLetterErrorThreshold = 100
	healthCheckTimeout       = 2 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type BrowserHealth interface {
	Healthy() bool
}

type OutboxStats interface {
	Stats(ctx context.Context) (database.OutboxStats, error)
}

// HealthDeps lists the process-wide resources /health reports on. A nil
// field is reported as disabled.
type HealthDeps struct {
	Cache    Pinger
	Database Pinger
	Browser  BrowserHealth
	Outbox   OutboxStats
	Mode     string
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	body := map[string]interface{}{
		"status":   "ok",
		"app":      AppName,
		"version":  AppVersion,
		"mode":     h.health.Mode,
		"redis":    pingStatus(ctx, h.health.Cache),
		"database": pingStatus(ctx, h.health.Database),
		"browser":  browserStatus(h.health.Browser),
	}
	status := http.StatusOK

	if h.health.Outbox != nil {
		stats, err := h.health.Outbox.Stats(ctx)
		if err != nil {
			h.logger.Warn("failed to read outbox stats", "error", err)
		} else {
			body["outbox"] = stats
			if stats.Pending > pendingWarnThreshold {
				body["status"] = "warning"
				body["message"] = "High number of pending outbox events"
			}
			if stats.DeadLetter > deadLetterErrorThreshold {
				body["status"] = "error"
				body["message"] = "High number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}
	}

	if body["browser"] == "unhealthy" {
		body["status"] = "error"
		status = http.StatusServiceUnavailable
	}

	h.respondJSON(w, status, body)
}

func pingStatus(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}

func browserStatus(b BrowserHealth) string {
	if b == nil {
		return "disabled"
	}
	if !b.Healthy() {
		return "unhealthy"
	}
	return "healthy"
}
