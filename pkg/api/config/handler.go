// Package config serves the active model defaults and the health probe.
package config

import (
	"context"
	"net/http"
	"time"

	"github.com/phuslu/log"

	"equity_valuation/pkg/api/respond"
	"equity_valuation/pkg/core/calc"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Response lists the model parameters the engine fills in when statements
// and overrides leave them open.
type Response struct {
	Model      calc.Defaults `json:"model"`
	Source     string        `json:"source"`
	MarketData bool          `json:"market_data"`
}

// Health is the body of the health probe.
type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version,omitempty"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	Model      calc.Defaults
	Source     string
	MarketData bool
	DB         Pinger
	Version    string
}

// NewHandler creates a config handler. source names the file the defaults
// came from, empty for the built-in set. db may be nil.
func NewHandler(model calc.Defaults, source string, marketData bool, db Pinger) *Handler {
	if source == "" {
		source = "builtin"
	}
	return &Handler{Model: model, Source: source, MarketData: marketData, DB: db}
}

// HandleDefaults returns the model defaults in use.
func (h *Handler) HandleDefaults(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, Response{Model: h.Model, Source: h.Source, MarketData: h.MarketData})
}

// HandleHealth reports liveness and database reachability. A missing
// database is not a failure; an unreachable one is.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	out := Health{Status: "ok", Database: "disabled", Version: h.Version}
	status := http.StatusOK
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("[HEALTH] database ping failed")
			out.Status, out.Database = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			out.Database = "ok"
		}
	}
	respond.JSON(w, status, out)
}
