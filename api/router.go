package api

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/kilianp07/fieldassign/api/runs"
	"github.com/kilianp07/fieldassign/api/sessions"
	"github.com/kilianp07/fieldassign/core/runlog"
	"github.com/kilianp07/fieldassign/core/session"
)

// RouterConfig lists the collaborators of the HTTP API.
type RouterConfig struct {
	Sessions *session.Manager
	Runs     runlog.Store
	Token    string
	// OnDelete is called after a session has been deleted.
	OnDelete sessions.DeleteHook
	// RateLimit caps API requests per second across all clients. Zero
	// disables limiting.
	RateLimit float64
	Burst     int
}

// NewRouter mounts every API handler behind the bearer token check. The
// health endpoint is left open.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	api := http.NewServeMux()
	sessions.Register(api, cfg.Sessions, cfg.OnDelete)
	if cfg.Runs != nil {
		api.Handle("GET /api/runs", runs.NewHandler(cfg.Runs))
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	mux.Handle("/api/", RequireToken(cfg.Token, RateLimit(limiter, api)))
	return mux
}
