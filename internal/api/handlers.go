package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mssp-monitor/internal/auth"
	"mssp-monitor/internal/metrics"
)

func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	// Public
	r.Get("/healthz", a.Healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/status", a.Status)

	// Secured
	r.Group(func(g chi.Router) {
		g.Use(auth.JWTAuthMiddleware)

		g.Post("/run", a.TriggerRun)
	})

	return r
}

// @Summary Liveness check
// @Tags Ops
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// @Summary Last completed scan cycle
// @Tags Ops
// @Produce json
// @Success 200 {object} model.CycleResult
// @Router /status [get]
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	last := a.Monitor.LastResult()
	if last == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "no completed cycle yet"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(last)
}

// @Summary Trigger an immediate scan cycle
// @Tags Ops
// @Security ApiKeyAuth
// @Produce json
// @Success 202 {object} map[string]string
// @Router /run [post]
func (a *API) TriggerRun(w http.ResponseWriter, r *http.Request) {
	a.Monitor.TriggerNow()
	a.Logger.Info("manual scan requested", zap.String("operator", auth.GetOperator(r)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "scan scheduled"})
}
