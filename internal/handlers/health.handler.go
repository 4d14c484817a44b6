package handlers

import (
	"context"

	"github.com/fasthttp/router"
	xhttp "github.com/tamosreddi/orders-sub001/pkg/http"
)

type HealthCheck interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]HealthCheck
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		checks: checks,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	status := xhttp.StatusOK
	body := map[string]string{"status": "ok"}

	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			body[name] = err.Error()
			body["status"] = "degraded"
			status = xhttp.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}

	writeJSON(ctx, status, body)
}
