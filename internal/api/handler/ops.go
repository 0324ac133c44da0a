package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
	"github.com/breatheroute/aqiguard/internal/provider/resilience"
)

const pingTimeout = 2 * time.Second

// Pinger checks a backing store. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderHealthSource reports the circuit state of upstream providers.
type ProviderHealthSource interface {
	Snapshot() []resilience.ProviderHealth
}

// OpsConfig configures an OpsHandler. DB may be nil when running on
// in-memory stores.
type OpsConfig struct {
	Version   string
	BuildTime string
	DB        Pinger
	Providers ProviderHealthSource
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(h.now()),
		Version: h.cfg.Version,
	}
	if h.cfg.BuildTime != "" {
		health.Details = map[string]string{"buildTime": h.cfg.BuildTime}
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ready - database and provider status.
// Open provider circuits only degrade readiness because every provider has
// a fallback; a failed database ping fails it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: []models.SubsystemStatus{h.database(r.Context())},
		Providers:  []models.ProviderStatus{},
	}
	status.Status = models.Worst(status.Status, status.Subsystems[0].Status)

	if h.cfg.Providers != nil {
		for _, ph := range h.cfg.Providers.Snapshot() {
			ps := models.NewProviderStatus(ph)
			status.Providers = append(status.Providers, ps)
			if ps.Status != models.HealthStatusOK {
				status.Status = models.Worst(status.Status, models.HealthStatusDegraded)
			}
		}
	}

	code := http.StatusOK
	if status.Status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, status)
}

func (h *OpsHandler) database(ctx context.Context) models.SubsystemStatus {
	sub := models.SubsystemStatus{Name: "database", Status: models.HealthStatusOK}
	if h.cfg.DB == nil {
		detail := "in-memory"
		sub.Detail = &detail
		return sub
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := h.cfg.DB.Ping(ctx); err != nil {
		detail := err.Error()
		sub.Status = models.HealthStatusFail
		sub.Detail = &detail
	}
	return sub
}
