package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a snapshot of one client's breaker and call history.
type ProviderHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// Status reports "healthy", "degraded" (half-open) or "unhealthy" (open).
func (h ProviderHealth) Status() string {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return "unhealthy"
	case gobreaker.StateHalfOpen:
		return "degraded"
	default:
		return "healthy"
	}
}

// Registry collects the resilient clients of a process for readiness checks.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	metrics *Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// SetMetrics makes clients created with this registry record m unless
// their config carries its own Metrics.
func (r *Registry) SetMetrics(m *Metrics) {
	r.mu.Lock()
	r.metrics = m
	r.mu.Unlock()
}

func (r *Registry) sharedMetrics() *Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics
}

// Register adds c, replacing any client with the same name.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = c
}

// Health returns the health of the named client.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	c, ok := r.clients[name]
	r.mu.RUnlock()
	if !ok {
		return ProviderHealth{}, false
	}
	return c.Health(), true
}

// Snapshot returns the health of every registered client ordered by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.Health())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
