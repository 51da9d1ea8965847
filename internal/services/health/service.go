package health

import (
	"context"
	"time"

	"github.com/jlorenzo681/documind/internal/shared/storage/object"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Report is the /health payload.
type Report struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB      Pinger
	Store   object.ObjectStore
	Version string
	// LLMProvider is reported as configured without a network call.
	LLMProvider string
	Timeout     time.Duration
}

// Check pings the database and object store. A nil DB means the in-memory
// repositories are in use.
func (s *Service) Check(ctx context.Context) Report {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	services := map[string]string{}
	healthy := true

	switch {
	case s.DB == nil:
		services["database"] = "memory"
	case s.DB.PingContext(ctx) != nil:
		services["database"] = "unhealthy"
		healthy = false
	default:
		services["database"] = "healthy"
	}

	switch {
	case s.Store == nil:
		services["storage"] = "not_configured"
		healthy = false
	case s.Store.Ping(ctx) != nil:
		services["storage"] = "unhealthy"
		healthy = false
	default:
		services["storage"] = "healthy"
	}

	if s.LLMProvider != "" {
		services["llm"] = s.LLMProvider
	} else {
		services["llm"] = "not_configured"
	}

	status := StatusHealthy
	if !healthy {
		status = StatusDegraded
	}
	return Report{Status: status, Version: s.Version, Services: services}
}

// Ready reports whether the process can serve traffic.
func (s *Service) Ready(ctx context.Context) bool {
	return s.Check(ctx).Status == StatusHealthy
}
