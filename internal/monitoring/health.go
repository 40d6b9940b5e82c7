// Package monitoring exposes the /health and /metrics HTTP surface
// every frameworks service carries, grounded on pkg/monitoring.
package monitoring

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Status values for HealthStatus and CheckResult.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckResult is the outcome of one named health check.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheck evaluates one dependency's health on demand.
type HealthCheck func() CheckResult

// HealthStatus is the aggregate /health response body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// HealthChecker aggregates named HealthChecks into one status payload.
type HealthChecker struct {
	service string
	version string
	checks  map[string]HealthCheck
}

// NewHealthChecker builds an empty HealthChecker.
func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{service: service, version: version, checks: make(map[string]HealthCheck)}
}

// AddCheck registers a named dependency check.
func (hc *HealthChecker) AddCheck(name string, check HealthCheck) {
	hc.checks[name] = check
}

// CheckHealth runs every registered check and rolls them up.
func (hc *HealthChecker) CheckHealth() HealthStatus {
	status := HealthStatus{
		Service:   hc.service,
		Version:   hc.version,
		Timestamp: time.Now().Unix(),
		Checks:    make(map[string]CheckResult),
	}

	anyUnhealthy := false
	anyDegraded := false
	for name, check := range hc.checks {
		result := check()
		status.Checks[name] = result
		switch result.Status {
		case StatusUnhealthy:
			anyUnhealthy = true
		case StatusDegraded:
			anyDegraded = true
		}
	}

	switch {
	case anyUnhealthy:
		status.Status = StatusUnhealthy
	case anyDegraded:
		status.Status = StatusDegraded
	default:
		status.Status = StatusHealthy
	}
	return status
}

// Handler serves CheckHealth as a gin route, returning 503 when unhealthy.
func (hc *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := hc.CheckHealth()
		code := http.StatusOK
		if status.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}
