// Package health serves readiness reports over HTTP.
package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	stateReady    = "ready"
	stateNotReady = "not_ready"
)

// Check names one dependency and reports whether it can serve traffic.
type Check struct {
	Name  string
	Ready func() bool
}

// Report is the body returned by the health handler.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Evaluate runs every check. The report is "ok" only when all of them pass.
func Evaluate(checks ...Check) (Report, bool) {
	report := Report{Status: "ok"}
	healthy := true
	for _, chk := range checks {
		if report.Checks == nil {
			report.Checks = make(map[string]string, len(checks))
		}
		if chk.Ready == nil || chk.Ready() {
			report.Checks[chk.Name] = stateReady
			continue
		}
		report.Checks[chk.Name] = stateNotReady
		healthy = false
	}
	if !healthy {
		report.Status = "unavailable"
	}
	return report, healthy
}

// Handler answers 200 when every check passes and 503 otherwise.
func Handler(checks ...Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, ok := Evaluate(checks...)
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

// Router serves GET /healthz and nothing else.
func Router(checks ...Check) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", Handler(checks...))
	return r
}
