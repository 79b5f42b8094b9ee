package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lewisedginton/milordbot/pkg/logger"
)

// Response is the JSON body served by the health endpoints.
type Response struct {
	Status  string                 `json:"status"`
	Probes  map[string]ProbeStatus `json:"probes,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// ProbeStatus is one probe's entry in a Response.
type ProbeStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// LivenessHandler serves the liveness report: 200 when healthy, 503 otherwise.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return c.handler(c.Liveness)
}

// ReadinessHandler serves the readiness report.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return c.handler(c.Readiness)
}

func (c *Checker) handler(run func(context.Context) (*Report, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := run(r.Context())
		body := NewResponse(report, err)
		code := http.StatusOK
		if !report.Healthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			c.logger.Error("Failed to encode health response", logger.ErrorField(err))
		}
	}
}

// NewResponse renders a report as a Response body.
func NewResponse(report *Report, err error) Response {
	body := Response{Status: "healthy", Probes: make(map[string]ProbeStatus, len(report.Results))}
	if !report.Healthy {
		body.Status = "unhealthy"
		if err != nil {
			body.Message = err.Error()
		}
	}
	for _, res := range report.Results {
		ps := ProbeStatus{Status: "ok", Latency: res.Latency.String()}
		if !res.Healthy {
			ps.Status = "error"
			ps.Error = res.Error
		}
		body.Probes[res.Name] = ps
	}
	return body
}
