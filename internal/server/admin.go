package server

import (
	"net/http"

	"github.com/workshop/vehicleapi/internal/config"
	"github.com/workshop/vehicleapi/internal/httpx"
	"github.com/workshop/vehicleapi/internal/logger"
)

// GetRateLimit returns the rate limit policy in force.
func (s *Server) GetRateLimit(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "Rate limit policy", s.configManager.GetPolicy())
}

// UpdateRateLimit replaces the rate limit policy. It takes effect on the next
// request.
func (s *Server) UpdateRateLimit(w http.ResponseWriter, r *http.Request) {
	var p config.PolicyConfig
	if err := httpx.DecodeJSON(r.Body, &p); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := s.configManager.UpdatePolicy(p); err != nil {
		writeFailure(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	logger.FromContext(r.Context()).WithField("rate", p.DefaultRateLimit).
		WithField("burst", p.DefaultBurst).Info("rate limit policy updated")
	writeSuccess(w, "Rate limit policy updated", p)
}

// ListPolicies returns the permission rules, first match wins.
func (s *Server) ListPolicies(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "Policies", s.policyEngine.Rules())
}
