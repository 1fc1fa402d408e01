package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/workshop/vehicleapi/internal/httpx"
	"github.com/workshop/vehicleapi/internal/logger"
	"github.com/workshop/vehicleapi/internal/patch"
	"github.com/workshop/vehicleapi/internal/service"
)

const maxRequestBody = 1 << 20

// response is the uniform body of every vehicle endpoint.
type response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeSuccess(w http.ResponseWriter, message string, data interface{}) {
	httpx.WriteJSON(w, http.StatusOK, response{Status: http.StatusOK, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	httpx.WriteJSON(w, status, response{Status: status, Message: message})
}

// writeError maps domain errors to 400 and everything else to 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if service.IsDomainError(err) {
		logger.FromContext(r.Context()).WithError(err).Debug("request rejected")
		writeFailure(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	logger.FromContext(r.Context()).WithError(err).Error("request failed")
	writeFailure(w, http.StatusInternalServerError, "Internal Server Error")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrMalformedRequest, err)
	}
	return body, nil
}

func (s *Server) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.vehicles.DecodeVehicle(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.vehicles.Create(r.Context(), v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Vehicle created", created)
}

func (s *Server) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, fmt.Errorf("%w: id %q is not a valid identifier", service.ErrMalformedRequest, raw))
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := patch.DecodeDocument(body)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", service.ErrMalformedRequest, err))
		return
	}
	updated, err := s.vehicles.Update(r.Context(), id, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Vehicle updated", updated)
}

func (s *Server) SearchVehicle(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lookup, err := service.ParseLookup(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.vehicles.Search(r.Context(), lookup)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Vehicle found", v)
}

func (s *Server) ListVehicles(w http.ResponseWriter, r *http.Request) {
	all, err := s.vehicles.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Vehicles found", all)
}

func (s *Server) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lookup, err := service.ParseLookup(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := s.vehicles.Delete(r.Context(), lookup)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "Vehicle deleted", deleted)
}

func (s *Server) metricsStats(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.metrics.GetStats())
}
