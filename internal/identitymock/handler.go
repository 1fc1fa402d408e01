// Package identitymock is a development stand-in for the identity service:
// it issues tokens on login and answers token validation requests.
package identitymock

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/workshop/vehicleapi/internal/auth"
	"github.com/workshop/vehicleapi/internal/httpx"
	"github.com/workshop/vehicleapi/internal/logger"
)

const (
	LoginPath           = "/api/v1/user/login"
	DefaultValidatePath = "/api/v1/user/validateToken"
)

type Service struct {
	users  *UserStore
	tokens *TokenManager
}

func NewService(users *UserStore, tokens *TokenManager) *Service {
	return &Service{users: users, tokens: tokens}
}

type reply struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type claimsData struct {
	Username string `json:"username"`
	Roles    []Role `json:"roles"`
}

// Router serves login and validation. validatePath defaults to
// DefaultValidatePath.
func (s *Service) Router(validatePath string) http.Handler {
	if validatePath == "" {
		validatePath = DefaultValidatePath
	}
	r := mux.NewRouter()
	r.Use(logger.RequestID)
	r.HandleFunc(LoginPath, s.Login).Methods(http.MethodPost)
	r.HandleFunc(validatePath, s.ValidateToken).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, reply{Status: http.StatusBadRequest, Message: "Invalid JSON"})
		return
	}
	if _, err := s.users.Authenticate(req.Username, req.Password); err != nil {
		logger.FromContext(r.Context()).WithField("username", req.Username).Info("login refused")
		httpx.WriteJSON(w, http.StatusUnauthorized, reply{Status: http.StatusUnauthorized, Message: "Invalid username or password"})
		return
	}
	token, err := s.tokens.Generate(req.Username)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("token signing failed")
		httpx.WriteJSON(w, http.StatusInternalServerError, reply{Status: http.StatusInternalServerError, Message: "Internal Server Error"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reply{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data:    map[string]string{"token": token},
	})
}

func (s *Service) ValidateToken(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, reply{Status: http.StatusBadRequest, Message: "Bearer token is missing"})
		return
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		httpx.WriteJSON(w, http.StatusUnauthorized, reply{Status: http.StatusUnauthorized, Message: "Invalid token"})
		return
	}
	roles, ok := s.users.Roles(claims.Username)
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, reply{Status: http.StatusUnauthorized, Message: "Unknown user"})
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.WriteJSON(w, http.StatusOK, reply{
		Status:  http.StatusOK,
		Message: "Token is valid",
		Data:    claimsData{Username: claims.Username, Roles: roles},
	})
}
