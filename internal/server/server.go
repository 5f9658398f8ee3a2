// Package server exposes the enhancement pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/pipeline"
)

// UserIDHeader is set by the upstream auth layer.
const UserIDHeader = "X-User-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Enhancer is the pipeline surface the server needs.
type Enhancer interface {
	Enhance(ctx context.Context, req pipeline.EnhanceRequest) (pipeline.Outcome, error)
	Status(ctx context.Context, companyID string) (pipeline.StatusResult, error)
}

// Accounts reads credit balances.
type Accounts interface {
	Account(ctx context.Context, userID string) (model.CreditAccount, error)
}

// Server holds the HTTP handlers.
type Server struct {
	enhancer       Enhancer
	accounts       Accounts
	allowedOrigins []string
	logger         *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origins. Defaults to "*".
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithLogger sets the request logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(enhancer Enhancer, accounts Accounts, opts ...Option) *Server {
	s := &Server{
		enhancer:       enhancer,
		accounts:       accounts,
		allowedOrigins: []string{"*"},
		logger:         zap.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes returns the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", UserIDHeader, RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/enhance", s.handleEnhance)
		r.Post("/companies/{companyID}/enhance", s.handleEnhance)
		r.Get("/companies/{companyID}/enhance", s.handleStatus)
		r.Get("/credits", s.handleCredits)
	})
	return r
}

type enhanceBody struct {
	CompanyName  string `json:"company_name"`
	BrandHint    string `json:"brand_hint"`
	IndustryHint string `json:"industry_hint"`
}

// EnhanceResponse is the 200 body of an enhance call.
type EnhanceResponse struct {
	Cached           bool            `json:"cached"`
	Charged          bool            `json:"charged"`
	CreditsRemaining *int            `json:"credits_remaining,omitempty"`
	Tearsheet        model.Tearsheet `json:"tearsheet"`
}

// PaymentRequiredResponse is the 402 body.
type PaymentRequiredResponse struct {
	Error   string `json:"error"`
	Credits int    `json:"credits"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var body enhanceBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := pipeline.EnhanceRequest{
		CompanyID:    chi.URLParam(r, "companyID"),
		CompanyName:  body.CompanyName,
		BrandHint:    body.BrandHint,
		IndustryHint: body.IndustryHint,
		UserID:       strings.TrimSpace(r.Header.Get(UserIDHeader)),
	}

	out, err := s.enhancer.Enhance(r.Context(), req)
	switch {
	case errors.Is(err, pipeline.ErrMissingUser):
		writeError(w, http.StatusBadRequest, "missing X-User-ID header")
		return
	case errors.Is(err, pipeline.ErrMissingIdentity):
		writeError(w, http.StatusBadRequest, "company_id or company_name is required")
		return
	case errors.Is(err, pipeline.ErrUnknownCompany):
		writeError(w, http.StatusNotFound, "unknown company")
		return
	case err != nil && out == nil:
		s.logger.Error("server: enhance failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	case err != nil:
		// The tearsheet is still served; the failure only affects persistence or charging.
		s.logger.Error("server: enhance completed with errors",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
	}

	switch o := out.(type) {
	case pipeline.CacheHit:
		writeJSON(w, http.StatusOK, EnhanceResponse{Cached: true, Tearsheet: o.Tearsheet})
	case pipeline.PaymentRequired:
		writeJSON(w, http.StatusPaymentRequired, PaymentRequiredResponse{Error: "payment_required", Credits: o.Credits})
	case pipeline.Completed:
		remaining := o.CreditsRemaining
		writeJSON(w, http.StatusOK, EnhanceResponse{Charged: o.Charged, CreditsRemaining: &remaining, Tearsheet: o.Tearsheet})
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.enhancer.Status(r.Context(), chi.URLParam(r, "companyID"))
	if errors.Is(err, pipeline.ErrMissingIdentity) {
		writeError(w, http.StatusBadRequest, "company_id is required")
		return
	}
	if err != nil {
		s.logger.Error("server: status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if user == "" {
		writeError(w, http.StatusBadRequest, "missing X-User-ID header")
		return
	}
	acct, err := s.accounts.Account(r.Context(), user)
	if err != nil {
		s.logger.Error("server: credits lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
