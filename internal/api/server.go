// Package api exposes the tracking service over HTTP. Handlers stay thin:
// parse, delegate, encode. User identity arrives pre-resolved in the
// X-User-ID header; verifying it is an upstream concern.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/guarzo/markethub/internal/history"
	"github.com/guarzo/markethub/internal/service"
	"github.com/guarzo/markethub/internal/store"
)

type ctxKey int

const userIDKey ctxKey = 0

// Server is the HTTP front for the listing service.
type Server struct {
	svc    *service.Listings
	router *mux.Router
	log    zerolog.Logger
}

// NewServer builds the router and its handlers.
func NewServer(svc *service.Listings, logger zerolog.Logger) *Server {
	s := &Server{
		svc: svc,
		log: logger.With().Str("component", "api").Logger(),
	}

	r := mux.NewRouter()
	r.Use(s.requestLogMiddleware)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(s.userScopeMiddleware)

	apiRouter.HandleFunc("/products", s.handleList).Methods(http.MethodGet)
	apiRouter.HandleFunc("/products", s.handleCreate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/products/{id}", s.handleGet).Methods(http.MethodGet)
	apiRouter.HandleFunc("/products/{id}", s.handleUpdate).Methods(http.MethodPut)
	apiRouter.HandleFunc("/products/{id}", s.handleDelete).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/products/{id}/check", s.handleCheck).Methods(http.MethodPost)

	apiRouter.HandleFunc("/analytics/overview", s.handleOverview).Methods(http.MethodGet)
	apiRouter.HandleFunc("/analytics/trends", s.handleTrends).Methods(http.MethodGet)
	apiRouter.HandleFunc("/analytics/performance", s.handlePerformance).Methods(http.MethodGet)
	apiRouter.HandleFunc("/analytics/history", s.handleHistory).Methods(http.MethodGet)

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Str("request_id", reqID).Dur("elapsed", time.Since(start)).Msg("request")
	})
}

func (s *Server) userScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "MarketHub API",
		"version": "1.0.0",
		"status":  "active",
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.List(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, err, "fetching products")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	l, err := s.svc.Create(r.Context(), userID(r), in)
	if err != nil {
		s.writeServiceError(w, err, "adding product")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Product added successfully",
		"product": l,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	l, err := s.svc.Get(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err, "fetching product")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": l})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	l, err := s.svc.Update(r.Context(), userID(r), mux.Vars(r)["id"], in)
	if err != nil {
		s.writeServiceError(w, err, "updating product")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": l,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, err, "deleting product")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	l, sample, err := s.svc.Check(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err, "checking price")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product": l,
		"sample":  sample,
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.svc.Overview(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, err, "fetching overview")
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	window := intQuery(r, "days", 30)
	trends, err := s.svc.Trends(r.Context(), userID(r), window)
	if err != nil {
		s.writeServiceError(w, err, "fetching trends")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trends": trends})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 10)
	perf, err := s.svc.Performance(r.Context(), userID(r), limit)
	if err != nil {
		s.writeServiceError(w, err, "fetching performance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"performance": perf})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	idsParam := r.URL.Query().Get("ids")
	if idsParam == "" {
		writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}
	ids := strings.Split(idsParam, ",")

	var rng history.Range
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		rng.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		rng.To = t
	}

	entries, err := s.svc.QueryHistory(r.Context(), userID(r), ids, rng)
	if err != nil {
		s.writeServiceError(w, err, "fetching history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case service.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Product not found")
	default:
		s.log.Error().Err(err).Str("op", op).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Error "+op)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func intQuery(r *http.Request, key string, fallback int) int {
	if val := r.URL.Query().Get(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
