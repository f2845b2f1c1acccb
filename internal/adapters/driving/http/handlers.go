package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// RootResponse is what the chat frontend checks on startup
type RootResponse struct {
	Status string `json:"status" example:"Backend is running"`
	Brain  string `json:"brain" example:"Gemini"`
}

// HarvestRequest selects the harvest scope
// @Description Harvest request; an empty city harvests every configured city
type HarvestRequest struct {
	City string `json:"city,omitempty" example:"Paris"`
}

// readyTimeout bounds each dependency ping in /ready
const readyTimeout = 3 * time.Second

// handleRoot godoc
// @Summary      Backend status
// @Tags         Chat
// @Produce      json
// @Success      200  {object}  RootResponse
// @Router       / [get]
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{Status: "Backend is running", Brain: "Gemini"})
}

// handleChat godoc
// @Summary      Chat with Lowkey
// @Description  Streams the answer as plain text, followed by grounding sources
// @Tags         Chat
// @Accept       json
// @Produce      plain
// @Param        request  body      domain.ChatRequest  true  "Conversation so far"
// @Success      200      {string}  string
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      503      {object}  ErrorResponse  "Chat not configured"
// @Router       /api/chat [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.chatService == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	emit := func(chunk string) error {
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	// Headers are gone; failures can only be logged.
	if err := s.chatService.Stream(r.Context(), req, emit); err != nil {
		log.Printf("chat stream aborted: %v", err)
	}
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the task queue, lock and archive backends
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  map[string]string
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	failed := map[string]string{}
	for name, dep := range s.dependencies {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := dep.Ping(ctx)
		cancel()
		if err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		failed["status"] = "not ready"
		writeJSON(w, http.StatusServiceUnavailable, failed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleSwaggerDoc serves the registered OpenAPI document
func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, doc)
}

// Auth endpoints

// handleIssueToken godoc
// @Summary      Issue API token
// @Description  Exchange the admin key for a JWT
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.TokenRequest  true  "Admin key"
// @Success      200      {object}  domain.TokenResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid admin key"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /api/v1/auth/token [post]
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.IssueToken(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "key is required")
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid admin key")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "token issuing is disabled")
		default:
			writeError(w, http.StatusInternalServerError, "failed to issue token")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Harvest endpoints

// handleSubmitHarvest godoc
// @Summary      Start a harvest
// @Description  Enqueues a harvest of one city, or of every configured city when no city is given
// @Tags         Harvest
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      HarvestRequest  false  "Harvest scope"
// @Success      202      {object}  domain.Task
// @Failure      400      {object}  ErrorResponse  "Invalid request or unknown city"
// @Failure      503      {object}  ErrorResponse  "Harvest API disabled"
// @Router       /api/v1/harvest [post]
func (s *Server) handleSubmitHarvest(w http.ResponseWriter, r *http.Request) {
	if s.harvestJobs == nil {
		writeError(w, http.StatusServiceUnavailable, "harvest api is disabled")
		return
	}

	var req HarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := s.harvestJobs.Submit(r.Context(), req.City)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCity) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to submit harvest")
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

// handleGetHarvestTask godoc
// @Summary      Get harvest task
// @Tags         Harvest
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Router       /api/v1/harvest/tasks/{id} [get]
func (s *Server) handleGetHarvestTask(w http.ResponseWriter, r *http.Request) {
	if s.harvestJobs == nil {
		writeError(w, http.StatusServiceUnavailable, "harvest api is disabled")
		return
	}

	task, err := s.harvestJobs.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
