package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/praxislabs/readiness/internal/domain"
	"github.com/praxislabs/readiness/internal/identity"
	"github.com/praxislabs/readiness/internal/session"
)

const maxAnswerBodySize = 64 * 1024

// AssessmentHandler handles the assessment endpoints.
type AssessmentHandler struct {
	*Handler
}

// NewAssessmentHandler creates a new assessment handler.
func NewAssessmentHandler(base *Handler) *AssessmentHandler {
	return &AssessmentHandler{Handler: base}
}

// RegisterRoutes registers assessment routes.
func (h *AssessmentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Route("/assessment", func(r chi.Router) {
			r.Get("/", h.GetState)
			r.Post("/start", h.Start)
			r.Post("/response", h.SubmitResponse)
			r.Post("/retake", h.Retake)
			r.Get("/results", h.GetResults)
			r.Get("/plan", h.GetPlan)
		})
	})
}

// GetMe returns the current user's information.
func (h *AssessmentHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  user.UserID,
		"username": user.Username,
		"entitled": effectiveEntitled(user, h.isDevelopment()),
	})
}

// GetConfig returns the server configuration for the frontend.
func (h *AssessmentHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"dev": h.isDevelopment(),
	})
}

// GetState returns the composite session view the page renders from.
// This is also the resume path: on first access it loads persisted
// state and repairs a missing learning plan.
func (h *AssessmentHandler) GetState(w http.ResponseWriter, r *http.Request) {
	ctrl, user, ok := h.controller(w, r)
	if !ok {
		return
	}

	viewingPlan := r.URL.Query().Get("viewing_plan") == "1"
	snap := ctrl.Snapshot()
	JSON(w, http.StatusOK, BuildSessionView(snap, ctrl.Loading(), user.Entitled, viewingPlan))
}

// Start begins the assessment.
func (h *AssessmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctrl, user, ok := h.controller(w, r)
	if !ok {
		return
	}

	if err := ctrl.Start(r.Context()); err != nil {
		h.writeControllerError(w, r, err)
		return
	}

	snap := ctrl.Snapshot()
	slog.Info("Assessment started", "user_id", snap.UserID, "remote_session_id", snap.RemoteSessionID)
	JSON(w, http.StatusOK, BuildSessionView(snap, ctrl.Loading(), user.Entitled, false))
}

type submitRequest struct {
	Answer string `json:"answer"`
}

// SubmitResponse submits the answer to the pending question.
func (h *AssessmentHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	ctrl, user, ok := h.controller(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAnswerBodySize)
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ctrl.Submit(r.Context(), req.Answer); err != nil {
		h.writeControllerError(w, r, err)
		return
	}

	snap := ctrl.Snapshot()
	if snap.Status == domain.StatusCompleted {
		slog.Info("Assessment completed",
			"user_id", snap.UserID,
			"questions_answered", snap.Results.QuestionsAnswered,
			"overall_score", snap.Results.OverallScore,
		)
	}
	JSON(w, http.StatusOK, BuildSessionView(snap, ctrl.Loading(), user.Entitled, false))
}

// Retake discards the session and returns to the intro.
func (h *AssessmentHandler) Retake(w http.ResponseWriter, r *http.Request) {
	ctrl, user, ok := h.controller(w, r)
	if !ok {
		return
	}

	if err := ctrl.Retake(); err != nil {
		h.writeControllerError(w, r, err)
		return
	}

	snap := ctrl.Snapshot()
	slog.Info("Assessment retake", "user_id", snap.UserID)
	JSON(w, http.StatusOK, BuildSessionView(snap, ctrl.Loading(), user.Entitled, false))
}

// GetResults returns the results view for a completed session.
func (h *AssessmentHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	ctrl, user, ok := h.controller(w, r)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	if snap.Status != domain.StatusCompleted || snap.Results == nil {
		Error(w, http.StatusNotFound, "no completed assessment")
		return
	}
	JSON(w, http.StatusOK, buildResultsView(snap.Results, user.Entitled))
}

// GetPlan returns the learning plan view for a completed session.
func (h *AssessmentHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	ctrl, user, ok := h.controller(w, r)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	if snap.Status != domain.StatusCompleted || snap.LearningPlan == nil {
		Error(w, http.StatusNotFound, "no learning plan")
		return
	}
	JSON(w, http.StatusOK, buildPlanView(snap.LearningPlan, user.Entitled))
}

// controller resolves the caller's identity, entitlement, and session
// controller. On failure it writes the error response itself.
func (h *AssessmentHandler) controller(w http.ResponseWriter, r *http.Request) (*session.Controller, *domain.User, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, nil, false
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return nil, nil, false
	}
	user.Entitled = effectiveEntitled(user, h.isDevelopment())

	ctrl, err := h.sessions.Get(r.Context(), userID, user.Entitled)
	if err != nil {
		slog.Error("Failed to load session", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return nil, nil, false
	}
	return ctrl, user, true
}

func (h *AssessmentHandler) writeControllerError(w http.ResponseWriter, r *http.Request, err error) {
	userID := identity.UserIDFromContext(r.Context())
	switch {
	case errors.Is(err, session.ErrEmptyAnswer):
		Error(w, http.StatusBadRequest, "answer must not be empty")
	case errors.Is(err, session.ErrBusy):
		Error(w, http.StatusConflict, "a request is already in progress")
	case errors.Is(err, session.ErrAlreadyStarted):
		Error(w, http.StatusConflict, "assessment already started")
	case errors.Is(err, session.ErrNotInProgress):
		Error(w, http.StatusConflict, "assessment is not in progress")
	case session.IsRetryable(err):
		slog.Warn("Upstream analysis call failed", "error", err, "user_id", userID)
		RetryableError(w, http.StatusBadGateway, "the analysis service is unavailable, please try again")
	default:
		slog.Error("Assessment operation failed", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
