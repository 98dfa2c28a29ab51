package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"codesteps/internal/api/middleware"
	"codesteps/internal/app/service"
	"codesteps/internal/common"

	"github.com/go-chi/chi/v5"
)

// CourseHandler serves the learner-facing course surface. Every route
// requires an authenticated user.
type CourseHandler struct {
	progressService *service.ProgressService
}

func NewCourseHandler(progressService *service.ProgressService) *CourseHandler {
	return &CourseHandler{progressService: progressService}
}

func (h *CourseHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/", h.listCourses)
	r.Get("/by-slug/{slug}", h.getCourseBySlug)
	r.Get("/submissions", h.recentSubmissions)
	r.Get("/problems/{problemID}", h.getProblem)
	r.Get("/{courseID}/problems", h.getCourseProblems)
	r.Get("/{courseID}/steps/{stepNumber}", h.getStepByNumber)
	r.Get("/{courseID}/progress", h.getProgress)
	r.Post("/submit", h.submit)
}

func (h *CourseHandler) listCourses(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	courses, err := h.progressService.ListCourses(r.Context(), userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, courses)
}

func (h *CourseHandler) getCourseProblems(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	courseID := chi.URLParam(r, "courseID")
	steps, err := h.progressService.GetCourseProblems(r.Context(), userID, courseID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, steps)
}

func (h *CourseHandler) getCourseBySlug(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	summary, err := h.progressService.GetCourseBySlug(r.Context(), userID, chi.URLParam(r, "slug"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, summary)
}

func (h *CourseHandler) getStepByNumber(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	stepNumber, err := strconv.Atoi(chi.URLParam(r, "stepNumber"))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid step number")
		return
	}
	step, err := h.progressService.GetStepByNumber(r.Context(), userID, chi.URLParam(r, "courseID"), stepNumber)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, step)
}

func (h *CourseHandler) recentSubmissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.progressService.RecentSubmissions(r.Context(), userID, limit)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, logs)
}

func (h *CourseHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	problemID := chi.URLParam(r, "problemID")
	step, err := h.progressService.GetProblem(r.Context(), userID, problemID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, step)
}

func (h *CourseHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	courseID := chi.URLParam(r, "courseID")
	progress, err := h.progressService.GetProgress(r.Context(), userID, courseID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, progress)
}

func (h *CourseHandler) submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	var req service.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	resp, err := h.progressService.Submit(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}
