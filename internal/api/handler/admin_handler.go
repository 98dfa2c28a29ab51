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

// AdminHandler groups every privileged route behind the AdminOnly guard:
// curriculum management, rosters, statistics, scheduled tests and the audit
// trail.
type AdminHandler struct {
	adminService *service.CourseAdminService
	testService  *service.TestSessionService
	auditService *service.AuditService
}

func NewAdminHandler(
	adminService *service.CourseAdminService,
	testService *service.TestSessionService,
	auditService *service.AuditService,
) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		testService:  testService,
		auditService: auditService,
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Use(middleware.AdminOnly)

	r.Post("/courses", h.createCourse)
	r.Get("/courses/{courseID}", h.courseDetail)
	r.Patch("/courses/{courseID}/activate", h.setActive(true))
	r.Patch("/courses/{courseID}/deactivate", h.setActive(false))
	r.Post("/courses/{courseID}/steps", h.addStep)
	r.Post("/courses/{courseID}/reorder", h.reorderSteps)
	r.Get("/courses/{courseID}/users", h.listCourseUsers)
	r.Get("/courses/{courseID}/statistics", h.statistics)
	r.Delete("/courses/{courseID}/users/{userID}/progress", h.resetProgress)

	r.Put("/steps/{stepID}", h.updateStep)
	r.Delete("/steps/{stepID}", h.deleteStep)
	r.Get("/steps/{stepID}/test-cases", h.listTestCases)
	r.Post("/steps/{stepID}/test-cases", h.addTestCase)
	r.Put("/steps/{stepID}/test-cases/{caseID}", h.updateTestCase)
	r.Delete("/steps/{stepID}/test-cases/{caseID}", h.deleteTestCase)

	r.Get("/problems", h.listLibraryProblems)
	r.Post("/problems", h.createLibraryProblem)
	r.Post("/problems/{problemID}/test-cases", h.addLibraryTestCase)
	r.Get("/tests", h.listTests)
	r.Post("/tests", h.createTest)
	r.Post("/tests/{testID}/problems", h.addProblemToTest)
	r.Get("/tests/{testID}/users/{userID}/behavior", h.listViolations)

	r.Get("/audit-logs", h.listAuditLogs)
}

func (h *AdminHandler) adminID(r *http.Request) string {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}

func (h *AdminHandler) createCourse(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	course, err := h.adminService.CreateCourse(r.Context(), h.adminID(r), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, course)
}

func (h *AdminHandler) courseDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.adminService.CourseDetail(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, detail)
}

func (h *AdminHandler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.adminService.SetCourseActive(r.Context(), h.adminID(r), chi.URLParam(r, "courseID"), active)
		if err != nil {
			common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
			return
		}
		common.RespondWithJSON(w, http.StatusOK, map[string]bool{"is_active": active})
	}
}

func (h *AdminHandler) addStep(w http.ResponseWriter, r *http.Request) {
	var req service.StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	step, err := h.adminService.AddStep(r.Context(), h.adminID(r), chi.URLParam(r, "courseID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, step)
}

func (h *AdminHandler) updateStep(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	step, err := h.adminService.UpdateStep(r.Context(), h.adminID(r), chi.URLParam(r, "stepID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, step)
}

func (h *AdminHandler) deleteStep(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	err := h.adminService.DeleteStep(r.Context(), h.adminID(r), chi.URLParam(r, "stepID"), force)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminHandler) reorderSteps(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mappings map[string]int `json:"mappings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	err := h.adminService.ReorderSteps(r.Context(), h.adminID(r), chi.URLParam(r, "courseID"), req.Mappings)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}

func (h *AdminHandler) resetProgress(w http.ResponseWriter, r *http.Request) {
	err := h.adminService.ResetProgress(r.Context(), h.adminID(r),
		chi.URLParam(r, "userID"), chi.URLParam(r, "courseID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *AdminHandler) listCourseUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListCourseUsers(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Statistics(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) listTestCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.adminService.ListTestCases(r.Context(), chi.URLParam(r, "stepID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, cases)
}

func (h *AdminHandler) addTestCase(w http.ResponseWriter, r *http.Request) {
	var req service.TestCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	tc, err := h.adminService.AddTestCase(r.Context(), h.adminID(r), chi.URLParam(r, "stepID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, tc)
}

func (h *AdminHandler) updateTestCase(w http.ResponseWriter, r *http.Request) {
	var req service.TestCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	tc, err := h.adminService.UpdateTestCase(r.Context(), h.adminID(r),
		chi.URLParam(r, "stepID"), chi.URLParam(r, "caseID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, tc)
}

func (h *AdminHandler) deleteTestCase(w http.ResponseWriter, r *http.Request) {
	err := h.adminService.DeleteTestCase(r.Context(), h.adminID(r),
		chi.URLParam(r, "stepID"), chi.URLParam(r, "caseID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminHandler) listLibraryProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.testService.ListLibraryProblems(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problems)
}

func (h *AdminHandler) createLibraryProblem(w http.ResponseWriter, r *http.Request) {
	var req service.LibraryProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	problem, err := h.testService.CreateLibraryProblem(r.Context(), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, problem)
}

func (h *AdminHandler) addLibraryTestCase(w http.ResponseWriter, r *http.Request) {
	var req service.TestCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	tc, err := h.testService.AddLibraryTestCase(r.Context(), chi.URLParam(r, "problemID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, tc)
}

func (h *AdminHandler) listTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.testService.ListTests(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, tests)
}

func (h *AdminHandler) createTest(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	test, err := h.testService.CreateTest(r.Context(), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, test)
}

func (h *AdminHandler) addProblemToTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProblemID string `json:"problem_id"`
		Order     int    `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	link, err := h.testService.AddProblemToTest(r.Context(), chi.URLParam(r, "testID"), req.ProblemID, req.Order)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, link)
}

func (h *AdminHandler) listViolations(w http.ResponseWriter, r *http.Request) {
	logs, err := h.testService.ListViolations(r.Context(),
		chi.URLParam(r, "testID"), chi.URLParam(r, "userID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, logs)
}

func (h *AdminHandler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	logs, err := h.auditService.List(r.Context(), limit, offset)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, logs)
}
