package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ishebot/insight-hub/config"
	"github.com/ishebot/insight-hub/internal/application/command"
	"github.com/ishebot/insight-hub/internal/application/query"
	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "ISHEBOT Insight Hub API",
		"version":     "v1",
		"description": "Student analysis pipeline for the teacher dashboard",
		"endpoints": map[string]string{
			"health":   "/health",
			"stats":    "/api/v1/stats",
			"students": "/api/v1/students",
			"analysis": "/api/v1/analysis",
			"insights": "/api/v1/insights",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStats handles GET /api/v1/stats
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetDashboardStatsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Stats endpoint is not configured")
		return
	}

	stats, err := s.deps.GetDashboardStatsHandler.Handle(r.Context(), query.GetDashboardStatsQuery{
		SkipCache: getQueryParamBool(r, "refresh"),
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleListStudents handles GET /api/v1/students
//
// Query parameters: class, search, sort, order (asc|desc), page, page_size.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListStudentsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Students endpoint is not configured")
		return
	}

	q := query.ListStudentsQuery{
		Class:    getQueryParam(r, "class", ""),
		Search:   getQueryParam(r, "search", ""),
		SortBy:   getQueryParam(r, "sort", ""),
		SortDesc: getQueryParam(r, "order", "asc") == "desc",
		Page:     getQueryParamInt(r, "page", 1),
		PageSize: getQueryParamInt(r, "page_size", 50),
	}

	result, err := s.deps.ListStudentsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result.Students, &ResponseMeta{
		TotalCount: result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		HasMore:    result.Page*result.PageSize < result.Total,
	})
}

// handleGetStudent handles GET /api/v1/students/{code}
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudentProfileHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Student endpoint is not configured")
		return
	}

	result, err := s.deps.GetStudentProfileHandler.Handle(r.Context(), query.GetStudentProfileQuery{
		Code:      r.PathValue("code"),
		SkipCache: getQueryParamBool(r, "refresh"),
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetAnalysis handles GET /api/v1/analysis
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	s.serveAnalysis(w, r, getQueryParam(r, "class", ""))
}

// handleGetClassAnalysis handles GET /api/v1/analysis/{class}
func (s *Server) handleGetClassAnalysis(w http.ResponseWriter, r *http.Request) {
	s.serveAnalysis(w, r, r.PathValue("class"))
}

func (s *Server) serveAnalysis(w http.ResponseWriter, r *http.Request, class string) {
	if s.deps.GetClassAnalysisHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Analysis endpoint is not configured")
		return
	}

	result, err := s.deps.GetClassAnalysisHandler.Handle(r.Context(), query.GetClassAnalysisQuery{
		Class:          class,
		ForceRecompute: getQueryParamBool(r, "refresh"),
		MaxSnapshotAge: time.Duration(getQueryParamInt(r, "max_age_minutes", 0)) * time.Minute,
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetInsights handles GET /api/v1/insights
func (s *Server) handleGetInsights(w http.ResponseWriter, r *http.Request) {
	s.serveInsights(w, r, getQueryParam(r, "class", ""))
}

// handleGetClassInsights handles GET /api/v1/insights/{class}
func (s *Server) handleGetClassInsights(w http.ResponseWriter, r *http.Request) {
	s.serveInsights(w, r, r.PathValue("class"))
}

func (s *Server) serveInsights(w http.ResponseWriter, r *http.Request, class string) {
	if s.deps.Features != nil && !s.deps.Features.InsightsEnabled(&config.FeatureContext{Class: class}) {
		writeJSONError(w, http.StatusNotFound, "insights_disabled", "Insights are switched off for this class")
		return
	}
	if s.deps.GetClassInsightsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Insights endpoint is not configured")
		return
	}

	result, err := s.deps.GetClassInsightsHandler.Handle(r.Context(), query.GetClassInsightsQuery{
		Class:           class,
		ForceRegenerate: getQueryParamBool(r, "refresh"),
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleImport handles POST /api/v1/admin/import
//
// Body: {"rows": [...]} in the spreadsheet row shape.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.deps.ImportStudentsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Import endpoint is not configured")
		return
	}

	var body struct {
		Rows []command.ImportRow `json:"rows"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	result, err := s.deps.ImportStudentsHandler.Handle(r.Context(), command.ImportStudentsCommand{Rows: body.Rows})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRunAnalysis handles POST /api/v1/admin/analyze
//
// Body: {"studentCode": "..."} or {"class": "..."}; an empty body recomputes
// the whole-roster aggregation.
func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.deps.RunAnalysisHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Analyze endpoint is not configured")
		return
	}

	var body struct {
		StudentCode string `json:"studentCode"`
		Class       string `json:"class"`
	}
	if r.ContentLength > 0 && !s.decodeBody(w, r, &body) {
		return
	}

	result, err := s.deps.RunAnalysisHandler.Handle(r.Context(), command.RunAnalysisCommand{
		StudentCode: body.StudentCode,
		Class:       body.Class,
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleDelete handles POST /api/v1/admin/delete
//
// Body: {"codes": [...]} or {"all": true, "confirmation": "DELETE"}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if s.deps.DeleteStudentsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Delete endpoint is not configured")
		return
	}

	var body struct {
		Codes        []string `json:"codes"`
		All          bool     `json:"all"`
		Confirmation string   `json:"confirmation"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	result, err := s.deps.DeleteStudentsHandler.Handle(r.Context(), command.DeleteStudentsCommand{
		Codes:        body.Codes,
		All:          body.All,
		Confirmation: body.Confirmation,
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleBackup handles GET /api/v1/admin/backup
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	if s.deps.BackupStudentsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Backup endpoint is not configured")
		return
	}

	doc, err := s.deps.BackupStudentsHandler.Handle(r.Context(), command.BackupStudentsCommand{
		Class: getQueryParam(r, "class", ""),
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	// The backup document is returned raw, not wrapped in the response
	// envelope, so it can be fed back to the restore endpoint verbatim.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="students-backup.json"`)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(doc)
}

// handleRestore handles POST /api/v1/admin/restore
//
// Body: the backup document, plus optional wipe_first/confirmation query
// parameters.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if s.deps.RestoreStudentsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Restore endpoint is not configured")
		return
	}

	var doc command.BackupDocument
	if !s.decodeBody(w, r, &doc) {
		return
	}

	result, err := s.deps.RestoreStudentsHandler.Handle(r.Context(), command.RestoreStudentsCommand{
		Document:     &doc,
		WipeFirst:    getQueryParamBool(r, "wipe_first"),
		Confirmation: getQueryParam(r, "confirmation", ""),
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListFeatures handles GET /api/v1/admin/features
func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	if s.deps.Features == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Feature flags are not configured")
		return
	}

	writeJSON(w, http.StatusOK, s.deps.Features.Snapshot())
}

// handleSetFeatureOverride handles POST /api/v1/admin/features/override
//
// Body: {"class": "ז1", "feature": "insights.seating", "enabled": false}.
// The override wins over rollout and window rules until it is cleared.
func (s *Server) handleSetFeatureOverride(w http.ResponseWriter, r *http.Request) {
	if s.deps.Features == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Feature flags are not configured")
		return
	}

	var body struct {
		Class   string `json:"class"`
		Feature string `json:"feature"`
		Enabled bool   `json:"enabled"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Class == "" || body.Feature == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Both class and feature are required")
		return
	}

	if err := s.deps.Features.SetClassOverride(body.Class, body.Feature, body.Enabled); err != nil {
		writeJSONError(w, http.StatusBadRequest, "unknown_feature", err.Error())
		return
	}

	s.logger.Info("feature override set",
		logger.String("class", body.Class),
		logger.String("feature", body.Feature),
		logger.Bool("enabled", body.Enabled),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"class":   body.Class,
		"feature": body.Feature,
		"enabled": body.Enabled,
	})
}

// handleClearFeatureOverrides handles DELETE /api/v1/admin/features/override/{class}
func (s *Server) handleClearFeatureOverrides(w http.ResponseWriter, r *http.Request) {
	if s.deps.Features == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_configured", "Feature flags are not configured")
		return
	}

	class := r.PathValue("class")
	s.deps.Features.ClearClassOverrides(class)

	s.logger.Info("feature overrides cleared", logger.String("class", class))
	writeJSON(w, http.StatusOK, map[string]interface{}{"class": class})
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body. The size limit is enforced by
// RequestSizeLimitMiddleware on the admin routes; here we only translate
// a truncated read into the right status code. Writes the error response
// itself and reports whether decoding succeeded.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("Request body exceeds the %d byte limit", maxErr.Limit))
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}

// writeQueryError maps domain errors to HTTP status codes.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsNotFound(err), errors.Is(err, student.ErrRecordNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		s.logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "The request could not be completed")
	}
}
