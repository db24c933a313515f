package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/application/service"
	"github.com/OpenBPLS/bpls/internal/reports"
)

// AdminRouter serves the admin console.
type AdminRouter struct {
	reviews *service.ReviewService
	reports *reports.Service
}

func NewAdminRouter(reviews *service.ReviewService, reports *reports.Service) *AdminRouter {
	return &AdminRouter{reviews: reviews, reports: reports}
}

// RegisterRoutes mounts the admin endpoints on rg, which must already require
// an authenticated admin.
func (r *AdminRouter) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/applications", r.HandleListApplications)
	rg.GET("/applications/export.xlsx", r.HandleExportApplications)
	rg.GET("/applications/:id", r.HandleGetApplication)
	rg.GET("/applications/:id/summary.pdf", r.HandleApplicationSummary)
	rg.PUT("/applications/:id/status", r.HandleUpdateStatus)
	rg.GET("/dashboard", r.HandleDashboard)
}

// HandleListApplications handles GET /api/admin/applications
// Optional Query Filters: status, type, search, offset, limit
func (r *AdminRouter) HandleListApplications(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	list, err := r.reviews.ListApplications(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// HandleExportApplications handles GET /api/admin/applications/export.xlsx
// Takes the same filters as the list; paging is ignored.
func (r *AdminRouter) HandleExportApplications(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	export, err := r.reports.ApplicationsXLSX(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	writeExport(c, export)
}

// HandleGetApplication handles GET /api/admin/applications/:id
func (r *AdminRouter) HandleGetApplication(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	agg, err := r.reviews.GetApplication(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

// HandleApplicationSummary handles GET /api/admin/applications/:id/summary.pdf
func (r *AdminRouter) HandleApplicationSummary(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	export, err := r.reports.ApplicationPDF(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeExport(c, export)
}

// HandleUpdateStatus handles PUT /api/admin/applications/:id/status
// Request body: UpdateStatusDTO
func (r *AdminRouter) HandleUpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateStatusDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", req.Status)})
		return
	}

	app, err := r.reviews.UpdateStatus(c.Request.Context(), id, req, userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// HandleDashboard handles GET /api/admin/dashboard?days={days}
func (r *AdminRouter) HandleDashboard(c *gin.Context) {
	days, ok := parseIntQuery(c, "days")
	if !ok {
		return
	}
	n := 0
	if days != nil {
		n = *days
	}
	stats, err := r.reviews.Dashboard(c.Request.Context(), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func parseFilter(c *gin.Context) (model.ApplicationFilter, bool) {
	var filter model.ApplicationFilter
	if raw := c.Query("status"); raw != "" {
		status := model.ApplicationStatus(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", raw)})
			return filter, false
		}
		filter.Status = &status
	}
	if raw := c.Query("type"); raw != "" {
		appType, err := model.ParseApplicationType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return filter, false
		}
		filter.Type = &appType
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.Search = &search
	}
	offset, limit, ok := parsePaging(c)
	if !ok {
		return filter, false
	}
	filter.Offset, filter.Limit = offset, limit
	return filter, true
}

func writeExport(c *gin.Context, export *reports.Export) {
	slog.InfoContext(c.Request.Context(), "report exported",
		"file", export.Filename,
		"bytes", len(export.Data))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Data)
}
