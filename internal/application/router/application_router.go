package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/application/service"
	"github.com/OpenBPLS/bpls/internal/uploads"
	"github.com/OpenBPLS/bpls/internal/wizard"
)

// ApplicationRouter serves the applicant's own applications and their
// supporting documents.
type ApplicationRouter struct {
	apps     *service.ApplicationService
	sessions *wizard.Sessions
	files    *uploads.HTTPHandler
}

func NewApplicationRouter(apps *service.ApplicationService, sessions *wizard.Sessions, files *uploads.HTTPHandler) *ApplicationRouter {
	return &ApplicationRouter{apps: apps, sessions: sessions, files: files}
}

// RegisterRoutes mounts the applicant endpoints on rg, which must already require auth.
func (r *ApplicationRouter) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", r.HandleCreateApplication)
	rg.GET("", r.HandleListApplications)
	rg.GET("/:id", r.HandleGetApplication)
	rg.DELETE("/:id", r.HandleDeleteApplication)
	rg.GET("/:id/documents", r.HandleListDocuments)
	rg.POST("/:id/documents", r.HandleAddDocument)
	rg.DELETE("/:id/documents/:docId", r.HandleRemoveDocument)
}

// HandleCreateApplication handles POST /api/applications
// Request body: CreateApplicationDTO
func (r *ApplicationRouter) HandleCreateApplication(c *gin.Context) {
	var req model.CreateApplicationDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	app, err := r.apps.Create(c.Request.Context(), userID(c), req.Type)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// HandleListApplications handles GET /api/applications?offset={offset}&limit={limit}
// This is the applicant's status view.
func (r *ApplicationRouter) HandleListApplications(c *gin.Context) {
	offset, limit, ok := parsePaging(c)
	if !ok {
		return
	}
	list, err := r.apps.ListMine(c.Request.Context(), userID(c), offset, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// HandleGetApplication handles GET /api/applications/:id
func (r *ApplicationRouter) HandleGetApplication(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	agg, err := r.apps.GetAggregate(c.Request.Context(), id, userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

// HandleDeleteApplication handles DELETE /api/applications/:id
// Only drafts can be deleted. An open wizard on the draft is dropped with it.
func (r *ApplicationRouter) HandleDeleteApplication(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := r.apps.Delete(c.Request.Context(), id, userID(c)); err != nil {
		writeError(c, err)
		return
	}
	r.sessions.Discard(id)
	c.Status(http.StatusNoContent)
}

// HandleListDocuments handles GET /api/applications/:id/documents
func (r *ApplicationRouter) HandleListDocuments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	docs, err := r.apps.ListDocuments(c.Request.Context(), id, userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// HandleAddDocument handles POST /api/applications/:id/documents
// Request body: multipart form with a "file" field.
func (r *ApplicationRouter) HandleAddDocument(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := r.apps.GetEditable(ctx, id, userID(c)); err != nil {
		writeError(c, err)
		return
	}

	meta, err := r.files.Receive(c, uploads.KindDocument)
	if err != nil {
		uploads.WriteError(c, err)
		return
	}

	doc := &model.Document{
		Name:     meta.Name,
		Key:      meta.Key,
		URL:      meta.URL,
		Size:     meta.Size,
		MimeType: meta.MimeType,
	}
	if err := r.apps.AddDocument(ctx, id, userID(c), doc); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// HandleRemoveDocument handles DELETE /api/applications/:id/documents/:docId
func (r *ApplicationRouter) HandleRemoveDocument(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	docID, ok := parseID(c, "docId")
	if !ok {
		return
	}
	if err := r.apps.RemoveDocument(c.Request.Context(), id, userID(c), docID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
