package router

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/application/service"
	"github.com/OpenBPLS/bpls/internal/uploads"
	"github.com/OpenBPLS/bpls/internal/validation"
	"github.com/OpenBPLS/bpls/internal/wizard"
)

// WizardRouter exposes the five-step application wizard. Every request resumes
// the caller's session for the application or opens one.
type WizardRouter struct {
	sessions *wizard.Sessions
	files    *uploads.HTTPHandler
}

func NewWizardRouter(sessions *wizard.Sessions, files *uploads.HTTPHandler) *WizardRouter {
	return &WizardRouter{sessions: sessions, files: files}
}

// RegisterRoutes mounts the wizard endpoints on rg, which must already require
// auth and carry the :id application parameter.
func (r *WizardRouter) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", r.HandleOpen)
	rg.GET("", r.HandleState)
	rg.DELETE("", r.HandleClose)
	rg.GET("/data", r.HandleData)
	rg.POST("/save", r.HandleSave)

	rg.PUT("/type", r.HandleSelectType)
	rg.PATCH("/business-information", r.HandleEditBusinessInformation)
	rg.PATCH("/owner-information", r.HandleEditOwnerInformation)
	rg.PATCH("/business-operations", r.HandleEditBusinessOperations)
	rg.POST("/business-lines", r.HandleAddBusinessLine)
	rg.PUT("/business-lines/:lineId", r.HandleUpdateBusinessLine)
	rg.DELETE("/business-lines/:lineId", r.HandleRemoveBusinessLine)
	rg.PATCH("/declaration", r.HandleEditDeclaration)
	rg.POST("/signature", r.HandleAttachSignature)
	rg.DELETE("/signature", r.HandleRemoveSignature)

	rg.POST("/next", r.HandleNext)
	rg.POST("/back", r.HandleBack)
	rg.POST("/jump", r.HandleJump)
}

// wizardView is the full content of every step, for rendering the forms.
type wizardView struct {
	State               wizard.State              `json:"state"`
	Type                model.ApplicationType     `json:"type"`
	BusinessInformation model.BusinessInformation `json:"businessInformation"`
	OwnerInformation    model.OwnerInformation    `json:"ownerInformation"`
	OwnerPrefilled      bool                      `json:"ownerPrefilled"`
	BusinessOperations  model.BusinessOperations  `json:"businessOperations"`
	BusinessLines       []model.BusinessLine      `json:"businessLines"`
	Declaration         model.Declaration         `json:"declaration"`
}

type editResponse struct {
	State wizard.State `json:"state"`
	Data  any          `json:"data"`
}

type selectTypeRequest struct {
	Type model.ApplicationType `json:"type" binding:"required"`
}

type jumpRequest struct {
	Step int `json:"step" binding:"required"`
}

// session resumes or opens the wizard for the :id application, writing the
// error response itself when it cannot.
func (r *WizardRouter) session(c *gin.Context) (*wizard.Controller, bool) {
	appID, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	ctl, err := r.sessions.Open(c.Request.Context(), appID, userID(c))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return ctl, true
}

// editable resumes the session and rejects edits after submission.
func (r *WizardRouter) editable(c *gin.Context) (*wizard.Controller, bool) {
	ctl, ok := r.session(c)
	if !ok {
		return nil, false
	}
	if ctl.State().Submitted {
		writeError(c, wizard.ErrSubmitted)
		return nil, false
	}
	return ctl, true
}

// HandleOpen handles POST /api/applications/:id/wizard
func (r *WizardRouter) HandleOpen(c *gin.Context) {
	ctl, ok := r.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctl.State())
}

// HandleState handles GET /api/applications/:id/wizard
func (r *WizardRouter) HandleState(c *gin.Context) {
	r.HandleOpen(c)
}

// HandleClose handles DELETE /api/applications/:id/wizard
// Pending edits are saved before the session is dropped.
func (r *WizardRouter) HandleClose(c *gin.Context) {
	appID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := r.sessions.Get(appID, userID(c)); err != nil {
		if errors.Is(err, wizard.ErrNoSession) {
			c.Status(http.StatusNoContent)
			return
		}
		writeError(c, err)
		return
	}
	if err := r.sessions.Close(c.Request.Context(), appID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleData handles GET /api/applications/:id/wizard/data
func (r *WizardRouter) HandleData(c *gin.Context) {
	ctl, ok := r.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, wizardView{
		State:               ctl.State(),
		Type:                ctl.Type.Type(),
		BusinessInformation: ctl.Business.Data(),
		OwnerInformation:    ctl.Owner.Data(),
		OwnerPrefilled:      ctl.Owner.Prefilled(),
		BusinessOperations:  ctl.Operations.Data(),
		BusinessLines:       ctl.Operations.Lines(),
		Declaration:         ctl.Declaration.Data(),
	})
}

// HandleSave handles POST /api/applications/:id/wizard/save
// Runs every pending autosave now.
func (r *WizardRouter) HandleSave(c *gin.Context) {
	ctl, ok := r.session(c)
	if !ok {
		return
	}
	if err := ctl.Flush(c.Request.Context()); err != nil {
		writeStateError(c, ctl.State(), err)
		return
	}
	c.JSON(http.StatusOK, ctl.State())
}

// HandleSelectType handles PUT /api/applications/:id/wizard/type
// The choice is saved when the applicant moves on from step 1.
func (r *WizardRouter) HandleSelectType(c *gin.Context) {
	ctl, ok := r.editable(c)
	if !ok {
		return
	}
	var req selectTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	ctl.Type.Select(req.Type)
	c.JSON(http.StatusOK, editResponse{State: ctl.State(), Data: ctl.Type.Type()})
}

// HandleEditBusinessInformation handles PATCH /api/applications/:id/wizard/business-information
// Request body: BusinessInformationPatch. Saved after the quiet interval.
func (r *WizardRouter) HandleEditBusinessInformation(c *gin.Context) {
	ctl, ok := r.editable(c)
	if !ok {
		return
	}
	var patch model.BusinessInformationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	ctl.Business.Edit(patch)
	c.JSON(http.StatusOK, editResponse{State: ctl.State(), Data: ctl.Business.Data()})
}

// HandleEditOwnerInformation handles PATCH /api/applications/:id/wizard/owner-information
// Request body: OwnerInformationPatch. Saved after the quiet interval.
func (r *WizardRouter) HandleEditOwnerInformation(c *gin.Context) {
	ctl, ok := r.editable(c)
	if !ok {
		return
	}
	var patch model.OwnerInformationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	ctl.Owner.Edit(patch)
	c.JSON(http.StatusOK, editResponse{State: ctl.State(), Data: ctl.Owner.Data()})
}

// HandleEditBusinessOperations handles PATCH /api/applications/:id/wizard/business-operations
// Request body: BusinessOperationsPatch. Saved after the quiet interval.
func (r *WizardRouter) HandleEditBusinessOperations(c *gin.Context) {
	ctl, ok := r.editable(c)
	if !ok {
		return
	}
	var patch model.BusinessOperationsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	ctl.Operations.Edit(patch)
	c.JSON(http.StatusOK, editResponse{State: ctl.State(), Data: ctl.Operations.Data()})
}

// HandleAddBusinessLine handles POST /api/applications/:id/wizard/business-lines
// Request body: BusinessLineInput. Saved immediately.
func (r *WizardRouter) HandleAddBusinessLine(c *gin.Context) {
	ctl, ok := r.editable(c)
	if !ok {
		return
	}
	var in model.BusinessLineInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	line, err := ctl.Operations.AddLine(c.Request.Context(), in)
	if err != nil {
		writeStateError(c, ctl.State(), err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

// HandleUpdateBusinessLine handles PUT /api/applications/:id/wizard/business-lines/:lineId
func (r *WizardRouter) HandleUpdateBusinessLine(c *gin.Context) {
	ctl, ok := r.editable(c)
	if !ok {
		return
	}
	lineID, ok := parseID(c, "lineId")
	if !ok {
		return
	}
	var in model.BusinessLineInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	line, err := ctl.Operations.UpdateLine(c.Request.Context(), lineID, in)
	if err != nil {
		writeStateError(c, ctl.State(), err)
		return
	}
	c.JSON(http.StatusOK, line)
}

// HandleRemoveBusinessLine handles DELETE /api/applications/:id/wizard/business-lines/:lineId
func (r *WizardRouter) HandleRemoveBusinessLine(c *gin.Context) {
	ctl, ok := r.editable(c)
	if !ok {
		return
	}
	lineID, ok := parseID(c, "lineId")
	if !ok {
		return
	}
	if err := ctl.Operations.RemoveLine(c.Request.Context(), lineID); err != nil {
		writeStateError(c, ctl.State(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleEditDeclaration handles PATCH /api/applications/:id/wizard/declaration
// Request body: DeclarationPatch. Saved after the quiet interval.
func (r *WizardRouter) HandleEditDeclaration(c *gin.Context) {
	ctl, ok := r.editable(c)
	if !ok {
		return
	}
	var patch model.DeclarationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	ctl.Declaration.Edit(patch)
	c.JSON(http.StatusOK, editResponse{State: ctl.State(), Data: ctl.Declaration.Data()})
}

// HandleAttachSignature handles POST /api/applications/:id/wizard/signature
// Request body: multipart form with a "file" field holding the signature image.
func (r *WizardRouter) HandleAttachSignature(c *gin.Context) {
	ctl, ok := r.editable(c)
	if !ok {
		return
	}
	file, header, err := r.files.OpenFile(c)
	if err != nil {
		uploads.WriteError(c, err)
		return
	}
	defer file.Close()

	meta, err := ctl.Declaration.AttachSignature(c.Request.Context(), header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeStateError(c, ctl.State(), err)
		return
	}
	c.JSON(http.StatusCreated, editResponse{State: ctl.State(), Data: meta})
}

// HandleRemoveSignature handles DELETE /api/applications/:id/wizard/signature
func (r *WizardRouter) HandleRemoveSignature(c *gin.Context) {
	ctl, ok := r.editable(c)
	if !ok {
		return
	}
	if err := ctl.Declaration.RemoveSignature(c.Request.Context()); err != nil {
		writeStateError(c, ctl.State(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleNext handles POST /api/applications/:id/wizard/next
// On the last step this submits the application and closes the session; the
// returned state then carries the status view redirect.
func (r *WizardRouter) HandleNext(c *gin.Context) {
	ctl, ok := r.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	state, err := ctl.Next(ctx)
	if err != nil {
		writeStateError(c, state, err)
		return
	}
	if state.Submitted {
		r.closeSubmitted(c, ctl.ApplicationID())
	}
	c.JSON(http.StatusOK, state)
}

// HandleBack handles POST /api/applications/:id/wizard/back
func (r *WizardRouter) HandleBack(c *gin.Context) {
	ctl, ok := r.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctl.Back(c.Request.Context()))
}

// HandleJump handles POST /api/applications/:id/wizard/jump
// Request body: {"step": n} with n before the current step.
func (r *WizardRouter) HandleJump(c *gin.Context) {
	ctl, ok := r.session(c)
	if !ok {
		return
	}
	var req jumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	state, err := ctl.JumpTo(c.Request.Context(), req.Step)
	if err != nil {
		writeStateError(c, state, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (r *WizardRouter) closeSubmitted(c *gin.Context, appID uuid.UUID) {
	if err := r.sessions.Close(c.Request.Context(), appID); err != nil {
		slog.WarnContext(c.Request.Context(), "failed to close submitted wizard session",
			"applicationID", appID,
			"error", err)
	}
}

// writeStateError reports a failed wizard action along with the state the
// step indicator should now show.
func writeStateError(c *gin.Context, state wizard.State, err error) {
	var missing *validation.MissingFieldsError
	switch {
	case errors.As(err, &missing):
		msg := state.LastError
		if msg == "" {
			msg = wizard.Message(err)
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":         msg,
			"step":          validation.StepOf(err),
			"missingFields": missing.Fields,
			"state":         state,
		})
	case errors.Is(err, service.ErrPersistence):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": wizard.SaveFailedMessage,
			"state": state,
		})
	case errors.Is(err, wizard.ErrInvalidStep):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "state": state})
	default:
		writeError(c, err)
	}
}
