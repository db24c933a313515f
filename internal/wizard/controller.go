package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/application/service"
	"github.com/OpenBPLS/bpls/internal/autosave"
	"github.com/OpenBPLS/bpls/internal/metrics"
	"github.com/OpenBPLS/bpls/internal/validation"
)

// StatusViewPath is where the applicant lands after a successful submission.
const StatusViewPath = "/applications"

// SaveFailedMessage is shown for any persistence failure.
const SaveFailedMessage = "Save failed, please retry."

var (
	ErrInvalidStep = errors.New("invalid step")
	ErrSubmitted   = errors.New("application already submitted")
)

// State is what the step indicator and the Next/Back controls render.
type State struct {
	ApplicationID uuid.UUID               `json:"applicationId"`
	Status        model.ApplicationStatus `json:"status"`
	CurrentStep   int                     `json:"currentStep"`
	TotalSteps    int                     `json:"totalSteps"`
	CanAdvance    bool                    `json:"canAdvance"`
	LastError     string                  `json:"lastError,omitempty"`
	MissingFields []string                `json:"missingFields,omitempty"`
	SaveError     string                  `json:"saveError,omitempty"`
	Saving        bool                    `json:"saving"`
	Submitted     bool                    `json:"submitted"`
	Redirect      string                  `json:"redirect,omitempty"`
}

// Controller drives one applicant through the five steps of one application.
type Controller struct {
	appID     uuid.UUID
	userID    uuid.UUID
	gw        Gateway
	submitter Submitter
	saver     *autosave.Autosaver

	Type        *typeForm
	Business    *BusinessInfoForm
	Owner       *OwnerInfoForm
	Operations  *OperationsForm
	Declaration *DeclarationForm
	forms       [validation.TotalSteps]StepForm

	nav  sync.Mutex // serializes Next, Back and JumpTo
	busy atomic.Bool
	used atomic.Int64

	mu        sync.Mutex
	step      int
	status    model.ApplicationStatus
	lastErr   error
	submitted bool
}

// Open loads an editable application owned by userID and positions the wizard
// on its saved step.
func Open(ctx context.Context, deps Deps, appID, userID uuid.UUID) (*Controller, error) {
	gw := deps.Gateway
	app, err := gw.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app.OwnerUserID != userID {
		return nil, service.ErrForbidden
	}
	if !app.Status.Editable() {
		return nil, fmt.Errorf("%w: application is %s", service.ErrNotEditable, app.Status)
	}

	info, err := gw.GetBusinessInformation(ctx, appID)
	if err != nil {
		return nil, err
	}
	owner, err := gw.GetOwnerInformation(ctx, appID)
	if err != nil {
		return nil, err
	}
	ops, err := gw.GetBusinessOperations(ctx, appID)
	if err != nil {
		return nil, err
	}
	lines, err := gw.ListBusinessLines(ctx, appID)
	if err != nil {
		return nil, err
	}
	decl, err := gw.GetDeclaration(ctx, appID)
	if err != nil {
		return nil, err
	}

	var profile *model.OwnerInformationPatch
	if owner == nil && deps.Profiles != nil {
		p, err := deps.Profiles.OwnerProfile(ctx, userID)
		if err != nil {
			slog.WarnContext(ctx, "owner pre-fill unavailable", "userID", userID, "error", err)
		} else {
			profile = &p
		}
	}

	saver := autosave.NewAutosaver(deps.Delay, deps.Coordinator)
	c := &Controller{
		appID:       appID,
		userID:      userID,
		gw:          gw,
		submitter:   deps.Submitter,
		saver:       saver,
		Type:        &typeForm{appID: appID, gw: gw, saver: saver, appType: app.Type},
		Business:    newBusinessInfoForm(appID, info, gw, saver),
		Owner:       newOwnerInfoForm(appID, owner, profile, gw, saver),
		Operations:  newOperationsForm(appID, ops, lines, gw, saver),
		Declaration: newDeclarationForm(appID, decl, gw, deps.Files, saver),
		step:        clampStep(app.CurrentStep),
		status:      app.Status,
	}
	c.forms = [validation.TotalSteps]StepForm{c.Type, c.Business, c.Owner, c.Operations, c.Declaration}
	return c, nil
}

// ApplicationID returns the id of the application being edited.
func (c *Controller) ApplicationID() uuid.UUID { return c.appID }

// UserID returns the owner of the session.
func (c *Controller) UserID() uuid.UUID { return c.userID }

func (c *Controller) touch(now time.Time) { c.used.Store(now.UnixNano()) }

func (c *Controller) lastUsed() time.Time { return time.Unix(0, c.used.Load()) }

func (c *Controller) setStatus(status model.ApplicationStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

func (c *Controller) isSubmitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted
}

// Form returns the form shown on step.
func (c *Controller) Form(step int) (StepForm, error) {
	if step < 1 || step > validation.TotalSteps {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	return c.forms[step-1], nil
}

// Next validates the current step and saves it. On success it advances; on the
// last step it runs the submission check, which may rewind to the first step
// that no longer passes. Store round trips run outside the state lock so State
// keeps answering, with Saving set, while they are in flight.
func (c *Controller) Next(ctx context.Context) (State, error) {
	c.nav.Lock()
	defer c.nav.Unlock()

	c.mu.Lock()
	if c.submitted {
		defer c.mu.Unlock()
		return c.stateLocked(), ErrSubmitted
	}
	step := c.step
	c.mu.Unlock()

	if err := c.whileSaving(func() error { return c.forms[step-1].ValidateAndSave(ctx) }); err != nil {
		return c.failed("next", step, err), err
	}

	if step < validation.TotalSteps {
		next := step + 1
		if err := c.whileSaving(func() error { return c.gw.UpdateCurrentStep(ctx, c.appID, next) }); err != nil {
			return c.failed("next", step, err), err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.step = next
		c.lastErr = nil
		metrics.WizardTransitionsTotal.WithLabelValues("next", "advanced").Inc()
		return c.stateLocked(), nil
	}

	return c.submit(ctx)
}

func (c *Controller) submit(ctx context.Context) (State, error) {
	step := validation.TotalSteps
	// the check reads the store, so edits still waiting on a debounce go first
	var app *model.Application
	err := c.whileSaving(func() error {
		if err := c.Flush(ctx); err != nil {
			return err
		}
		var err error
		app, err = c.submitter.Submit(ctx, c.appID, c.userID)
		return err
	})
	if err != nil {
		var subErr *validation.SubmissionError
		if errors.As(err, &subErr) {
			rewound := clampStep(subErr.Step)
			if stepErr := c.gw.UpdateCurrentStep(ctx, c.appID, rewound); stepErr != nil {
				slog.WarnContext(ctx, "failed to persist rewound step", "applicationID", c.appID, "error", stepErr)
			}
			c.mu.Lock()
			c.step = rewound
			c.mu.Unlock()
			return c.failed("submit", rewound, subErr.Cause), err
		}
		return c.failed("submit", step, err), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted = true
	c.status = app.Status
	c.lastErr = nil
	c.saver.Close()
	metrics.WizardTransitionsTotal.WithLabelValues("submit", "submitted").Inc()
	slog.InfoContext(ctx, "application submitted through wizard", "applicationID", c.appID)
	return c.stateLocked(), nil
}

// Back moves one step back without validating. It never fails; a step that
// cannot be recorded is only logged.
func (c *Controller) Back(ctx context.Context) State {
	c.nav.Lock()
	defer c.nav.Unlock()

	c.mu.Lock()
	moved := c.step > 1 && !c.submitted
	if moved {
		c.step--
	}
	c.lastErr = nil
	step := c.step
	c.mu.Unlock()

	if moved {
		c.recordStep(ctx, step)
	}
	metrics.WizardTransitionsTotal.WithLabelValues("back", "moved").Inc()
	return c.State()
}

// JumpTo moves to an earlier step. Steps at or after the current one are rejected.
func (c *Controller) JumpTo(ctx context.Context, step int) (State, error) {
	c.nav.Lock()
	defer c.nav.Unlock()

	c.mu.Lock()
	if c.submitted || step < 1 || step >= c.step {
		defer c.mu.Unlock()
		metrics.WizardTransitionsTotal.WithLabelValues("jump", "rejected").Inc()
		return c.stateLocked(), fmt.Errorf("%w: cannot jump from %d to %d", ErrInvalidStep, c.step, step)
	}
	c.step = step
	c.lastErr = nil
	c.mu.Unlock()

	c.recordStep(ctx, step)
	metrics.WizardTransitionsTotal.WithLabelValues("jump", "moved").Inc()
	return c.State(), nil
}

// whileSaving runs fn with the save-in-progress flag raised.
func (c *Controller) whileSaving(fn func() error) error {
	c.busy.Store(true)
	defer c.busy.Store(false)
	return fn()
}

// recordStep stores the step the applicant is on so a reopened session resumes there.
func (c *Controller) recordStep(ctx context.Context, step int) {
	if err := c.gw.UpdateCurrentStep(ctx, c.appID, step); err != nil {
		slog.WarnContext(ctx, "failed to persist current step", "applicationID", c.appID, "step", step, "error", err)
	}
}

// State returns the current wizard state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Flush runs every pending debounced save now.
func (c *Controller) Flush(ctx context.Context) error {
	return errors.Join(
		c.Business.flush(ctx),
		c.Owner.flush(ctx),
		c.Operations.flush(ctx),
		c.Declaration.flush(ctx),
	)
}

// Close flushes pending saves and stops the session's autosaver.
func (c *Controller) Close(ctx context.Context) error {
	err := c.Flush(ctx)
	c.saver.Close()
	c.saver.Wait()
	return err
}

// failed records err as the last error and returns the resulting state.
func (c *Controller) failed(action string, step int, err error) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail(action, step, err)
	return c.stateLocked()
}

func (c *Controller) fail(action string, step int, err error) {
	c.lastErr = err
	outcome := "error"
	if errors.Is(err, validation.ErrMissingFields) {
		outcome = "invalid"
		metrics.ValidationFailuresTotal.WithLabelValues(fmt.Sprint(step)).Inc()
	}
	metrics.WizardTransitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (c *Controller) stateLocked() State {
	s := State{
		ApplicationID: c.appID,
		Status:        c.status,
		CurrentStep:   c.step,
		TotalSteps:    validation.TotalSteps,
		Saving:        c.busy.Load() || c.saver.Saving(),
		Submitted:     c.submitted,
	}
	if c.submitted {
		s.Redirect = StatusViewPath
		return s
	}
	s.CanAdvance = c.forms[c.step-1].Validate() == nil
	if c.lastErr != nil {
		s.LastError = Message(c.lastErr)
		var missing *validation.MissingFieldsError
		if errors.As(c.lastErr, &missing) {
			s.MissingFields = missing.Fields
		}
	}
	if err := c.saver.LastError(); err != nil {
		s.SaveError = Message(err)
	}
	return s
}

// Message turns an error into the text shown to the applicant.
func Message(err error) string {
	if errors.Is(err, service.ErrPersistence) {
		return SaveFailedMessage
	}
	return err.Error()
}

func clampStep(step int) int {
	return max(1, min(step, validation.TotalSteps))
}
