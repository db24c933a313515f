package wizard

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/autosave"
	"github.com/OpenBPLS/bpls/internal/validation"
)

// StepForm is one page of the wizard.
type StepForm interface {
	// Step is the 1-based wizard step the form is shown on.
	Step() int
	// Validate checks the form's required fields without saving.
	Validate() error
	// ValidateAndSave validates and, on success, issues the authoritative save.
	ValidateAndSave(ctx context.Context) error
}

// Entity kinds used as autosave keys.
const (
	kindApplicationType     = "application_type"
	kindBusinessInformation = "business_information"
	kindOwnerInformation    = "owner_information"
	kindBusinessOperations  = "business_operations"
	kindBusinessLines       = "business_lines"
	kindDeclaration         = "declaration"
)

// draft is the in-memory copy of one autosaved entity. Edits are applied under
// the lock and a debounced save is scheduled; a save always writes the state
// current at the time it runs.
type draft[T any] struct {
	mu      sync.Mutex
	value   T
	key     autosave.EntityKey
	saver   *autosave.Autosaver
	persist func(ctx context.Context, v *T) error
}

func newDraft[T any](kind string, appID uuid.UUID, value T, saver *autosave.Autosaver, persist func(context.Context, *T) error) *draft[T] {
	return &draft[T]{
		value:   value,
		key:     autosave.EntityKey{Kind: kind, ApplicationID: appID},
		saver:   saver,
		persist: persist,
	}
}

func (d *draft[T]) snapshot() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

func (d *draft[T]) edit(fn func(v *T)) {
	d.mu.Lock()
	fn(&d.value)
	d.mu.Unlock()
	d.saver.Schedule(d.key, d.save)
}

func (d *draft[T]) save(ctx context.Context) error {
	v := d.snapshot()
	return d.persist(ctx, &v)
}

func (d *draft[T]) saveNow(ctx context.Context) error {
	return d.saver.SaveNow(ctx, d.key, d.save)
}

// flush runs a pending debounced save immediately.
func (d *draft[T]) flush(ctx context.Context) error {
	if !d.saver.Pending(d.key) {
		return nil
	}
	return d.saveNow(ctx)
}

// typeForm is step 1: choosing new, renewal or amendment.
type typeForm struct {
	appID uuid.UUID
	gw    Gateway
	saver *autosave.Autosaver

	mu      sync.Mutex
	appType model.ApplicationType
}

func (f *typeForm) Step() int { return validation.StepType }

func (f *typeForm) Type() model.ApplicationType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appType
}

// Select changes the chosen type. It is saved on Next.
func (f *typeForm) Select(t model.ApplicationType) {
	f.mu.Lock()
	f.appType = t
	f.mu.Unlock()
}

func (f *typeForm) Validate() error {
	return validation.ValidateApplicationType(f.Type())
}

func (f *typeForm) ValidateAndSave(ctx context.Context) error {
	t := f.Type()
	if err := validation.ValidateApplicationType(t); err != nil {
		return err
	}
	key := autosave.EntityKey{Kind: kindApplicationType, ApplicationID: f.appID}
	return f.saver.SaveNow(ctx, key, func(ctx context.Context) error {
		return f.gw.UpdateApplicationType(ctx, f.appID, t)
	})
}

// BusinessInfoForm is step 2.
type BusinessInfoForm struct {
	*draft[model.BusinessInformation]
}

func newBusinessInfoForm(appID uuid.UUID, existing *model.BusinessInformation, gw Gateway, saver *autosave.Autosaver) *BusinessInfoForm {
	value := model.BusinessInformation{OwnershipType: model.DefaultOwnershipType}
	if existing != nil {
		value = *existing
	}
	return &BusinessInfoForm{newDraft(kindBusinessInformation, appID, value, saver,
		func(ctx context.Context, v *model.BusinessInformation) error {
			return gw.SaveBusinessInformation(ctx, appID, v)
		})}
}

func (f *BusinessInfoForm) Step() int { return validation.StepBusinessInformation }

// Data returns a copy of the current values.
func (f *BusinessInfoForm) Data() model.BusinessInformation { return f.snapshot() }

// Edit applies a field change and schedules an autosave.
func (f *BusinessInfoForm) Edit(p model.BusinessInformationPatch) {
	f.edit(func(v *model.BusinessInformation) { v.Apply(p) })
}

func (f *BusinessInfoForm) Validate() error {
	v := f.snapshot()
	return validation.ValidateBusinessInformation(&v)
}

func (f *BusinessInfoForm) ValidateAndSave(ctx context.Context) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return f.saveNow(ctx)
}

// OwnerInfoForm is step 3. A form with no saved row starts from the user's profile.
type OwnerInfoForm struct {
	*draft[model.OwnerInformation]
	prefilled bool
}

func newOwnerInfoForm(appID uuid.UUID, existing *model.OwnerInformation, profile *model.OwnerInformationPatch, gw Gateway, saver *autosave.Autosaver) *OwnerInfoForm {
	var value model.OwnerInformation
	prefilled := false
	if existing != nil {
		value = *existing
	} else if profile != nil {
		value.FillBlanks(*profile)
		prefilled = true
	}
	return &OwnerInfoForm{
		draft: newDraft(kindOwnerInformation, appID, value, saver,
			func(ctx context.Context, v *model.OwnerInformation) error {
				return gw.SaveOwnerInformation(ctx, appID, v)
			}),
		prefilled: prefilled,
	}
}

func (f *OwnerInfoForm) Step() int { return validation.StepOwnerInformation }

// Prefilled reports whether the form was seeded from the user's profile.
func (f *OwnerInfoForm) Prefilled() bool { return f.prefilled }

func (f *OwnerInfoForm) Data() model.OwnerInformation { return f.snapshot() }

func (f *OwnerInfoForm) Edit(p model.OwnerInformationPatch) {
	f.edit(func(v *model.OwnerInformation) { v.Apply(p) })
}

func (f *OwnerInfoForm) Validate() error {
	v := f.snapshot()
	return validation.ValidateOwnerInformation(&v)
}

func (f *OwnerInfoForm) ValidateAndSave(ctx context.Context) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return f.saveNow(ctx)
}
