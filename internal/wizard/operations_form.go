package wizard

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/autosave"
	"github.com/OpenBPLS/bpls/internal/validation"
)

// OperationsForm is step 4: business operations, autosaved, plus the business
// lines, which are persisted one by one on add, update and remove.
type OperationsForm struct {
	*draft[model.BusinessOperations]

	appID uuid.UUID
	gw    Gateway

	linesMu sync.Mutex
	lines   []model.BusinessLine
}

func newOperationsForm(appID uuid.UUID, existing *model.BusinessOperations, lines []model.BusinessLine, gw Gateway, saver *autosave.Autosaver) *OperationsForm {
	var value model.BusinessOperations
	if existing != nil {
		value = *existing
	}
	return &OperationsForm{
		draft: newDraft(kindBusinessOperations, appID, value, saver,
			func(ctx context.Context, v *model.BusinessOperations) error {
				return gw.SaveBusinessOperations(ctx, appID, v)
			}),
		appID: appID,
		gw:    gw,
		lines: lines,
	}
}

func (f *OperationsForm) Step() int { return validation.StepBusinessOperations }

func (f *OperationsForm) Data() model.BusinessOperations { return f.snapshot() }

func (f *OperationsForm) Edit(p model.BusinessOperationsPatch) {
	f.edit(func(v *model.BusinessOperations) { v.Apply(p) })
}

// Lines returns a copy of the business lines in the order they were added.
func (f *OperationsForm) Lines() []model.BusinessLine {
	f.linesMu.Lock()
	defer f.linesMu.Unlock()
	return append([]model.BusinessLine(nil), f.lines...)
}

// AddLine validates and persists a new business line.
func (f *OperationsForm) AddLine(ctx context.Context, in model.BusinessLineInput) (*model.BusinessLine, error) {
	line := model.BusinessLine{}
	line.Apply(in)
	if err := validation.ValidateBusinessLine(line); err != nil {
		return nil, err
	}
	err := f.saver.SaveNow(ctx, f.linesKey(), func(ctx context.Context) error {
		return f.gw.AddBusinessLine(ctx, f.appID, &line)
	})
	if err != nil {
		return nil, err
	}

	f.linesMu.Lock()
	f.lines = append(f.lines, line)
	f.linesMu.Unlock()
	return &line, nil
}

// UpdateLine validates and persists a change to an existing business line.
func (f *OperationsForm) UpdateLine(ctx context.Context, lineID uuid.UUID, in model.BusinessLineInput) (*model.BusinessLine, error) {
	candidate := model.BusinessLine{}
	candidate.Apply(in)
	if err := validation.ValidateBusinessLine(candidate); err != nil {
		return nil, err
	}

	var updated *model.BusinessLine
	err := f.saver.SaveNow(ctx, f.linesKey(), func(ctx context.Context) error {
		var err error
		updated, err = f.gw.UpdateBusinessLine(ctx, f.appID, lineID, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	f.linesMu.Lock()
	for i := range f.lines {
		if f.lines[i].ID == lineID {
			f.lines[i] = *updated
		}
	}
	f.linesMu.Unlock()
	return updated, nil
}

// RemoveLine deletes a business line.
func (f *OperationsForm) RemoveLine(ctx context.Context, lineID uuid.UUID) error {
	err := f.saver.SaveNow(ctx, f.linesKey(), func(ctx context.Context) error {
		return f.gw.RemoveBusinessLine(ctx, f.appID, lineID)
	})
	if err != nil {
		return fmt.Errorf("failed to remove business line %s: %w", lineID, err)
	}

	f.linesMu.Lock()
	for i := range f.lines {
		if f.lines[i].ID == lineID {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			break
		}
	}
	f.linesMu.Unlock()
	return nil
}

func (f *OperationsForm) Validate() error {
	return validation.ValidateBusinessLines(f.Lines())
}

func (f *OperationsForm) ValidateAndSave(ctx context.Context) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return f.saveNow(ctx)
}

func (f *OperationsForm) linesKey() autosave.EntityKey {
	return autosave.EntityKey{Kind: kindBusinessLines, ApplicationID: f.appID}
}
