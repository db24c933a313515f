package wizard

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/autosave"
	"github.com/OpenBPLS/bpls/internal/uploads"
	"github.com/OpenBPLS/bpls/internal/validation"
)

// DeclarationForm is step 5: the drawn or uploaded signature and the agreement checkbox.
type DeclarationForm struct {
	*draft[model.Declaration]
	files FileStore
	now   func() time.Time
}

func newDeclarationForm(appID uuid.UUID, existing *model.Declaration, gw Gateway, files FileStore, saver *autosave.Autosaver) *DeclarationForm {
	var value model.Declaration
	if existing != nil {
		value = *existing
	}
	return &DeclarationForm{
		draft: newDraft(kindDeclaration, appID, value, saver,
			func(ctx context.Context, v *model.Declaration) error {
				return gw.SaveDeclaration(ctx, appID, v)
			}),
		files: files,
		now:   time.Now,
	}
}

func (f *DeclarationForm) Step() int { return validation.StepDeclaration }

func (f *DeclarationForm) Data() model.Declaration { return f.snapshot() }

func (f *DeclarationForm) Edit(p model.DeclarationPatch) {
	f.edit(func(v *model.Declaration) { v.Apply(p) })
}

// AttachSignature stores a signature image and saves the declaration right away.
// The previously stored image, if any, is removed once the new one is saved.
func (f *DeclarationForm) AttachSignature(ctx context.Context, filename string, r io.Reader, size int64, mime string) (*uploads.FileMetadata, error) {
	meta, err := f.files.Upload(ctx, uploads.KindSignature, filename, r, size, mime)
	if err != nil {
		return nil, err
	}

	var previous string
	f.mu.Lock()
	previous = f.value.SignatureKey
	f.value.SetSignature(meta.Key, meta.URL, f.now())
	f.mu.Unlock()

	if err := f.saveNow(ctx); err != nil {
		return nil, err
	}
	f.discard(ctx, previous)
	return meta, nil
}

// RemoveSignature clears the signature and deletes the stored image.
func (f *DeclarationForm) RemoveSignature(ctx context.Context) error {
	f.mu.Lock()
	previous := f.value.SignatureKey
	f.value.ClearSignature()
	f.mu.Unlock()

	if err := f.saveNow(ctx); err != nil {
		return err
	}
	f.discard(ctx, previous)
	return nil
}

func (f *DeclarationForm) discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := f.files.Remove(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to remove replaced signature", "key", key, "error", err)
	}
}

func (f *DeclarationForm) Validate() error {
	v := f.snapshot()
	return validation.ValidateDeclaration(&v)
}

func (f *DeclarationForm) ValidateAndSave(ctx context.Context) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return f.saveNow(ctx)
}
