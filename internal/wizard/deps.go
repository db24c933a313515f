package wizard

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/autosave"
	"github.com/OpenBPLS/bpls/internal/uploads"
)

// Gateway is the part of the persistence gateway the wizard writes through.
// *service.Store implements it.
type Gateway interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error)
	UpdateCurrentStep(ctx context.Context, id uuid.UUID, step int) error
	UpdateApplicationType(ctx context.Context, id uuid.UUID, appType model.ApplicationType) error

	GetBusinessInformation(ctx context.Context, appID uuid.UUID) (*model.BusinessInformation, error)
	SaveBusinessInformation(ctx context.Context, appID uuid.UUID, info *model.BusinessInformation) error
	GetOwnerInformation(ctx context.Context, appID uuid.UUID) (*model.OwnerInformation, error)
	SaveOwnerInformation(ctx context.Context, appID uuid.UUID, owner *model.OwnerInformation) error
	GetBusinessOperations(ctx context.Context, appID uuid.UUID) (*model.BusinessOperations, error)
	SaveBusinessOperations(ctx context.Context, appID uuid.UUID, ops *model.BusinessOperations) error
	GetDeclaration(ctx context.Context, appID uuid.UUID) (*model.Declaration, error)
	SaveDeclaration(ctx context.Context, appID uuid.UUID, decl *model.Declaration) error

	ListBusinessLines(ctx context.Context, appID uuid.UUID) ([]model.BusinessLine, error)
	AddBusinessLine(ctx context.Context, appID uuid.UUID, line *model.BusinessLine) error
	UpdateBusinessLine(ctx context.Context, appID, lineID uuid.UUID, in model.BusinessLineInput) (*model.BusinessLine, error)
	RemoveBusinessLine(ctx context.Context, appID, lineID uuid.UUID) error
}

// Submitter runs the final cross-entity check and moves the application to submitted.
type Submitter interface {
	Submit(ctx context.Context, appID, userID uuid.UUID) (*model.Application, error)
}

// ProfileSource supplies the signed-in user's profile for owner pre-fill.
type ProfileSource interface {
	OwnerProfile(ctx context.Context, userID uuid.UUID) (model.OwnerInformationPatch, error)
}

// FileStore stores signature images.
type FileStore interface {
	Upload(ctx context.Context, kind uploads.Kind, filename string, reader io.Reader, size int64, mime string) (*uploads.FileMetadata, error)
	Remove(ctx context.Context, key string) error
}

// Deps are shared by every wizard session.
type Deps struct {
	Gateway     Gateway
	Submitter   Submitter
	Profiles    ProfileSource // optional
	Files       FileStore
	Coordinator *autosave.Coordinator
	Delay       time.Duration
	IdleTTL     time.Duration // zero keeps sessions until closed
}
