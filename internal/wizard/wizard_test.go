package wizard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/application/service"
	"github.com/OpenBPLS/bpls/internal/autosave"
	"github.com/OpenBPLS/bpls/internal/config"
	"github.com/OpenBPLS/bpls/internal/database"
	"github.com/OpenBPLS/bpls/internal/uploads"
	"github.com/OpenBPLS/bpls/internal/validation"
)

type fakeFiles struct {
	mu      sync.Mutex
	n       int
	removed []string
}

func (f *fakeFiles) Upload(ctx context.Context, kind uploads.Kind, filename string, r io.Reader, size int64, mime string) (*uploads.FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	key := uuid.NewString() + ".png"
	return &uploads.FileMetadata{ID: uuid.New(), Kind: kind, Name: filename, Key: key, URL: "/api/uploads/" + key, Size: size, MimeType: "image/png"}, nil
}

func (f *fakeFiles) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	return nil
}

type fakeProfiles struct {
	patch model.OwnerInformationPatch
}

func (p fakeProfiles) OwnerProfile(ctx context.Context, userID uuid.UUID) (model.OwnerInformationPatch, error) {
	return p.patch, nil
}

// failingGateway fails business information saves with a store error.
type failingGateway struct {
	Gateway
}

func (g failingGateway) SaveBusinessInformation(ctx context.Context, appID uuid.UUID, info *model.BusinessInformation) error {
	return &service.PersistenceError{Op: "save business information", Err: errors.New("connection refused")}
}

type fixture struct {
	store *service.Store
	deps  Deps
	files *fakeFiles
	user  uuid.UUID
	app   *model.Application
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{
		Driver:       "sqlite",
		SQLitePath:   filepath.Join(t.TempDir(), "wizard.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, model.Models()...))
	t.Cleanup(func() { _ = database.Close(db) })

	store := service.NewStore(db)
	files := &fakeFiles{}
	user := uuid.New()
	app, err := store.CreateApplication(context.Background(), user, model.ApplicationTypeNew)
	require.NoError(t, err)

	return &fixture{
		store: store,
		files: files,
		user:  user,
		app:   app,
		deps: Deps{
			Gateway:     store,
			Submitter:   service.NewSubmissionService(store, service.NewStatusMachine(), nil),
			Files:       files,
			Coordinator: autosave.NewCoordinator(nil),
			Delay:       10 * time.Millisecond,
		},
	}
}

func (f *fixture) open(t *testing.T) *Controller {
	t.Helper()
	c, err := Open(context.Background(), f.deps, f.app.ID, f.user)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func str(s string) *string { return &s }
func num(n int) *int       { return &n }
func yes() *bool           { b := true; return &b }

func fillBusiness(c *Controller) {
	c.Business.Edit(model.BusinessInformationPatch{
		BusinessName:     str("Aling Nena Sari-Sari"),
		TIN:              str("123-456-789-000"),
		Street:           str("12 Rizal St"),
		Barangay:         str("Poblacion"),
		CityMunicipality: str("Tagum"),
		Province:         str("Davao del Norte"),
		ZipCode:          str("8100"),
		MobileNumber:     str("09171234567"),
		Email:            str("nena@example.com"),
	})
}

func fillOwner(c *Controller) {
	c.Owner.Edit(model.OwnerInformationPatch{
		Surname:          str("Reyes"),
		GivenName:        str("Nena"),
		Age:              num(52),
		Sex:              str("female"),
		CivilStatus:      str("widowed"),
		Nationality:      str("Filipino"),
		Street:           str("12 Rizal St"),
		Barangay:         str("Poblacion"),
		CityMunicipality: str("Tagum"),
		Province:         str("Davao del Norte"),
		ZipCode:          str("8100"),
	})
}

func addLine(t *testing.T, c *Controller) {
	t.Helper()
	_, err := c.Operations.AddLine(context.Background(), model.BusinessLineInput{LineOfBusiness: "Retail", Units: 1})
	require.NoError(t, err)
}

func sign(t *testing.T, c *Controller) {
	t.Helper()
	_, err := c.Declaration.AttachSignature(context.Background(), "sig.png", bytes.NewReader([]byte("png")), 3, "image/png")
	require.NoError(t, err)
}

// advanceTo walks a fresh wizard to step, filling each step on the way.
func advanceTo(t *testing.T, c *Controller, step int) {
	t.Helper()
	ctx := context.Background()
	for c.State().CurrentStep < step {
		switch c.State().CurrentStep {
		case validation.StepBusinessInformation:
			fillBusiness(c)
		case validation.StepOwnerInformation:
			fillOwner(c)
		case validation.StepBusinessOperations:
			addLine(t, c)
		}
		_, err := c.Next(ctx)
		require.NoError(t, err)
	}
}

func TestOpen_StartsOnSavedStep(t *testing.T) {
	f := setup(t)
	c := f.open(t)

	state := c.State()
	assert.Equal(t, 1, state.CurrentStep)
	assert.Equal(t, 5, state.TotalSteps)
	assert.True(t, state.CanAdvance, "type is already chosen")
	assert.Equal(t, model.OwnershipSingleProprietorship, c.Business.Data().OwnershipType)
}

func TestOpen_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := Open(ctx, f.deps, f.app.ID, uuid.New())
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = Open(ctx, f.deps, uuid.New(), f.user)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestNext_ScenarioA_OnlyBusinessName(t *testing.T) {
	f := setup(t)
	c := f.open(t)
	ctx := context.Background()
	advanceTo(t, c, validation.StepBusinessInformation)

	c.Business.Edit(model.BusinessInformationPatch{BusinessName: str("Aling Nena Sari-Sari")})
	state, err := c.Next(ctx)

	require.ErrorIs(t, err, validation.ErrMissingFields)
	assert.Equal(t, validation.StepBusinessInformation, state.CurrentStep)
	assert.False(t, state.CanAdvance)
	assert.Equal(t, []string{
		"TIN", "street", "barangay", "city/municipality",
		"province", "zip code", "mobile number", "email",
	}, state.MissingFields)
	assert.Contains(t, state.LastError, "missing required field(s)")
}

func TestNext_BusinessGateIsMonotonic(t *testing.T) {
	f := setup(t)
	c := f.open(t)
	ctx := context.Background()
	advanceTo(t, c, validation.StepBusinessInformation)

	fillBusiness(c)
	c.Business.Edit(model.BusinessInformationPatch{Email: str("   ")})
	state, err := c.Next(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"email"}, state.MissingFields)

	c.Business.Edit(model.BusinessInformationPatch{Email: str("nena@example.com")})
	state, err = c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, validation.StepOwnerInformation, state.CurrentStep)
	assert.Empty(t, state.LastError)

	saved, err := f.store.GetBusinessInformation(ctx, f.app.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "nena@example.com", saved.Email)

	app, err := f.store.GetApplication(ctx, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, validation.StepOwnerInformation, app.CurrentStep)
}

func TestNext_ScenarioB_SignatureWithoutAgreement(t *testing.T) {
	f := setup(t)
	c := f.open(t)
	advanceTo(t, c, validation.StepDeclaration)

	sign(t, c)
	state, err := c.Next(context.Background())

	require.ErrorIs(t, err, validation.ErrMissingFields)
	assert.Equal(t, validation.StepDeclaration, state.CurrentStep)
	assert.Equal(t, []string{"agreement checkbox"}, state.MissingFields)
	assert.False(t, state.Submitted)

	app, err := f.store.GetApplication(context.Background(), f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusDraft, app.Status)
}

func TestNext_ScenarioC_SubmitsAndRedirects(t *testing.T) {
	f := setup(t)
	c := f.open(t)
	ctx := context.Background()
	advanceTo(t, c, validation.StepDeclaration)

	sign(t, c)
	c.Declaration.Edit(model.DeclarationPatch{Agreed: yes(), SignerName: str("Nena Reyes")})
	state, err := c.Next(ctx)

	require.NoError(t, err)
	assert.True(t, state.Submitted)
	assert.Equal(t, StatusViewPath, state.Redirect)
	assert.Equal(t, model.ApplicationStatusSubmitted, state.Status)

	app, err := f.store.GetApplication(ctx, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusSubmitted, app.Status)
	assert.NotNil(t, app.SubmittedAt)

	list, err := f.store.ListApplications(ctx, model.ApplicationFilter{OwnerUserID: &f.user})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, model.ApplicationStatusSubmitted, list.Items[0].Status)

	_, err = c.Next(ctx)
	assert.ErrorIs(t, err, ErrSubmitted)
}

func TestNext_SubmissionRewindsToFirstFailingStep(t *testing.T) {
	f := setup(t)
	c := f.open(t)
	ctx := context.Background()
	advanceTo(t, c, validation.StepDeclaration)

	// the only business line disappears behind the wizard's back
	lines, err := f.store.ListBusinessLines(ctx, f.app.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.NoError(t, f.store.RemoveBusinessLine(ctx, f.app.ID, lines[0].ID))

	sign(t, c)
	c.Declaration.Edit(model.DeclarationPatch{Agreed: yes()})
	state, err := c.Next(ctx)

	var subErr *validation.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, validation.StepBusinessOperations, state.CurrentStep)
	assert.Equal(t, []string{"at least one business line"}, state.MissingFields)
	assert.False(t, state.Submitted)
}

func TestBack_NeverValidatesAndFloorsAtOne(t *testing.T) {
	f := setup(t)
	c := f.open(t)
	ctx := context.Background()
	advanceTo(t, c, validation.StepOwnerInformation)

	c.Business.Edit(model.BusinessInformationPatch{TIN: str("")})
	assert.Equal(t, 2, c.Back(ctx).CurrentStep)
	assert.Equal(t, 1, c.Back(ctx).CurrentStep)
	state := c.Back(ctx)
	assert.Equal(t, 1, state.CurrentStep)
	assert.Empty(t, state.LastError)

	app, err := f.store.GetApplication(ctx, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, app.CurrentStep)
}

func TestJumpTo_OnlyBackwards(t *testing.T) {
	f := setup(t)
	c := f.open(t)
	ctx := context.Background()
	advanceTo(t, c, validation.StepBusinessOperations)

	_, err := c.JumpTo(ctx, 4)
	assert.ErrorIs(t, err, ErrInvalidStep)
	_, err = c.JumpTo(ctx, 5)
	assert.ErrorIs(t, err, ErrInvalidStep)
	_, err = c.JumpTo(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidStep)
	assert.Equal(t, 4, c.State().CurrentStep)

	state, err := c.JumpTo(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, state.CurrentStep)
}

func TestJumpTo_ReopenedSessionResumesOnEarlierStep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c, err := Open(ctx, f.deps, f.app.ID, f.user)
	require.NoError(t, err)
	advanceTo(t, c, validation.StepBusinessOperations)

	_, err = c.JumpTo(ctx, validation.StepBusinessInformation)
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))

	reopened := f.open(t)
	assert.Equal(t, validation.StepBusinessInformation, reopened.State().CurrentStep)
}

// blockingGateway holds business information saves until release is closed.
type blockingGateway struct {
	Gateway
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) SaveBusinessInformation(ctx context.Context, appID uuid.UUID, info *model.BusinessInformation) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Gateway.SaveBusinessInformation(ctx, appID, info)
}

func TestNext_StateReportsSavingWhileSaveRuns(t *testing.T) {
	f := setup(t)
	gw := &blockingGateway{Gateway: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	f.deps.Gateway = gw
	f.deps.Delay = time.Hour
	c := f.open(t)
	advanceTo(t, c, validation.StepBusinessInformation)
	fillBusiness(c)

	done := make(chan State, 1)
	go func() {
		state, _ := c.Next(context.Background())
		done <- state
	}()

	select {
	case <-gw.entered:
	case <-time.After(time.Second):
		t.Fatal("save never started")
	}
	during := c.State()
	assert.True(t, during.Saving)
	assert.Equal(t, validation.StepBusinessInformation, during.CurrentStep)

	close(gw.release)
	select {
	case state := <-done:
		assert.False(t, state.Saving)
		assert.Equal(t, validation.StepOwnerInformation, state.CurrentStep)
	case <-time.After(time.Second):
		t.Fatal("next did not return")
	}
}

func TestAutosave_CoalescesEditsIntoOneSave(t *testing.T) {
	f := setup(t)
	c := f.open(t)
	ctx := context.Background()

	for _, name := range []string{"A", "Al", "Ali", "Aling Nena"} {
		c.Business.Edit(model.BusinessInformationPatch{BusinessName: str(name)})
	}

	assert.Eventually(t, func() bool {
		saved, err := f.store.GetBusinessInformation(ctx, f.app.ID)
		return err == nil && saved != nil && saved.BusinessName == "Aling Nena"
	}, time.Second, 10*time.Millisecond)
}

func TestPersistenceFailure_ShowsRetryMessage(t *testing.T) {
	f := setup(t)
	f.deps.Gateway = failingGateway{Gateway: f.store}
	c := f.open(t)
	advanceTo(t, c, validation.StepBusinessInformation)

	fillBusiness(c)
	state, err := c.Next(context.Background())

	require.ErrorIs(t, err, service.ErrPersistence)
	assert.Equal(t, validation.StepBusinessInformation, state.CurrentStep)
	assert.Equal(t, SaveFailedMessage, state.LastError)
	assert.True(t, state.CanAdvance)
}

func TestOwnerForm_PrefillsOnFirstLoadOnly(t *testing.T) {
	f := setup(t)
	f.deps.Profiles = fakeProfiles{patch: model.OwnerInformationPatch{Surname: str("Reyes"), Nationality: str("Filipino")}}
	ctx := context.Background()

	c, err := Open(ctx, f.deps, f.app.ID, f.user)
	require.NoError(t, err)
	assert.True(t, c.Owner.Prefilled())
	assert.Equal(t, "Reyes", c.Owner.Data().Surname)

	c.Owner.Edit(model.OwnerInformationPatch{Surname: str("Santos")})
	require.NoError(t, c.Close(ctx))

	reopened := f.open(t)
	assert.False(t, reopened.Owner.Prefilled())
	assert.Equal(t, "Santos", reopened.Owner.Data().Surname)
	assert.Equal(t, "Filipino", reopened.Owner.Data().Nationality)
}

func TestDeclarationForm_ReplacesSignature(t *testing.T) {
	f := setup(t)
	c := f.open(t)
	ctx := context.Background()

	sign(t, c)
	first := c.Declaration.Data().SignatureKey
	sign(t, c)
	second := c.Declaration.Data().SignatureKey
	assert.NotEqual(t, first, second)
	assert.Equal(t, []string{first}, f.files.removed)

	saved, err := f.store.GetDeclaration(ctx, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, second, saved.SignatureKey)
	assert.NotNil(t, saved.SignedAt)

	require.NoError(t, c.Declaration.RemoveSignature(ctx))
	assert.Equal(t, []string{first, second}, f.files.removed)
	assert.Error(t, c.Declaration.Validate())
}

func TestOperationsForm_LineCRUD(t *testing.T) {
	f := setup(t)
	c := f.open(t)
	ctx := context.Background()

	_, err := c.Operations.AddLine(ctx, model.BusinessLineInput{LineOfBusiness: "  "})
	require.ErrorIs(t, err, validation.ErrMissingFields)
	assert.ErrorIs(t, c.Operations.Validate(), validation.ErrMissingFields)

	line, err := c.Operations.AddLine(ctx, model.BusinessLineInput{LineOfBusiness: "Retail", Units: 2})
	require.NoError(t, err)
	assert.NoError(t, c.Operations.Validate())

	updated, err := c.Operations.UpdateLine(ctx, line.ID, model.BusinessLineInput{LineOfBusiness: "Wholesale", Units: 3})
	require.NoError(t, err)
	assert.Equal(t, "Wholesale", updated.LineOfBusiness)
	assert.Equal(t, "Wholesale", c.Operations.Lines()[0].LineOfBusiness)

	require.NoError(t, c.Operations.RemoveLine(ctx, line.ID))
	assert.Empty(t, c.Operations.Lines())
	stored, err := f.store.ListBusinessLines(ctx, f.app.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSessions_OpenGetClose(t *testing.T) {
	f := setup(t)
	sessions := NewSessions(f.deps)
	ctx := context.Background()

	_, err := sessions.Get(f.app.ID, f.user)
	assert.ErrorIs(t, err, ErrNoSession)

	c, err := sessions.Open(ctx, f.app.ID, f.user)
	require.NoError(t, err)
	again, err := sessions.Open(ctx, f.app.ID, f.user)
	require.NoError(t, err)
	assert.Same(t, c, again)
	assert.Equal(t, 1, sessions.Len())

	_, err = sessions.Get(f.app.ID, uuid.New())
	assert.ErrorIs(t, err, service.ErrForbidden)

	c.Business.Edit(model.BusinessInformationPatch{BusinessName: str("Flushed On Close")})
	require.NoError(t, sessions.Close(ctx, f.app.ID))
	assert.Equal(t, 0, sessions.Len())

	saved, err := f.store.GetBusinessInformation(ctx, f.app.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Flushed On Close", saved.BusinessName)
}

func TestSessions_DeletedApplicationIsDropped(t *testing.T) {
	f := setup(t)
	sessions := NewSessions(f.deps)
	ctx := context.Background()

	c, err := sessions.Open(ctx, f.app.ID, f.user)
	require.NoError(t, err)
	c.Business.Edit(model.BusinessInformationPatch{BusinessName: str("Orphan Co")})

	_, err = f.store.DeleteDraft(ctx, f.app.ID)
	require.NoError(t, err)

	_, err = sessions.Open(ctx, f.app.ID, f.user)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, 0, sessions.Len())

	time.Sleep(5 * f.deps.Delay)
	saved, err := f.store.GetBusinessInformation(ctx, f.app.ID)
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestSessions_DiscardDropsPendingEdits(t *testing.T) {
	f := setup(t)
	f.deps.Delay = time.Hour
	sessions := NewSessions(f.deps)
	ctx := context.Background()

	c, err := sessions.Open(ctx, f.app.ID, f.user)
	require.NoError(t, err)
	c.Business.Edit(model.BusinessInformationPatch{BusinessName: str("Never Saved")})

	sessions.Discard(f.app.ID)
	assert.Equal(t, 0, sessions.Len())

	saved, err := f.store.GetBusinessInformation(ctx, f.app.ID)
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestSessions_SubmittedElsewhereIsNotEditable(t *testing.T) {
	f := setup(t)
	sessions := NewSessions(f.deps)
	ctx := context.Background()

	_, err := sessions.Open(ctx, f.app.ID, f.user)
	require.NoError(t, err)

	// a second controller for the same draft submits it
	other := f.open(t)
	advanceTo(t, other, validation.StepDeclaration)
	sign(t, other)
	other.Declaration.Edit(model.DeclarationPatch{Agreed: yes()})
	state, err := other.Next(ctx)
	require.NoError(t, err)
	require.True(t, state.Submitted)

	_, err = sessions.Open(ctx, f.app.ID, f.user)
	assert.ErrorIs(t, err, service.ErrNotEditable)
	assert.Equal(t, 0, sessions.Len())
}

func TestSessions_SweepClosesIdleSessions(t *testing.T) {
	f := setup(t)
	f.deps.Delay = time.Hour
	f.deps.IdleTTL = time.Minute
	sessions := NewSessions(f.deps)
	now := time.Now()
	sessions.now = func() time.Time { return now }
	ctx := context.Background()

	c, err := sessions.Open(ctx, f.app.ID, f.user)
	require.NoError(t, err)
	c.Business.Edit(model.BusinessInformationPatch{BusinessName: str("Saved On Sweep")})

	now = now.Add(30 * time.Second)
	assert.Equal(t, 0, sessions.Sweep(ctx))
	assert.Equal(t, 1, sessions.Len())

	_, err = sessions.Get(f.app.ID, f.user)
	require.NoError(t, err)
	now = now.Add(61 * time.Second)
	assert.Equal(t, 1, sessions.Sweep(ctx))
	assert.Equal(t, 0, sessions.Len())

	saved, err := f.store.GetBusinessInformation(ctx, f.app.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Saved On Sweep", saved.BusinessName)
}
