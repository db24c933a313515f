package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/config"
	"github.com/OpenBPLS/bpls/internal/database"
)

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishStatusChange(ctx context.Context, change model.StatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return nil
}

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{
		Driver:       "sqlite",
		SQLitePath:   filepath.Join(t.TempDir(), "bpls.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, model.Models()...))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)
	return db, sqlMock
}

func intPtr(v int) *int {
	return &v
}

func completeBusinessInformation() *model.BusinessInformation {
	return &model.BusinessInformation{
		BusinessName:     "Sari-Sari Store",
		TIN:              "123-456-789-000",
		OwnershipType:    model.OwnershipSingleProprietorship,
		Street:           "12 Rizal St",
		Barangay:         "Poblacion",
		CityMunicipality: "Tagum",
		Province:         "Davao del Norte",
		ZipCode:          "8100",
		MobileNumber:     "09171234567",
		Email:            "store@example.com",
	}
}

func completeOwnerInformation() *model.OwnerInformation {
	return &model.OwnerInformation{
		Surname:          "Dela Cruz",
		GivenName:        "Juan",
		Age:              intPtr(42),
		Sex:              "male",
		CivilStatus:      "married",
		Nationality:      "Filipino",
		Street:           "12 Rizal St",
		Barangay:         "Poblacion",
		CityMunicipality: "Tagum",
		Province:         "Davao del Norte",
		ZipCode:          "8100",
	}
}

// seedComplete creates an application with every part filled in validly.
func seedComplete(t *testing.T, store *Store, owner uuid.UUID) *model.Application {
	t.Helper()
	ctx := context.Background()
	app, err := store.CreateApplication(ctx, owner, model.ApplicationTypeNew)
	require.NoError(t, err)
	require.NoError(t, store.SaveBusinessInformation(ctx, app.ID, completeBusinessInformation()))
	require.NoError(t, store.SaveOwnerInformation(ctx, app.ID, completeOwnerInformation()))
	require.NoError(t, store.AddBusinessLine(ctx, app.ID, &model.BusinessLine{LineOfBusiness: "Retail", Units: 1}))
	require.NoError(t, store.SaveDeclaration(ctx, app.ID, &model.Declaration{
		SignatureURL: "/api/uploads/sig.png",
		SignatureKey: "sig.png",
		Agreed:       true,
		SignerName:   "Juan Dela Cruz",
		SignerTitle:  "Owner",
	}))
	return app
}
