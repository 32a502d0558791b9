package fs

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockGormFS wires a GormFS directly to a go-sqlmock-backed *sql.DB
// through GORM's postgres dialector, bypassing NewGormFS's AutoMigrate (not
// meaningfully mockable query-by-query) since HealthCheck only needs a live
// *gorm.DB to call DB().PingContext on. Grounded on the teacher's
// internal/database pool tests (setupTestDB / mock.ExpectPing).
func setupMockGormFS(t *testing.T) (*GormFS, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{Conn: mockDB})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	g := &GormFS{db: gormDB, tenantID: "tenant-a", logger: zap.NewNop()}
	return g, mock, mockDB
}

func TestGormFSHealthCheckSucceedsOnPing(t *testing.T) {
	g, mock, mockDB := setupMockGormFS(t)
	defer mockDB.Close()

	mock.ExpectPing()
	require.NoError(t, g.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormFSHealthCheckPropagatesPingError(t *testing.T) {
	g, mock, mockDB := setupMockGormFS(t)
	defer mockDB.Close()

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	err := g.HealthCheck(context.Background())
	assert.Error(t, err)
}
