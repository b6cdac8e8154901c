package gormstore_test

import (
	"os"
	"testing"

	"github.com/mx-space/notes/internal/models"
	"github.com/mx-space/notes/internal/store"
	"github.com/mx-space/notes/internal/store/gormstore"
	"github.com/mx-space/notes/internal/store/storetest"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The suite needs a disposable database; every table is truncated per subtest.
func TestMySQL(t *testing.T) {
	dsn := os.Getenv("NOTES_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("NOTES_TEST_MYSQL_DSN not set")
	}
	runSuite(t, mysql.Open(dsn))
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("NOTES_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NOTES_TEST_POSTGRES_DSN not set")
	}
	runSuite(t, postgres.Open(dsn))
}

func runSuite(t *testing.T, dialector gorm.Dialector) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	s := gormstore.New(db)
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, func(t *testing.T) store.Store {
		for _, m := range []any{&models.NoteTag{}, &models.Tag{}, &models.Share{}, &models.PublicLink{}, &models.RefreshToken{}, &models.Note{}, &models.User{}} {
			require.NoError(t, db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error)
		}
		return s
	})
}
