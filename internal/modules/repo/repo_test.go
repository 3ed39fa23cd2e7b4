package repo

import (
	"testing"

	"github.com/evotodo/todo-api/internal/config"
	dbpkg "github.com/evotodo/todo-api/internal/infra/db"
	"github.com/evotodo/todo-api/internal/modules/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := dbpkg.New(&config.Config{Database: config.DBCfg{
		DSN: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}})
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(model.All()...))
	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return d
}
