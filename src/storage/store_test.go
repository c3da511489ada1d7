package storage

import (
	"testing"
	"time"

	"sentiment-observer/src/logger"
	"sentiment-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindPlaceholders(t *testing.T) {
	s := &sqlStore{placeholder: dollarNumber}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b < $2", s.bind("SELECT * FROM t WHERE a = ? AND b < ?"))

	sqlite := &sqlStore{placeholder: questionMark}
	assert.Equal(t, "a = ? AND b = ?", sqlite.bind("a = ? AND b = ?"))
}

func TestNewDatabase(t *testing.T) {
	log := logger.NewNopLogger()

	db, err := NewDatabase(&models.MStorageConfig{DBType: "sqlite", DBPath: "x.db"}, time.Second, log)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteDB{}, db)

	db, err = NewDatabase(&models.MStorageConfig{DBType: "postgres", DBConnectionString: "postgres://localhost/x", Schema: "observer"}, time.Second, log)
	require.NoError(t, err)
	pg := db.(*PostgresDB)
	assert.Equal(t, `"observer"."ticks"`, pg.tables.ticks)

	_, err = NewDatabase(&models.MStorageConfig{DBType: "postgres"}, time.Second, log)
	assert.Error(t, err)

	_, err = NewDatabase(&models.MStorageConfig{DBType: "mongo"}, time.Second, log)
	assert.Error(t, err)
}
