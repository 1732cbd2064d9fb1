package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schoolgate/schoolgate/internal/models"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpenDefaultsToSQLiteMemory(t *testing.T) {
	db, err := Open(Config{DSN: "file:db_test_default?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	require.True(t, db.Migrator().HasTable(&models.User{}))
	require.True(t, db.Migrator().HasTable(&models.Class{}))
	require.True(t, db.Migrator().HasTable(&models.Student{}))
	require.True(t, db.Migrator().HasTable(&models.Notification{}))
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "school", Name: "schoolgate", Password: "secret"})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=localhost")
	require.Contains(t, dsn, "port=5432")
	require.Contains(t, dsn, "dbname=schoolgate")
	require.Contains(t, dsn, "sslmode=disable")

	_, err = buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "school", Password: "secret", Name: "schoolgate"})
	require.NoError(t, err)
	require.Contains(t, dsn, "school:secret@tcp(127.0.0.1:3306)/schoolgate")
	require.Contains(t, dsn, "parseTime=True")
	require.Contains(t, dsn, "collation=utf8mb4_unicode_ci")

	// The schema name defaults; the user does not.
	dsn, err = buildMySQLDSN(Config{User: "school"})
	require.NoError(t, err)
	require.Contains(t, dsn, "/schoolgate?")

	_, err = buildMySQLDSN(Config{})
	require.Error(t, err)
}

func TestSeedDataCreatesAdminOnce(t *testing.T) {
	db, err := Open(Config{DSN: "file:db_test_seed?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrateAndSeed(db))
	require.NoError(t, SeedData(db)) // idempotent

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
