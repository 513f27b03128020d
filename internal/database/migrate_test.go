package database

import (
	"context"
	"testing"
	"testing/fstest"

	"newsadvance/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEmbeddedMigrations(t *testing.T) {
	ms := GetMigrations()
	require.NotEmpty(t, ms)
	for i, m := range ms {
		assert.NotEmpty(t, m.UpScript, m.String())
		assert.NotEmpty(t, m.DownScript, m.String())
		if i > 0 {
			assert.Greater(t, m.Version, ms[i-1].Version)
		}
	}
	assert.Equal(t, "000001_comments_schema", ms[0].String())
	assert.Contains(t, ms[0].UpScript, "idx_vote_comment_user")
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_second.up.sql":   {Data: []byte("B")},
		"m/000002_second.down.sql": {Data: []byte("b")},
		"m/000001_first.up.sql":    {Data: []byte("A")},
		"m/000001_first.down.sql":  {Data: []byte("a")},
		"m/notes.txt":              {Data: []byte("ignored")},
		"m/bad.up.sql":             {Data: []byte("skipped")},
	}
	ms, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "first", ms[0].Name)
	assert.Equal(t, "b", ms[1].DownScript)

	_, err = LoadMigrations(fstest.MapFS{"m/000001_x.up.sql": {Data: []byte("A")}}, "m")
	assert.Error(t, err, "up without down")
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		runSQL  bool
		runAuto bool
		wantErr bool
	}{
		{"dev hybrid", config.Config{Env: "development", DBDriver: "postgres"}, true, true, false},
		{"prod hybrid", config.Config{Env: "production", DBDriver: "postgres", DBSchemaMode: "hybrid"}, true, false, false},
		{"sql only", config.Config{Env: "development", DBDriver: "postgres", DBSchemaMode: "SQL"}, true, false, false},
		{"prod auto refused", config.Config{Env: "prod", DBDriver: "postgres", DBSchemaMode: "auto"}, false, false, true},
		{"prod auto allowed", config.Config{Env: "prod", DBDriver: "postgres", DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"sqlite always auto", config.Config{Env: "test", DBDriver: "sqlite", DBSchemaMode: "sql"}, false, true, false},
		{"unknown mode", config.Config{Env: "test", DBDriver: "postgres", DBSchemaMode: "yolo"}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.runSQL, runSQL)
			assert.Equal(t, tt.runAuto, runAuto)
		})
	}
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1}, registered))

	err := validateAppliedVersions([]int{1, 7, 3}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000003, 000007")
}

func TestRunAndRollbackMigrations(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	store := NewMigrationStore(db)
	registered := []Migration{
		{Version: 1, Name: "widgets", UpScript: "CREATE TABLE widgets (id INTEGER PRIMARY KEY)", DownScript: "DROP TABLE widgets"},
		{Version: 2, Name: "gadgets", UpScript: "CREATE TABLE gadgets (id INTEGER PRIMARY KEY)", DownScript: "DROP TABLE gadgets"},
	}

	require.NoError(t, runMigrations(ctx, store, registered[:1]))
	require.NoError(t, runMigrations(ctx, store, registered))
	require.NoError(t, runMigrations(ctx, store, registered), "rerun is a no-op")

	applied, err := store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)
	assert.True(t, db.Migrator().HasTable("gadgets"))
	assert.Empty(t, pendingMigrations(applied, registered))

	require.NoError(t, rollbackMigration(ctx, store, &registered[1], 2))
	assert.False(t, db.Migrator().HasTable("gadgets"))
	assert.Error(t, rollbackMigration(ctx, store, &registered[1], 2), "already rolled back")
	assert.Error(t, rollbackMigration(ctx, store, nil, 9))

	applied, err = store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
	assert.Len(t, pendingMigrations(applied, registered), 1)
}
