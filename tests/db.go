package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/storage/database"
)

// PrepareDB opens and migrates the Postgres test database.
// Tests using it are skipped unless TEST_POSTGRES is set.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("TEST_POSTGRES") == "" {
		t.Skip("TEST_POSTGRES not set")
	}

	conf := core.NewConfig()
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("CreateIfNotExist() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	return db
}
