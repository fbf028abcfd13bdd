package testdb

import (
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

// EnvURL names the variable holding a Postgres URL with rights to create databases
const EnvURL = "TODOAPI_TEST_DATABASE_URL"

// TestDB is a throwaway database created for a single test
type TestDB struct {
	DB      *sql.DB
	DBName  string
	ConnStr string

	adminConnStr string
	t            *testing.T
}

// New creates an empty database and drops it when the test ends.
// The test is skipped when EnvURL is unset or -short is given.
func New(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	baseConnStr := os.Getenv(EnvURL)
	if baseConnStr == "" {
		t.Skipf("%s not set", EnvURL)
	}

	admin, err := sql.Open("postgres", baseConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer admin.Close()

	dbName := fmt.Sprintf("test_todoapi_%d", time.Now().UnixNano())
	if _, err := admin.Exec(fmt.Sprintf(`CREATE DATABASE "%s"`, dbName)); err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	connStr, err := replaceDatabase(baseConnStr, dbName)
	if err != nil {
		t.Fatalf("Failed to build test database URL: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	tdb := &TestDB{
		DB:           db,
		DBName:       dbName,
		ConnStr:      connStr,
		adminConnStr: baseConnStr,
		t:            t,
	}
	t.Cleanup(tdb.cleanup)
	return tdb
}

func (tdb *TestDB) cleanup() {
	tdb.DB.Close()

	admin, err := sql.Open("postgres", tdb.adminConnStr)
	if err != nil {
		tdb.t.Logf("Failed to connect for cleanup: %v", err)
		return
	}
	defer admin.Close()

	_, err = admin.Exec(`
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()`, tdb.DBName)
	if err != nil {
		tdb.t.Logf("Failed to terminate connections: %v", err)
	}

	if _, err := admin.Exec(fmt.Sprintf(`DROP DATABASE IF EXISTS "%s"`, tdb.DBName)); err != nil {
		tdb.t.Logf("Failed to drop test database: %v", err)
	}
}
