// Package mysqltest provisions throwaway databases for integration tests.
//
// Tests are skipped unless ACCTAPI_TEST_DB_HOST is set. Each call to New
// creates a uniquely named database, applies the embedded schema, and drops
// the database when the test finishes.
package mysqltest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"accounts-api/internal/migrate"
	"accounts-api/internal/sqlutil"

	"github.com/go-sql-driver/mysql"
)

// TestDB is an isolated database owned by one test.
type TestDB struct {
	DB   *sql.DB
	Name string

	admin *sql.DB
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9_]+`)

// New creates the database and registers its teardown with t.Cleanup.
func New(t *testing.T) *TestDB {
	t.Helper()

	base := configFromEnv(t)
	name := databaseName(t.Name(), time.Now())

	admin := open(t, base, "")
	if _, err := admin.Exec("CREATE DATABASE " + sqlutil.QuoteIdentifier(name)); err != nil {
		_ = admin.Close()
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	tdb := &TestDB{DB: open(t, base, name), Name: name, admin: admin}
	t.Cleanup(func() { tdb.teardown(t) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrate.Apply(ctx, tdb.DB); err != nil {
		t.Fatalf("Failed to apply schema to %s: %v", name, err)
	}
	return tdb
}

func (tdb *TestDB) teardown(t *testing.T) {
	t.Helper()
	if err := tdb.DB.Close(); err != nil {
		t.Logf("Warning: failed to close test database connection: %v", err)
	}
	if _, err := tdb.admin.Exec("DROP DATABASE IF EXISTS " + sqlutil.QuoteIdentifier(tdb.Name)); err != nil {
		t.Logf("Warning: failed to drop test database %s: %v", tdb.Name, err)
	}
	if err := tdb.admin.Close(); err != nil {
		t.Logf("Warning: failed to close admin connection: %v", err)
	}
}

// databaseName derives a name from the test name that stays within the
// 64 character identifier limit.
func databaseName(testName string, now time.Time) string {
	slug := unsafeChars.ReplaceAllString(strings.ToLower(testName), "_")
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return fmt.Sprintf("test_%s_%d", strings.Trim(slug, "_"), now.UnixMilli())
}

func configFromEnv(t *testing.T) *mysql.Config {
	t.Helper()

	host := os.Getenv("ACCTAPI_TEST_DB_HOST")
	if host == "" {
		t.Skip("ACCTAPI_TEST_DB_HOST not set; skipping database integration test")
	}
	port := os.Getenv("ACCTAPI_TEST_DB_PORT")
	if port == "" {
		port = "3306"
	}
	user := os.Getenv("ACCTAPI_TEST_DB_USER")
	if user == "" {
		user = "root"
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = host + ":" + port
	cfg.User = user
	cfg.Passwd = os.Getenv("ACCTAPI_TEST_DB_PASSWORD")
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.TLSConfig = os.Getenv("ACCTAPI_TEST_DB_TLS")
	return cfg
}

func open(t *testing.T, base *mysql.Config, database string) *sql.DB {
	t.Helper()

	cfg := base.Clone()
	cfg.DBName = database
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		t.Fatalf("Invalid test database config: %v", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to ping test database: %v", err)
	}
	return db
}
