// Package testutil holds helpers for tests that need real infrastructure.
// Tests using these helpers skip when the backing service is unavailable,
// unless TEST_REQUIRE_DB or TEST_REQUIRE_INFRA demands it.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	// Import pgx driver for database/sql compatibility in tests.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// TestDBConfig holds connection settings for the test Postgres instance.
// The default port 55432 matches the local docker-compose test profile;
// CI environments should set TEST_DB_PORT=5432 explicitly. Provisioning
// tests additionally need the user to hold CREATEDB and CREATEROLE.
type TestDBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig returns the test database configuration from the
// environment, with local-development defaults.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     getEnvOrDefault("TEST_DB_HOST", "localhost"),
		Port:     getEnvIntOrDefault("TEST_DB_PORT", 55432),
		User:     getEnvOrDefault("TEST_DB_USER", "caregrid"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "caregrid"),
		DBName:   getEnvOrDefault("TEST_DB_NAME", "caregrid"),
	}
}

// DSN renders the configuration as a postgres connection string.
func (c TestDBConfig) DSN() string {
	hostPort := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		c.User, c.Password, hostPort, c.DBName)
}

// SkipIfNoTestDB skips the test when the test database cannot be reached.
func SkipIfNoTestDB(t testing.TB) {
	t.Helper()

	db, err := sql.Open("pgx", DefaultTestDBConfig().DSN())
	if err != nil {
		unavailable(t, err)
		return
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			t.Logf("test db close failed: %v", cerr)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		unavailable(t, pingErr)
	}
}

func unavailable(t testing.TB, err error) {
	t.Helper()
	if requireDB() {
		t.Fatal("test database not available:", err)
	}
	t.Skip("test database not available:", err)
}

// TempIdentifier returns a unique lowercase SQL identifier with the given
// prefix, suitable for throwaway databases and roles.
func TempIdentifier(t testing.TB, prefix string) string {
	t.Helper()
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		t.Fatal("generate identifier suffix:", err)
	}
	return prefix + "_" + hex.EncodeToString(b)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func requireDB() bool { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
