package store

import (
	"fmt"
	"os"
	"strings"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func driverFromEnv() string {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))
	switch raw {
	case "", DriverSQLite, "local":
		return DriverSQLite
	case DriverPostgres, "db", "postgresql":
		return DriverPostgres
	case DriverMemory, "mem":
		return DriverMemory
	default:
		return raw
	}
}

// NewFromEnv picks a Store implementation from STORE_DRIVER
// (sqlite default, postgres, memory), reading each driver's own
// connection settings (DB_PATH, DATABASE_URL) from the environment.
func NewFromEnv() (Store, string, error) {
	driver := driverFromEnv()
	switch driver {
	case DriverSQLite:
		st, err := NewSQLiteStore(SQLitePathFromEnv())
		if err != nil {
			return nil, driver, err
		}
		return st, driver, nil
	case DriverPostgres:
		st, err := NewPostgresStore(PostgresDSNFromEnv())
		if err != nil {
			return nil, driver, err
		}
		return st, driver, nil
	case DriverMemory:
		return NewMemoryStore(), driver, nil
	default:
		return nil, driver, fmt.Errorf("invalid STORE_DRIVER %q (supported: %s, %s, %s)", driver, DriverSQLite, DriverPostgres, DriverMemory)
	}
}
