package db

import (
	"github.com/pkg/errors"

	"github.com/ITHealer/book-m-ai/internal/profile"
	"github.com/ITHealer/book-m-ai/store"
	"github.com/ITHealer/book-m-ai/store/db/postgres"
	"github.com/ITHealer/book-m-ai/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
// PostgreSQL (with pgvector) is the production driver; SQLite serves development
// and single-user installs with the same feature set.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
