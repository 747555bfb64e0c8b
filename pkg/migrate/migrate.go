package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where create and validate look on disk, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

// the SQL files use postgres types and deferrable constraints
const dialect = "postgres"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// Source selects the migrations goose reads. A nil FS means the OS
// filesystem rooted at the working directory.
type Source struct {
	FS  fs.FS
	Dir string
}

// EmbeddedSource is what the API and cmd/migrate use unless -dir is given.
func EmbeddedSource() Source {
	return Source{FS: Embedded(), Dir: "."}
}

// DirSource reads migrations from dir on disk.
func DirSource(dir string) Source {
	return Source{Dir: dir}
}

func withGoose(src Source, fn func(dir string) error) error {
	if src.Dir == "" {
		return errors.New("migrations dir is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(src.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return fn(src.Dir)
}

// Run executes a goose command (up, down, status, redo, reset, version).
func Run(ctx context.Context, db *sql.DB, src Source, command string, args ...string) error {
	if db == nil {
		return errors.New("db is required")
	}
	return withGoose(src, func(dir string) error {
		if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion moves the schema up or down until it sits at target, a
// YYYYMMDDHHMMSS migration version.
func MigrateToVersion(ctx context.Context, db *sql.DB, src Source, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || len(target) != versionDigits {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}
	return withGoose(src, func(dir string) error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current < version:
			err = goose.UpToContext(ctx, db, dir, version)
		case current > version:
			err = goose.DownToContext(ctx, db, dir, version)
		}
		if err != nil {
			return fmt.Errorf("goose migrate %d -> %d: %w", current, version, err)
		}
		return nil
	})
}
