package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

const versionDigits = 14

var fileNamePattern = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Migration is one validated goose SQL file.
type Migration struct {
	Version string
	Name    string
}

// ValidateDir checks the migrations on disk; see ValidateFS.
func ValidateDir(dir string) ([]Migration, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateFS checks every .sql file under dir: names must be
// <YYYYMMDDHHMMSS>_<snake_name>.sql with unique versions, and bodies must
// carry an Up section before a Down section with balanced
// StatementBegin/StatementEnd markers. Migrations come back ordered by
// version.
func ValidateFS(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		match := fileNamePattern.FindStringSubmatch(name)
		if match == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version := match[1]
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		if err := checkAnnotations(body); err != nil {
			return nil, fmt.Errorf("migration %q: %w", name, err)
		}
		out = append(out, Migration{Version: version, Name: name})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func checkAnnotations(body []byte) error {
	var (
		up, down   = -1, -1
		open, line int
	)
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(text, "-- +goose ") {
			continue
		}
		switch strings.TrimSpace(strings.TrimPrefix(text, "-- +goose ")) {
		case "Up":
			up = line
		case "Down":
			if open != 0 {
				return fmt.Errorf("line %d: Down inside an open StatementBegin", line)
			}
			down = line
		case "StatementBegin":
			open++
		case "StatementEnd":
			open--
			if open < 0 {
				return fmt.Errorf("line %d: StatementEnd without StatementBegin", line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case up < 0:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case down < 0:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case down < up:
		return fmt.Errorf("Down section precedes Up")
	case open != 0:
		return fmt.Errorf("unterminated StatementBegin")
	}
	return nil
}
