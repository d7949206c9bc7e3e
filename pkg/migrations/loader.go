// Package migrations loads and applies versioned SQL migrations.
package migrations

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Direction of a migration file.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Migration represents a database migration file.
type Migration struct {
	Version   string
	Name      string
	Direction string // "up" or "down"
	FilePath  string
}

// String returns the migration identifier.
func (m Migration) String() string {
	return fmt.Sprintf("%s_%s.%s.sql", m.Version, m.Name, m.Direction)
}

// LoadMigrationsFromDir loads the migrations of one direction, sorted by version.
// Files that do not follow VERSION_name.direction.sql are skipped.
func LoadMigrationsFromDir(dir, direction string) ([]Migration, error) {
	var migrations []Migration

	suffix := fmt.Sprintf(".%s.sql", direction)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, suffix) {
			return nil
		}

		// 000001_modules.up.sql -> version=000001, name=modules
		baseName := strings.TrimSuffix(filepath.Base(path), suffix)
		parts := strings.SplitN(baseName, "_", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil
		}

		migrations = append(migrations, Migration{
			Version:   parts[0],
			Name:      parts[1],
			Direction: direction,
			FilePath:  path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// ReadMigrationContent reads the content of a migration file.
func ReadMigrationContent(m Migration) ([]byte, error) {
	return os.ReadFile(m.FilePath)
}

// GetMigrationVersions returns all migration versions from a list.
func GetMigrationVersions(migrations []Migration) []string {
	versions := make([]string, len(migrations))
	for i, m := range migrations {
		versions[i] = m.Version
	}
	return versions
}
