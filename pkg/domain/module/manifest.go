package module

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/openctemio/console/pkg/domain/menu"
)

// ManifestFile is the file name expected in every module directory.
const ManifestFile = "module.yaml"

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,63}$`)

// Manifest is the fixed description a module ships with. Fields that are not
// declared here are ignored when decoding.
type Manifest struct {
	Name         string         `yaml:"name"`
	Title        string         `yaml:"title"`
	Alias        string         `yaml:"alias"`
	Description  string         `yaml:"description"`
	Version      string         `yaml:"version"`
	Source       Source         `yaml:"source"`
	Core         bool           `yaml:"core"`
	Priority     int            `yaml:"priority"`
	Sort         int            `yaml:"sort"`
	Dependencies []string       `yaml:"dependencies"`
	Providers    []string       `yaml:"providers"`
	Keywords     []string       `yaml:"keywords"`
	Menus        []MenuManifest `yaml:"menus"`
}

// MenuManifest is one menu definition inside a manifest. Children nest.
type MenuManifest struct {
	Key      string         `yaml:"key"`
	Name     string         `yaml:"name"`
	Type     menu.Type      `yaml:"type"`
	Path     string         `yaml:"path"`
	Icon     string         `yaml:"icon"`
	Sort     int            `yaml:"sort"`
	Required bool           `yaml:"required"`
	Children []MenuManifest `yaml:"children"`
}

// SourceOrDefault returns the declared source, custom when unset.
func (m *Manifest) SourceOrDefault() Source {
	if m.Source == "" {
		return SourceCustom
	}
	return m.Source
}

// Validate checks the manifest and reports every problem found.
func (m *Manifest) Validate() error {
	var errs []error
	if !namePattern.MatchString(m.Name) {
		errs = append(errs, fmt.Errorf("name %q must match %s", m.Name, namePattern))
	}
	if m.Version == "" {
		errs = append(errs, errors.New("version is required"))
	}
	if m.Source != "" && !m.Source.IsValid() {
		errs = append(errs, fmt.Errorf("unknown source %q", m.Source))
	}
	seenDeps := make(map[string]bool, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		switch {
		case dep == m.Name:
			errs = append(errs, errors.New("module cannot depend on itself"))
		case seenDeps[dep]:
			errs = append(errs, fmt.Errorf("dependency %q listed twice", dep))
		case !namePattern.MatchString(dep):
			errs = append(errs, fmt.Errorf("dependency %q is not a valid module name", dep))
		}
		seenDeps[dep] = true
	}
	seenKeys := make(map[string]bool)
	var walk func(items []MenuManifest)
	walk = func(items []MenuManifest) {
		for _, item := range items {
			switch {
			case item.Key == "":
				errs = append(errs, errors.New("menu key is required"))
			case seenKeys[item.Key]:
				errs = append(errs, fmt.Errorf("menu key %q is declared twice", item.Key))
			}
			seenKeys[item.Key] = true
			if item.Name == "" {
				errs = append(errs, fmt.Errorf("menu %q needs a name", item.Key))
			}
			if !item.Type.IsValid() {
				errs = append(errs, fmt.Errorf("menu %q has unknown type %q", item.Key, item.Type))
			}
			walk(item.Children)
		}
	}
	walk(m.Menus)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, errors.Join(errs...))
	}
	return nil
}

// MenuSeeds flattens the menu tree parents first, so that importing the seeds
// in order always finds a parent before its children.
func (m *Manifest) MenuSeeds() []menu.Seed {
	var seeds []menu.Seed
	var walk func(parentKey string, items []MenuManifest)
	walk = func(parentKey string, items []MenuManifest) {
		for _, item := range items {
			seeds = append(seeds, menu.Seed{
				Key:       item.Key,
				ParentKey: parentKey,
				Name:      item.Name,
				Type:      item.Type,
				Path:      item.Path,
				Icon:      item.Icon,
				Sort:      item.Sort,
				Required:  item.Required,
			})
		}
		for _, item := range items {
			walk(item.Key, item.Children)
		}
	}
	walk("", m.Menus)
	return seeds
}

// HasMenus reports whether the module ships menu definitions.
func (m *Manifest) HasMenus() bool { return len(m.Menus) > 0 }

// DependsOn reports whether the manifest lists name as a dependency.
func (m *Manifest) DependsOn(name string) bool {
	return slices.Contains(m.Dependencies, name)
}
