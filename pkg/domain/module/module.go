// Package module provides the module registry domain: installable feature
// units described by a manifest, their dependency graph and lifecycle state.
package module

import (
	"slices"
	"time"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Source identifies where a module comes from.
type Source string

const (
	SourceOfficial   Source = "official"
	SourceThirdParty Source = "third_party"
	SourceCustom     Source = "custom"
)

// IsValid reports whether s is a known module source.
func (s Source) IsValid() bool {
	switch s {
	case SourceOfficial, SourceThirdParty, SourceCustom:
		return true
	}
	return false
}

// Status is the administrative switch of a module.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusEnabled || s == StatusDisabled
}

// Module is a registry entry for an installable feature module.
type Module struct {
	id           shared.ID
	name         string
	title        string
	alias        string
	description  string
	version      string
	source       Source
	isCore       bool
	isInstalled  bool
	status       Status
	priority     int
	sort         int
	dependencies []string
	providers    []string
	keywords     []string
	path         string
	createdAt    time.Time
	updatedAt    time.Time
}

// Record is the persisted shape of a module.
type Record struct {
	ID           shared.ID
	Name         string
	Title        string
	Alias        string
	Description  string
	Version      string
	Source       Source
	IsCore       bool
	IsInstalled  bool
	Status       Status
	Priority     int
	Sort         int
	Dependencies []string
	Providers    []string
	Keywords     []string
	Path         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewFromManifest creates an unpersisted, enabled and not installed module.
func NewFromManifest(m *Manifest, path string) *Module {
	now := time.Now().UTC()
	mod := &Module{
		status:    StatusEnabled,
		sort:      m.Sort,
		path:      path,
		createdAt: now,
		updatedAt: now,
	}
	mod.applyManifest(m)
	return mod
}

// ReconstructModule rebuilds a module from persistence.
func ReconstructModule(r Record) *Module {
	return &Module{
		id:           r.ID,
		name:         r.Name,
		title:        r.Title,
		alias:        r.Alias,
		description:  r.Description,
		version:      r.Version,
		source:       r.Source,
		isCore:       r.IsCore,
		isInstalled:  r.IsInstalled,
		status:       r.Status,
		priority:     r.Priority,
		sort:         r.Sort,
		dependencies: r.Dependencies,
		providers:    r.Providers,
		keywords:     r.Keywords,
		path:         r.Path,
		createdAt:    r.CreatedAt,
		updatedAt:    r.UpdatedAt,
	}
}

// Getters

func (m *Module) ID() shared.ID          { return m.id }
func (m *Module) Name() string           { return m.name }
func (m *Module) Title() string          { return m.title }
func (m *Module) Alias() string          { return m.alias }
func (m *Module) Description() string    { return m.description }
func (m *Module) Version() string        { return m.version }
func (m *Module) Source() Source         { return m.source }
func (m *Module) IsCore() bool           { return m.isCore }
func (m *Module) IsInstalled() bool      { return m.isInstalled }
func (m *Module) Status() Status         { return m.status }
func (m *Module) Priority() int          { return m.priority }
func (m *Module) Sort() int              { return m.sort }
func (m *Module) Dependencies() []string { return slices.Clone(m.dependencies) }
func (m *Module) Providers() []string    { return slices.Clone(m.providers) }
func (m *Module) Keywords() []string     { return slices.Clone(m.keywords) }
func (m *Module) Path() string           { return m.path }
func (m *Module) CreatedAt() time.Time   { return m.createdAt }
func (m *Module) UpdatedAt() time.Time   { return m.updatedAt }

// IsEnabled returns true if the module may be installed.
func (m *Module) IsEnabled() bool { return m.status == StatusEnabled }

// DisplayName prefers the alias, then the title, then the name.
func (m *Module) DisplayName() string {
	switch {
	case m.alias != "":
		return m.alias
	case m.title != "":
		return m.title
	}
	return m.name
}

// Record returns the persisted shape of the module.
func (m *Module) Record() Record {
	return Record{
		ID:           m.id,
		Name:         m.name,
		Title:        m.title,
		Alias:        m.alias,
		Description:  m.description,
		Version:      m.version,
		Source:       m.source,
		IsCore:       m.isCore,
		IsInstalled:  m.isInstalled,
		Status:       m.status,
		Priority:     m.priority,
		Sort:         m.sort,
		Dependencies: slices.Clone(m.dependencies),
		Providers:    slices.Clone(m.providers),
		Keywords:     slices.Clone(m.keywords),
		Path:         m.path,
		CreatedAt:    m.createdAt,
		UpdatedAt:    m.updatedAt,
	}
}

// Refresh replaces descriptive metadata from a freshly read manifest.
// Install state, status and sort are left untouched.
func (m *Module) Refresh(manifest *Manifest, path string) {
	m.applyManifest(manifest)
	m.path = path
	m.updatedAt = time.Now().UTC()
}

// SetStatus switches the module on or off.
func (m *Module) SetStatus(s Status) {
	m.status = s
	m.updatedAt = time.Now().UTC()
}

// DependsOn reports whether name is a declared dependency.
func (m *Module) DependsOn(name string) bool {
	return slices.Contains(m.dependencies, name)
}

func (m *Module) applyManifest(man *Manifest) {
	m.name = man.Name
	m.title = man.Title
	m.alias = man.Alias
	m.description = man.Description
	m.version = man.Version
	m.source = man.SourceOrDefault()
	m.isCore = man.Core
	m.priority = man.Priority
	m.dependencies = slices.Clone(man.Dependencies)
	m.providers = slices.Clone(man.Providers)
	m.keywords = slices.Clone(man.Keywords)
}
