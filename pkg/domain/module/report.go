package module

import (
	"cmp"
	"slices"
)

// ScanSuccess is one module registered by a batch.
type ScanSuccess struct {
	ModuleName string
	Path       string
}

// ScanFailure is one candidate a batch could not register.
type ScanFailure struct {
	Path    string
	Message string
}

// DependencyWarning flags an installed module whose dependencies no longer hold.
type DependencyWarning struct {
	ModuleName string
	Missing    []string
	Message    string
}

// BatchReport is the outcome of a best-effort batch: every candidate ends up
// in exactly one of Success or Failed.
type BatchReport struct {
	Success  []ScanSuccess
	Failed   []ScanFailure
	Warnings []DependencyWarning
}

// AddSuccess records a registered module.
func (r *BatchReport) AddSuccess(name, path string) {
	r.Success = append(r.Success, ScanSuccess{ModuleName: name, Path: path})
}

// AddFailure records a failed candidate.
func (r *BatchReport) AddFailure(path string, err error) {
	r.Failed = append(r.Failed, ScanFailure{Path: path, Message: err.Error()})
}

// AddWarning records a dependency problem.
func (r *BatchReport) AddWarning(w DependencyWarning) {
	r.Warnings = append(r.Warnings, w)
}

// Sort orders every list by path or module name so reports are stable.
func (r *BatchReport) Sort() {
	slices.SortFunc(r.Success, func(a, b ScanSuccess) int { return cmp.Compare(a.Path, b.Path) })
	slices.SortFunc(r.Failed, func(a, b ScanFailure) int { return cmp.Compare(a.Path, b.Path) })
	slices.SortFunc(r.Warnings, func(a, b DependencyWarning) int { return cmp.Compare(a.ModuleName, b.ModuleName) })
}
