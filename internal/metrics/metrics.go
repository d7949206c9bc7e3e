// Package metrics holds the Prometheus collectors of the module lifecycle and
// permission assembly engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Module lifecycle metrics
var (
	// ModuleOperationsTotal tracks lifecycle operations by outcome
	ModuleOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "module_operations_total",
			Help: "Total number of module lifecycle operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// ModuleOperationDuration tracks lifecycle operation duration
	ModuleOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "module_operation_duration_seconds",
			Help:    "Module lifecycle operation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// ModuleScanCandidates tracks scanned candidates by outcome
	ModuleScanCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "module_scan_candidates_total",
			Help: "Total number of module directories scanned by result",
		},
		[]string{"result"},
	)

	// ModuleCascadeRowsRemoved tracks rows deleted by uninstall cascades
	ModuleCascadeRowsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "module_cascade_rows_removed_total",
			Help: "Rows removed by module uninstall cascades by table",
		},
		[]string{"table"},
	)
)

// Permission assembly metrics
var (
	// MenuTreeBuilds tracks role menu tree assemblies by source
	MenuTreeBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menu_tree_builds_total",
			Help: "Total number of role menu trees served by source (cache, store)",
		},
		[]string{"source"},
	)

	// MenuTreeBuildDuration tracks the time spent assembling a tree from the store
	MenuTreeBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menu_tree_build_duration_seconds",
			Help:    "Role menu tree assembly duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// MenuRelocationsTotal tracks relocation map changes
	MenuRelocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menu_relocations_total",
			Help: "Relocation map rows changed by operation",
		},
		[]string{"operation"},
	)

	// RoleGrantChanges tracks grant rows changed by menu updates
	RoleGrantChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_grant_changes_total",
			Help: "Role menu grants changed by kind (added, removed, forced_kept)",
		},
		[]string{"kind"},
	)
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
