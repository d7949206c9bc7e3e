package module_test

import (
	"testing"

	"github.com/openctemio/console/pkg/domain/module"
	"github.com/stretchr/testify/assert"
)

func registered(name string, deps ...string) *module.Module {
	return module.ReconstructModule(module.Record{Name: name, Version: "1", Dependencies: deps})
}

func TestGraph_Missing(t *testing.T) {
	g := module.NewGraph([]*module.Module{
		registered("a"),
		registered("b", "a"),
		registered("c", "a", "b", "ghost"),
	})

	installed := map[string]bool{"a": true}
	present := func(n string) bool { return installed[n] }

	assert.Empty(t, g.Missing("b", present))
	assert.Equal(t, []string{"b", "ghost"}, g.Missing("c", present))
	assert.Equal(t, []string{"ghost"}, g.Unregistered("c"))
	assert.Empty(t, g.Missing("nobody", present))
}

func TestGraph_Cycle(t *testing.T) {
	g := module.NewGraph([]*module.Module{
		registered("a", "b"),
		registered("b", "c"),
		registered("c", "a"),
		registered("d", "a"),
		registered("e"),
	})

	assert.Equal(t, []string{"a", "b", "c", "a"}, g.Cycle("a"))
	assert.Equal(t, []string{"a", "b", "c", "a"}, g.Cycle("d"))
	assert.Nil(t, g.Cycle("e"))
	assert.Nil(t, g.Cycle("missing"))
}
