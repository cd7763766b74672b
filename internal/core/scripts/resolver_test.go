package scripts

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"geektools.dev/cli/internal/core/domain"
)

// mapSource serves scripts from an in-memory table
type mapSource map[string]string

func (m mapSource) Read(name string) ([]byte, error) {
	content, ok := m[name]
	if !ok {
		return nil, domain.ScriptNotFound(name)
	}
	return []byte(content), nil
}

func script(imports ...string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for _, name := range imports {
		fmt.Fprintf(&b, "#@import %s\n", name)
	}
	b.WriteString("echo done\n")
	return b.String()
}

func TestParseImports(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "NoDirectives",
			content:  "#!/bin/sh\necho hi\n",
			expected: nil,
		},
		{
			name:     "TrimsWhitespace",
			content:  "   #@import  common.sh  \r\n",
			expected: []string{"common.sh"},
		},
		{
			name:     "KeepsOrderOfAppearance",
			content:  "#@import b.sh\necho\n#@import a.sh\n",
			expected: []string{"b.sh", "a.sh"},
		},
		{
			name:     "IgnoresEmptyTarget",
			content:  "#@import \n",
			expected: nil,
		},
		{
			name:     "IgnoresOtherComments",
			content:  "# @import a.sh\n#@importa.sh\n",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseImports(tt.content))
		})
	}
}

func TestResolve_ChainOrdersImportsFirst(t *testing.T) {
	source := mapSource{
		"A": script("B"),
		"B": script("C"),
		"C": script(),
	}

	res, err := NewResolver(source, nil).Resolve("A")
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "B", "A"}, res.Order)
	assert.Empty(t, res.Executable, "names without the .sh suffix are never scheduled")
}

func TestResolve_OnlyShellScriptsAreExecutable(t *testing.T) {
	source := mapSource{
		"a.sh":        script("b.sh", "mirror.link"),
		"b.sh":        script("c.sh"),
		"c.sh":        script(),
		"mirror.link": "https://example.com/mirror.sh\n",
	}

	res, err := NewResolver(source, nil).Resolve("a.sh")
	require.NoError(t, err)

	assert.Equal(t, []string{"c.sh", "b.sh", "mirror.link", "a.sh"}, res.Order)
	assert.Equal(t, []string{"c.sh", "b.sh", "a.sh"}, res.Executable)
}

func TestResolve_DiamondIsDeterministic(t *testing.T) {
	source := mapSource{
		"top.sh":   script("right.sh", "left.sh"),
		"left.sh":  script("base.sh"),
		"right.sh": script("base.sh"),
		"base.sh":  script(),
	}

	first, err := NewResolver(source, nil).Resolve("top.sh")
	require.NoError(t, err)
	assert.Equal(t, []string{"base.sh", "left.sh", "right.sh", "top.sh"}, first.Order)

	for i := 0; i < 20; i++ {
		again, err := NewResolver(source, nil).Resolve("top.sh")
		require.NoError(t, err)
		require.Equal(t, first.Order, again.Order, "resolution order must be reproducible")
	}
}

func TestResolve_TwoNodeCycle(t *testing.T) {
	source := mapSource{
		"X": script("Y"),
		"Y": script("X"),
	}

	_, err := NewResolver(source, nil).Resolve("X")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCircularDependency))

	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Contains(t, []string{"X", "Y"}, derr.Name)
	assert.Contains(t, err.Error(), derr.Name)
}

func TestResolve_SelfImportIsCycle(t *testing.T) {
	_, err := NewResolver(mapSource{"loop.sh": script("loop.sh")}, nil).Resolve("loop.sh")
	assert.True(t, errors.Is(err, domain.ErrCircularDependency))
}

func TestResolve_MissingImport(t *testing.T) {
	source := mapSource{
		"a.sh": script("gone.sh"),
	}

	_, err := NewResolver(source, nil).Resolve("a.sh")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrScriptNotFound))

	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "gone.sh", derr.Name)
}

func TestResolve_MissingEntry(t *testing.T) {
	_, err := NewResolver(mapSource{}, nil).Resolve("nothing.sh")
	assert.True(t, errors.Is(err, domain.ErrScriptNotFound))
}

func TestGraph_DuplicateImportsCollapse(t *testing.T) {
	g := NewGraph()
	g.Add("a", []string{"b", "b", "c"})
	g.Add("b", nil)
	g.Add("c", nil)

	assert.Equal(t, []string{"b", "c"}, g.Imports("a"))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, order)
}

func TestGraph_DanglingImportIsUnresolved(t *testing.T) {
	g := NewGraph()
	g.Add("a", []string{"missing"})

	_, err := g.TopologicalOrder()
	assert.True(t, errors.Is(err, domain.ErrUnresolvedDependencies))
}

// Property-based tests using rapid

// drawAcyclicSource draws a random DAG: node i may only import nodes with a
// greater index, so no cycle can form.
func drawAcyclicSource(t *rapid.T) (mapSource, map[string][]string) {
	n := rapid.IntRange(1, 12).Draw(t, "nodes")
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("s%02d.sh", i)
	}

	edges := make(map[string][]string, n)
	source := make(mapSource, n)
	for i, name := range names {
		var imports []string
		for j := i + 1; j < n; j++ {
			if rapid.Bool().Draw(t, fmt.Sprintf("edge_%d_%d", i, j)) {
				imports = append(imports, names[j])
			}
		}
		edges[name] = imports
		source[name] = script(imports...)
	}
	// make every node reachable from the entry
	edges[names[0]] = append(edges[names[0]], names[1:]...)
	source[names[0]] = script(edges[names[0]]...)

	return source, edges
}

// TestResolve_PropertyBased_ImportsPrecedeImporters checks that every script
// is placed after all scripts it imports, transitively.
func TestResolve_PropertyBased_ImportsPrecedeImporters(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		source, edges := drawAcyclicSource(t)

		res, err := NewResolver(source, nil).Resolve("s00.sh")
		require.NoError(t, err)
		require.Len(t, res.Order, len(edges))

		position := make(map[string]int, len(res.Order))
		for i, name := range res.Order {
			position[name] = i
		}
		for node, imports := range edges {
			for _, dep := range imports {
				assert.Less(t, position[dep], position[node], "%s must run before %s", dep, node)
			}
		}
		assert.Equal(t, "s00.sh", res.Order[len(res.Order)-1], "entry runs last")
	})
}

// TestResolve_PropertyBased_CycleNamesCycleMember checks that adding a back
// edge always yields CircularDependency naming a node on that cycle.
func TestResolve_PropertyBased_CycleNamesCycleMember(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(1, 8).Draw(t, "cycleLength")
		names := make([]string, length)
		for i := range names {
			names[i] = fmt.Sprintf("c%d.sh", i)
		}

		source := make(mapSource, length+1)
		for i, name := range names {
			source[name] = script(names[(i+1)%length])
		}
		source["entry.sh"] = script(names[0])

		_, err := NewResolver(source, nil).Resolve("entry.sh")
		require.Error(t, err)

		var derr *domain.Error
		require.True(t, errors.As(err, &derr))
		require.Equal(t, domain.KindCircularDependency, derr.Kind)
		assert.True(t, slices.Contains(names, derr.Name), "%s is not on the cycle", derr.Name)
	})
}
