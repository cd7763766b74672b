package scripts

import (
	"strings"

	"github.com/hashicorp/go-hclog"
)

const (
	// ImportDirective prefixes a line naming a script that must run first.
	ImportDirective = "#@import "
	// ExecutableSuffix marks script names that are materialized and run.
	ExecutableSuffix = ".sh"
)

// Source provides script content by name. Read returns an error matching
// domain.ErrScriptNotFound when the name is unknown.
type Source interface {
	Read(name string) ([]byte, error)
}

// Resolution is the outcome of resolving an entry script
type Resolution struct {
	Entry string
	Graph *Graph
	// Order lists every discovered script, imports first.
	Order []string
	// Executable is Order filtered to names carrying ExecutableSuffix.
	Executable []string
}

// Resolver builds import graphs and execution orders for scripts
type Resolver struct {
	source Source
	logger hclog.Logger
}

// NewResolver creates a resolver reading scripts from source
func NewResolver(source Source, logger hclog.Logger) *Resolver {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Resolver{
		source: source,
		logger: logger.Named("resolver"),
	}
}

// Resolve discovers every script reachable from entry through import
// directives and returns them in execution order.
func (r *Resolver) Resolve(entry string) (*Resolution, error) {
	graph, err := r.BuildGraph(entry)
	if err != nil {
		return nil, err
	}

	order, err := graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	executable := make([]string, 0, len(order))
	for _, name := range order {
		if IsExecutable(name) {
			executable = append(executable, name)
		}
	}

	r.logger.Debug("resolved script dependencies", "entry", entry, "order", order)
	return &Resolution{
		Entry:      entry,
		Graph:      graph,
		Order:      order,
		Executable: executable,
	}, nil
}

// BuildGraph walks imports breadth-first from entry until every referenced
// script has been read.
func (r *Resolver) BuildGraph(entry string) (*Graph, error) {
	graph := NewGraph()
	queue := []string{entry}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if graph.Contains(current) {
			continue
		}

		content, err := r.source.Read(current)
		if err != nil {
			return nil, err
		}

		imports := ParseImports(string(content))
		graph.Add(current, imports)

		for _, name := range imports {
			if !graph.Contains(name) {
				queue = append(queue, name)
			}
		}
	}

	return graph, nil
}

// ParseImports returns the script names declared by import directives in
// content, in order of appearance.
func ParseImports(content string) []string {
	var imports []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, ImportDirective) {
			continue
		}
		if name := strings.TrimSpace(line[len(ImportDirective):]); name != "" {
			imports = append(imports, name)
		}
	}
	return imports
}

// IsExecutable reports whether name is run rather than only ordered
func IsExecutable(name string) bool {
	return strings.HasSuffix(name, ExecutableSuffix)
}
