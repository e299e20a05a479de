package composer

import (
	"slices"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
)

// dependencyNode is an element ordered by topoSort.
type dependencyNode interface {
	ID() string
	Dependencies() []string
}

// topoSort orders nodes so that dependencies come before dependents, using
// Kahn's algorithm. Among ready nodes the one declared first wins, so nodes
// without dependencies keep their declaration order. Dependencies outside
// the node set are ignored.
func topoSort[T dependencyNode](nodes []T) ([]T, error) {
	if len(nodes) < 2 {
		return nodes, nil
	}

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if id := n.ID(); id != "" {
			index[id] = i
		}
	}

	// in-degree = number of dependencies inside the node set
	inDegree := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	for i, n := range nodes {
		seen := map[int]bool{}
		for _, dep := range n.Dependencies() {
			j, ok := index[dep]
			if !ok || seen[j] {
				continue
			}
			seen[j] = true
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var queue []int
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	result := make([]T, 0, len(nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		result = append(result, nodes[i])

		for _, j := range dependents[i] {
			inDegree[j]--
			if inDegree[j] == 0 {
				queue = append(queue, j)
				slices.Sort(queue)
			}
		}
	}

	if len(result) != len(nodes) {
		var cycle []string
		for i, d := range inDegree {
			if d > 0 {
				cycle = append(cycle, nodes[i].ID())
			}
		}
		return nil, alerr.New(alerr.ErrCircularDependency, "circular dependency between "+strings.Join(cycle, ", ")).
			With("nodes", cycle)
	}
	return result, nil
}
