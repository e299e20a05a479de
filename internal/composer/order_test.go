package composer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
)

type testNode struct {
	id   string
	deps []string
}

func (n testNode) ID() string             { return n.id }
func (n testNode) Dependencies() []string { return n.deps }

func ids(nodes []testNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}

func TestTopoSort(t *testing.T) {
	tests := []struct {
		name  string
		nodes []testNode
		want  []string
	}{
		{
			name:  "keeps_declaration_order",
			nodes: []testNode{{id: "a"}, {id: "b"}, {id: "c"}},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "dependency_first",
			nodes: []testNode{{id: "a", deps: []string{"c"}}, {id: "b"}, {id: "c"}},
			want:  []string{"b", "c", "a"},
		},
		{
			name:  "chain",
			nodes: []testNode{{id: "a", deps: []string{"b"}}, {id: "b", deps: []string{"c"}}, {id: "c"}},
			want:  []string{"c", "b", "a"},
		},
		{
			name:  "external_dependencies_ignored",
			nodes: []testNode{{id: "a", deps: []string{"org"}}, {id: "b", deps: []string{"a", "a"}}},
			want:  []string{"a", "b"},
		},
		{
			name:  "anonymous_nodes",
			nodes: []testNode{{id: "", deps: []string{"x"}}, {id: "x"}, {id: ""}},
			want:  []string{"x", "", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := topoSort(tt.nodes)
			if err != nil {
				t.Fatalf("topoSort() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTopoSortCycle(t *testing.T) {
	nodes := []testNode{{id: "a", deps: []string{"b"}}, {id: "b", deps: []string{"a"}}, {id: "c"}}
	_, err := topoSort(nodes)
	if !alerr.Is(err, alerr.ErrCircularDependency) {
		t.Fatalf("error = %v, want %s", err, alerr.ErrCircularDependency)
	}
	ae := err.(*alerr.Error)
	if diff := cmp.Diff([]string{"a", "b"}, ae.GetContext()["nodes"]); diff != "" {
		t.Errorf("cycle nodes mismatch (-want +got):\n%s", diff)
	}
}
