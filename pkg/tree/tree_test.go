package tree

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/faraday/faraday/pkg/models"
)

func files(paths ...string) []models.ProjectFile {
	out := make([]models.ProjectFile, len(paths))
	for i, p := range paths {
		out[i] = models.ProjectFile{Path: p, Content: "// " + p}.WithLanguage()
	}
	return out
}

// shape renders a forest as "name(children)" for compact comparisons.
func shape(nodes []*models.TreeNode) []string {
	var out []string
	for _, n := range nodes {
		s := n.Name
		if n.IsFolder() {
			s += "/"
			for _, c := range shape(n.Children) {
				s += " " + c
			}
		}
		out = append(out, s)
	}
	return out
}

func TestBuildScenario(t *testing.T) {
	got := Build(files("b.ts", "a/z.ts", "a/y.ts"))

	if len(got) != 2 {
		t.Fatalf("got %d top-level nodes, want 2", len(got))
	}
	a, b := got[0], got[1]
	if a.Kind != models.KindFolder || a.Name != "a" || a.Path != "a" {
		t.Errorf("first node = %+v, want folder a", a)
	}
	if b.Kind != models.KindFile || b.Name != "b.ts" {
		t.Errorf("second node = %+v, want file b.ts", b)
	}
	if len(a.Children) != 2 || a.Children[0].Name != "y.ts" || a.Children[1].Name != "z.ts" {
		t.Errorf("folder a children = %v, want [y.ts z.ts]", shape(a.Children))
	}
	if a.Children[0].Path != "a/y.ts" || a.Children[0].File.Path != "a/y.ts" {
		t.Errorf("leaf path = %q / %q", a.Children[0].Path, a.Children[0].File.Path)
	}
}

func TestBuildFoldersBeforeFiles(t *testing.T) {
	got := shape(Build(files("zeta.md", "alpha.ts", "src/App.tsx", "arduino/blink.ino")))
	want := []string{"arduino/ blink.ino", "src/ App.tsx", "alpha.ts", "zeta.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("shape = %q, want %q", got, want)
	}
}

func TestBuildEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  []string
	}{
		{"no slash", []string{"main.ino"}, []string{"main.ino"}},
		{"empty path", []string{""}, nil},
		{"only slashes", []string{"///"}, nil},
		{"collapsed slashes", []string{"/src//lib/x.ts/"}, []string{"src/ lib/ x.ts"}},
		{"deep", []string{"a/b/c/d/e/f.txt"}, []string{"a/ b/ c/ d/ e/ f.txt"}},
		{"duplicates kept", []string{"x.ts", "x.ts"}, []string{"x.ts", "x.ts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shape(Build(files(tt.paths...)))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("shape = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildCollapsedPathsShareFolder(t *testing.T) {
	got := Build(files("/src/a.ts", "src//b.ts"))
	if len(got) != 1 || got[0].Path != "src" {
		t.Fatalf("got %v, want a single src folder", shape(got))
	}
	if got[0].Children[1].Path != "src/b.ts" {
		t.Errorf("normalized path = %q, want src/b.ts", got[0].Children[1].Path)
	}
}

func TestBuildOrderIndependent(t *testing.T) {
	input := files(
		"src/App.tsx", "src/pages/Index.tsx", "src/pages/NotFound.tsx",
		"arduino/blink.ino", "arduino/main.ino", "README.md", "package.json",
		"src/lib/utils.ts", "dup.ts", "dup.ts",
	)
	input[9].Content = "other"
	want := Build(input)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		perm := make([]models.ProjectFile, len(input))
		copy(perm, input)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })

		if got := Build(perm); !reflect.DeepEqual(got, want) {
			t.Fatalf("permutation %d produced a different tree: %v vs %v", i, shape(got), shape(want))
		}
	}
}

func TestFindByPath(t *testing.T) {
	nodes := Build(files("a.txt", "dir/b.txt"))

	tests := []struct {
		path  string
		found bool
	}{
		{"a.txt", true},
		{"dir", true},
		{"dir/b.txt", true},
		{"nonexistent", false},
	}

	for _, tt := range tests {
		node := FindByPath(nodes, tt.path)
		if (node != nil) != tt.found {
			t.Errorf("FindByPath(%q) found=%v, want %v", tt.path, node != nil, tt.found)
		}
		if node != nil && node.Path != tt.path {
			t.Errorf("FindByPath(%q).Path = %q", tt.path, node.Path)
		}
	}

	if FindByPath(nil, "a.txt") != nil {
		t.Error("FindByPath(nil, a.txt) should return nil")
	}
}

func TestCountNodes(t *testing.T) {
	nodes := Build(files("a.txt", "dir/b.txt", "dir/sub/c.txt"))
	if got := CountNodes(nodes); got != 5 {
		t.Errorf("CountNodes = %d, want 5", got)
	}
	if got := CountFiles(nodes); got != 3 {
		t.Errorf("CountFiles = %d, want 3", got)
	}
	if got := CountNodes(nil); got != 0 {
		t.Errorf("CountNodes(nil) = %d, want 0", got)
	}
}

func TestWalkDepth(t *testing.T) {
	var visited []string
	var depths []int
	Walk(Build(files("dir/b.txt", "a.txt")), func(n *models.TreeNode, depth int) {
		visited = append(visited, n.Path)
		depths = append(depths, depth)
	})
	if !reflect.DeepEqual(visited, []string{"dir", "dir/b.txt", "a.txt"}) {
		t.Errorf("visit order = %v", visited)
	}
	if !reflect.DeepEqual(depths, []int{0, 1, 0}) {
		t.Errorf("depths = %v", depths)
	}
}

func TestBuildChildPath(t *testing.T) {
	tests := []struct {
		parent, name, want string
	}{
		{"", "file.txt", "file.txt"},
		{"dir", "file.txt", "dir/file.txt"},
		{"a/b", "c", "a/b/c"},
	}
	for _, tt := range tests {
		got := BuildChildPath(tt.parent, tt.name)
		if got != tt.want {
			t.Errorf("BuildChildPath(%q, %q) = %q, want %q", tt.parent, tt.name, got, tt.want)
		}
	}
}

func TestFlatten(t *testing.T) {
	flat := Flatten(Build(files("a.txt", "dir/b.txt")))
	if len(flat) != 3 {
		t.Errorf("Flatten returned %d nodes, want 3", len(flat))
	}
	for _, path := range []string{"a.txt", "dir", "dir/b.txt"} {
		if _, ok := flat[path]; !ok {
			t.Errorf("Flatten missing path %q", path)
		}
	}

	if len(Flatten(nil)) != 0 {
		t.Error("Flatten(nil) should return empty map")
	}
}
