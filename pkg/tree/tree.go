// Package tree builds and queries the folder/file display tree derived from a
// flat list of project files.
package tree

import (
	"sort"
	"strings"

	"github.com/faraday/faraday/pkg/models"
)

// Build groups files into a nested tree. Paths are split on "/" with empty
// segments dropped, so leading, trailing and doubled slashes collapse. Every
// level is ordered folders first, then by name. Files with an empty path are
// skipped.
//
// The result only depends on the set of input files, not on their order.
func Build(files []models.ProjectFile) []*models.TreeNode {
	root := &builder{folders: make(map[string]*builder)}

	for i := range files {
		f := files[i]
		parts := Split(f.Path)
		if len(parts) == 0 {
			continue
		}

		cursor := root
		acc := ""
		for j, part := range parts {
			acc = BuildChildPath(acc, part)
			if j == len(parts)-1 {
				cursor.node.Children = append(cursor.node.Children, &models.TreeNode{
					Kind: models.KindFile,
					Name: part,
					Path: acc,
					File: &f,
				})
				break
			}
			cursor = cursor.folder(part, acc)
		}
	}

	root.sort()
	return root.node.Children
}

type builder struct {
	node    models.TreeNode
	folders map[string]*builder
}

// folder returns the child folder called name, creating it on first use.
func (b *builder) folder(name, path string) *builder {
	if child, ok := b.folders[name]; ok {
		return child
	}
	child := &builder{
		node:    models.TreeNode{Kind: models.KindFolder, Name: name, Path: path},
		folders: make(map[string]*builder),
	}
	b.folders[name] = child
	b.node.Children = append(b.node.Children, &child.node)
	return child
}

func (b *builder) sort() {
	sort.Slice(b.node.Children, func(i, j int) bool {
		return less(b.node.Children[i], b.node.Children[j])
	})
	for _, child := range b.folders {
		child.sort()
	}
}

// less orders folders before files, then by name. Duplicate file leaves are
// tie-broken on their payload so permutations of the input agree.
func less(a, b *models.TreeNode) bool {
	if a.Kind != b.Kind {
		return a.Kind == models.KindFolder
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.File == nil || b.File == nil {
		return false
	}
	if a.File.Path != b.File.Path {
		return a.File.Path < b.File.Path
	}
	if a.File.Language != b.File.Language {
		return a.File.Language < b.File.Language
	}
	return a.File.Content < b.File.Content
}

// Split breaks a project path into its non-empty segments.
func Split(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// FindByPath resolves a node path in the tree (recursive).
func FindByPath(nodes []*models.TreeNode, path string) *models.TreeNode {
	for _, n := range nodes {
		if n.Path == path {
			return n
		}
		if found := FindByPath(n.Children, path); found != nil {
			return found
		}
	}
	return nil
}

// CountNodes counts all nodes in a forest.
func CountNodes(nodes []*models.TreeNode) int {
	count := 0
	for _, n := range nodes {
		count += 1 + CountNodes(n.Children)
	}
	return count
}

// CountFiles counts the file leaves in a forest.
func CountFiles(nodes []*models.TreeNode) int {
	count := 0
	Walk(nodes, func(n *models.TreeNode, _ int) {
		if !n.IsFolder() {
			count++
		}
	})
	return count
}

// Walk visits every node depth-first in display order. depth is 0 for
// top-level nodes.
func Walk(nodes []*models.TreeNode, fn func(n *models.TreeNode, depth int)) {
	walk(nodes, 0, fn)
}

func walk(nodes []*models.TreeNode, depth int, fn func(*models.TreeNode, int)) {
	for _, n := range nodes {
		fn(n, depth)
		walk(n.Children, depth+1, fn)
	}
}

// BuildChildPath constructs a child path from parent + name.
func BuildChildPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

// Flatten returns all nodes in a flat map keyed by path. When duplicate file
// paths exist the first one in display order wins.
func Flatten(nodes []*models.TreeNode) map[string]*models.TreeNode {
	result := make(map[string]*models.TreeNode)
	Walk(nodes, func(n *models.TreeNode, _ int) {
		if _, ok := result[n.Path]; !ok {
			result[n.Path] = n
		}
	})
	return result
}
