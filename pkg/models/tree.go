package models

// NodeKind discriminates folder and file tree nodes.
type NodeKind string

const (
	KindFolder NodeKind = "folder"
	KindFile   NodeKind = "file"
)

// TreeNode is a folder or file in the display tree derived from a flat file
// list. Folders carry Children; files carry File.
type TreeNode struct {
	Kind     NodeKind     `json:"type"`
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	Children []*TreeNode  `json:"children,omitempty"`
	File     *ProjectFile `json:"file,omitempty"`
}

// IsFolder reports whether n is a folder node.
func (n *TreeNode) IsFolder() bool {
	return n.Kind == KindFolder
}
