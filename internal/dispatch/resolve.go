package dispatch

import (
	"strings"

	"github.com/roach88/pluma/internal/tree"
)

// Resolve follows argv from root down the tree as far as it matches and
// returns the deepest node reached with the arguments left over. Walking
// stops at the first option or at a leaf. A word that names no child of a
// group is an UnknownCommand error listing the closest children; the group
// is still returned so its help can be shown.
func Resolve(root *tree.Node, argv []string) (*tree.Node, []string, error) {
	node := root
	for i, word := range argv {
		if node.Kind != tree.Group || strings.HasPrefix(word, "-") {
			return node, argv[i:], nil
		}
		child := node.Child(word)
		if child == nil {
			return node, argv[i:], node.Suggest(word)
		}
		node = child
	}
	return node, nil, nil
}
