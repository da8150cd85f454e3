package domain

import "strings"

// Separator joins the keys of a path.
const Separator = "/"

// Mode is a full root-to-leaf path through a mode tree.
type Mode string

func (m Mode) String() string { return string(m) }

// Keys splits the mode into its path keys.
func (m Mode) Keys() []string {
	return SplitPath(string(m))
}

// Depth is the number of keys in the mode.
func (m Mode) Depth() int {
	return PathDepth(string(m))
}

// JoinPath joins keys into a path string.
func JoinPath(keys ...string) string {
	return strings.Join(keys, Separator)
}

// SplitPath splits a path into keys. The empty path has no keys.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// PathDepth counts the keys of a path without allocating.
func PathDepth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, Separator) + 1
}
