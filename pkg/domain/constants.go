package domain

const (
	// RootRef is the node reference of the tree root.
	RootRef = ""

	// DefaultHistoryLimit bounds the undo stack of a session.
	DefaultHistoryLimit = 50
)
