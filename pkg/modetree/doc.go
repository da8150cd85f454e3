/*
Package modetree compiles a mode tree definition and answers questions about
its modes.

A definition is a tree of named states. Compiling it yields the set of valid
modes (root-to-leaf paths joined by "/"), a Mirror for symbolic references,
and the indexes behind three tools:

  - Macro handles test and rewrite the leading keys of a mode.
  - Sub handles test and rewrite the trailing keys of a mode.
  - Selectors report which child of a chosen internal node a mode goes through.

Example:

	tree := modetree.MustCompile(domain.Branch(
		domain.Key("userPlaying", domain.Leaves("piecePicking", "pieceDumping")),
		domain.Key("opponentPlaying", domain.Leaves("piecePicking", "pieceDumping")),
	))

	turn := tree.MustMacro("userPlaying")
	if turn.Match(current) {
		next, err := turn.Next("opponentPlaying", current)
		// ...
	}

Compiled trees, handles and selectors never change after construction, so
they may be shared freely between goroutines. The current mode itself is
owned by the caller (see package session).
*/
package modetree
