/*
Package scalux is a hierarchical finite state machine over a "mode tree".

An application describes its states as a tree whose leaves are the valid
modes. Each mode is the path of keys from the root to a leaf, written with
"/" separators (for example "userPlaying/piecePicking"). Transitions are
expressed against partial paths rather than whole modes: a macro handle
rewrites a leading prefix, a sub handle rewrites a trailing suffix, and
option selectors classify a mode by the branch it takes at chosen nodes.

# Concept

The tree is compiled once and validated eagerly: malformed definitions,
unknown partial paths and invalid rewrites are all reported as typed
errors (see package domain). The compiled tree is immutable and safe for
concurrent use. The current mode is not held by the tree; it lives in the
host's state, here a session.Manager backed by a pluggable store.

# Usage

	def := domain.Branch(
		domain.Key("userPlaying", domain.Leaves("piecePicking", "pieceDumping")),
		domain.Key("opponentPlaying", domain.Leaves("piecePicking", "pieceDumping")),
	)

	eng, err := scalux.FromDefinition(def, scalux.WithOptions(map[string][]string{
		"player": {"/"},
	}))
	if err != nil {
		log.Fatal(err)
	}

	turn, _ := eng.Macro("userPlaying")
	next, err := turn.Next("opponentPlaying", "userPlaying/piecePicking")
	// next == "opponentPlaying/piecePicking"

Definitions can also be read from YAML, JSON or CUE files with New, and
reloaded while serving with AutoReload.
*/
package scalux
