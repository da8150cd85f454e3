/*
Package session implements the current-mode store of scalux.

A Manager holds no state itself: every operation loads the session from a
ports.StateStore, validates the persisted mode against the compiled tree,
applies a transition (set, macro, sub, undo, redo) and saves the result while
holding a per-session lock. An optional ports.DistributedLocker extends that
lock across replicas.
*/
package session
