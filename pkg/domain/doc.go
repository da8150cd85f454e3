/*
Package domain contains the core types shared by every scalux package.

It defines the mode tree definition, the Mode path string, the serializable
session State that holds the current mode, and the error taxonomy. The package
is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Tree: a sealed variant, either Leaf or Node with ordered children.
  - Mode: a "/"-joined root-to-leaf path naming one state of the machine.
  - State: the current mode of a session plus its undo/redo history.
  - LifecycleHooks: callbacks fired when a session moves or a move is refused.
*/
package domain
