/*
Package ports defines the driven ports (interfaces) for scalux.

These interfaces decouple the mode tree and session logic from external
implementations, allowing them to work with various definition sources and
storage backends.

# Key Interfaces

  - TreeLoader: Responsible for loading the mode tree definition (file, CUE, memory).
  - Watchable: Signals that the definition changed and should be reloaded.
  - StateStore: Responsible for persisting and loading session State.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - ModeEngine / SessionService: The driving surface used by transports.
*/
package ports
