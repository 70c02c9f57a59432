// Package app provides service initialization and dependency wiring.
// It encapsulates the creation of the backing store, the application store,
// metrics, handlers, routers and the HTTP server, keeping the main package
// focused on CLI parsing and orchestration.
package app
