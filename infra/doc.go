// Package infra contains technical adapters: store backends, provider
// clients, event publishers, monitors and metrics exporters. They implement
// the interfaces defined in the core packages.
package infra
