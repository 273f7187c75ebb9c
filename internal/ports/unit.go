// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

// Unit is a configured stage of the comparison pipeline.
// Each stage exposes its own typed operations; the shared surface only
// covers identification and readiness. Units are safe for concurrent use.
type Unit interface {
	// Name returns a unique identifier for this unit.
	// The name is used for logging, metrics labels and configuration.
	Name() string

	// Validate checks if the unit is properly configured and ready for
	// execution: required configuration is set and dependencies such as
	// the client resolver are present.
	Validate() error
}
