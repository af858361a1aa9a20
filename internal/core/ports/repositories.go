package ports

import (
	"context"
)

// Document names in the store.
const (
	DocumentSetup  = "setup"
	DocumentConfig = "config"
	DocumentTokens = "auth_tokens"
)

// DocumentStore reads and writes whole JSON documents by name.
type DocumentStore interface {
	// Load decodes the named document into v. It reports false with a nil
	// error when the document does not exist.
	Load(ctx context.Context, name string, v interface{}) (bool, error)
	// Save replaces the named document with v in one step.
	Save(ctx context.Context, name string, v interface{}) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
