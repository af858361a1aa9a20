package ports

import (
	"context"

	"streamctl/internal/core/domain"
)

type CredentialService interface {
	// Authenticate checks password against the stored hash. With no hash
	// configured, a valid password becomes the new one.
	Authenticate(ctx context.Context, password string) (bool, error)
	SetPassword(ctx context.Context, password string) error
	HasPassword() bool
}

type TokenService interface {
	Issue(ctx context.Context, persistent bool) (domain.Token, error)
	Validate(token domain.Token) bool
	Revoke(ctx context.Context, token domain.Token) error
}

type ConfigService interface {
	Apply(ctx context.Context, candidate domain.ConfigCandidate) (domain.Config, error)
	ApplyBitrateOnly(ctx context.Context, candidate domain.BitrateCandidate) (domain.BitrateRange, error)
	Snapshot() domain.Config
}

type StreamService interface {
	// Start commits the candidate and launches the stream. A launch failure
	// after the commit returns the committed config together with the error.
	Start(ctx context.Context, candidate domain.ConfigCandidate) (domain.Config, error)
	Stop(ctx context.Context) error
	UpdateBitrate(ctx context.Context, candidate domain.BitrateCandidate) (domain.BitrateRange, error)
	State() domain.StreamingState
}

type NetworkService interface {
	Snapshot() domain.InterfaceMetrics
}
