package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"streamctl/internal/core/domain"
	"streamctl/internal/core/ports"
	apperrors "streamctl/pkg/errors"

	"go.uber.org/zap"
)

// tokenBytes gives 256 bits of entropy per token.
const tokenBytes = 32

// TokenRegistry holds the ephemeral and persistent token sets. The durable
// copy of the persistent set is rewritten before memory changes, so a
// revoked token never survives a restart.
type TokenRegistry struct {
	mu         sync.Mutex
	ephemeral  map[domain.Token]struct{}
	persistent map[domain.Token]struct{}

	store   ports.DocumentStore
	random  io.Reader
	metrics ports.MetricsCollector
	logger  *zap.SugaredLogger
}

func NewTokenRegistry(store ports.DocumentStore, metrics ports.MetricsCollector, logger *zap.SugaredLogger) *TokenRegistry {
	return &TokenRegistry{
		ephemeral:  make(map[domain.Token]struct{}),
		persistent: make(map[domain.Token]struct{}),
		store:      store,
		random:     rand.Reader,
		metrics:    metrics,
		logger:     logger,
	}
}

// Load reads the durable token set.
func (r *TokenRegistry) Load(ctx context.Context) error {
	doc := domain.TokenDocument{}
	if _, err := r.store.Load(ctx, ports.DocumentTokens, &doc); err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for tok, present := range doc {
		if present {
			r.persistent[tok] = struct{}{}
		}
	}
	r.logger.Infow("tokens loaded", "persistent", len(r.persistent))
	return nil
}

// Issue creates a new token. A persistent token is on durable storage
// before Issue returns.
func (r *TokenRegistry) Issue(ctx context.Context, persistent bool) (domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tok domain.Token
	for {
		t, err := r.generate()
		if err != nil {
			return "", apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to generate token")
		}
		if !r.containsLocked(t) {
			tok = t
			break
		}
	}

	if persistent {
		doc := r.documentLocked()
		doc[tok] = true
		if err := r.saveLocked(ctx, doc); err != nil {
			return "", err
		}
		r.persistent[tok] = struct{}{}
	} else {
		r.ephemeral[tok] = struct{}{}
	}

	class := domain.TokenEphemeral
	if persistent {
		class = domain.TokenPersistent
	}
	r.logger.Debugw("token issued", "class", class.String())
	return tok, nil
}

// Validate reports whether the token is in either set.
func (r *TokenRegistry) Validate(tok domain.Token) bool {
	if tok == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.containsLocked(tok)
}

// Revoke removes tok. If the durable rewrite fails the token stays valid
// and a persistence error is returned. Unknown tokens are ignored.
func (r *TokenRegistry) Revoke(ctx context.Context, tok domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.persistent[tok]; ok {
		doc := r.documentLocked()
		delete(doc, tok)
		if err := r.saveLocked(ctx, doc); err != nil {
			return err
		}
		delete(r.persistent, tok)
		r.logger.Debugw("token revoked", "class", domain.TokenPersistent.String())
		return nil
	}

	if _, ok := r.ephemeral[tok]; ok {
		delete(r.ephemeral, tok)
		r.logger.Debugw("token revoked", "class", domain.TokenEphemeral.String())
	}
	return nil
}

func (r *TokenRegistry) generate() (domain.Token, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r.random, buf); err != nil {
		return "", err
	}
	return domain.Token(base64.RawURLEncoding.EncodeToString(buf)), nil
}

func (r *TokenRegistry) containsLocked(tok domain.Token) bool {
	if _, ok := r.persistent[tok]; ok {
		return true
	}
	_, ok := r.ephemeral[tok]
	return ok
}

func (r *TokenRegistry) documentLocked() domain.TokenDocument {
	doc := make(domain.TokenDocument, len(r.persistent)+1)
	for tok := range r.persistent {
		doc[tok] = true
	}
	return doc
}

func (r *TokenRegistry) saveLocked(ctx context.Context, doc domain.TokenDocument) error {
	err := r.store.Save(ctx, ports.DocumentTokens, doc)
	r.metrics.RecordDocumentWrite(ports.DocumentTokens, err)
	if err != nil {
		r.logger.Errorw("failed to persist tokens", "error", err)
		return apperrors.NewPersistenceError(ports.DocumentTokens, err)
	}
	return nil
}
