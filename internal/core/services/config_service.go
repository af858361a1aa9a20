package services

import (
	"context"
	"fmt"
	"sync"

	"streamctl/internal/core/domain"
	"streamctl/internal/core/ports"
	apperrors "streamctl/pkg/errors"
	"streamctl/pkg/tracing"
	"streamctl/pkg/validation"

	"go.uber.org/zap"
)

// Apply results reported to the metrics collector.
const (
	applyResultOK         = "ok"
	applyResultInvalid    = "invalid"
	applyResultSuperseded = "superseded"
	applyResultPersist    = "persistence_error"
)

// ConfigStore owns the device config. Applies validate into a local draft
// and commit under mu; a commit is dropped if an apply issued later has
// already committed.
type ConfigStore struct {
	mu           sync.Mutex
	current      domain.Config
	passwordHash string
	issued       uint64 // last generation handed out
	committed    uint64 // generation of the last successful commit

	store     ports.DocumentStore
	pipelines ports.PipelineLister
	resolver  ports.HostResolver
	encoder   ports.EncoderControl
	metrics   ports.MetricsCollector
	logger    *zap.SugaredLogger
}

func NewConfigStore(
	store ports.DocumentStore,
	pipelines ports.PipelineLister,
	resolver ports.HostResolver,
	encoder ports.EncoderControl,
	metrics ports.MetricsCollector,
	logger *zap.SugaredLogger,
) *ConfigStore {
	return &ConfigStore{
		current:   domain.DefaultConfig(),
		store:     store,
		pipelines: pipelines,
		resolver:  resolver,
		encoder:   encoder,
		metrics:   metrics,
		logger:    logger,
	}
}

// Load reads the persisted config. A missing document keeps the defaults.
func (s *ConfigStore) Load(ctx context.Context) error {
	doc := domain.ConfigDocument{Config: domain.DefaultConfig()}
	found, err := s.store.Load(ctx, ports.DocumentConfig, &doc)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if found {
		s.current = doc.Config
		s.passwordHash = doc.PasswordHash
	}
	s.logger.Infow("config loaded", "found", found, "pipeline", s.current.Pipeline, "password_set", s.passwordHash != "")
	return nil
}

// Snapshot returns a copy of the current config.
func (s *ConfigStore) Snapshot() domain.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *ConfigStore) PasswordHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passwordHash
}

// SetPasswordHash persists hash alongside the current config. The old hash
// stays in effect if the write fails.
func (s *ConfigStore) SetPasswordHash(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := domain.ConfigDocument{Config: s.current, PasswordHash: hash}
	if err := s.save(ctx, doc); err != nil {
		return err
	}
	s.passwordHash = hash
	return nil
}

// Apply validates candidate and, if every check passes, replaces the
// stored config with it. The first failing check is returned.
func (s *ConfigStore) Apply(ctx context.Context, candidate domain.ConfigCandidate) (domain.Config, error) {
	gen := s.nextGeneration()
	ctx, span := tracing.TraceConfigApply(ctx, gen)
	defer span.End()

	draft, err := s.validate(ctx, candidate)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.metrics.RecordConfigApply(applyResultInvalid)
		return domain.Config{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed > gen {
		s.metrics.RecordConfigApply(applyResultSuperseded)
		s.logger.Infow("discarding stale config apply", "generation", gen, "committed", s.committed)
		return domain.Config{}, apperrors.WrapError(domain.ErrConfigSuperseded, apperrors.ErrCodeConflict,
			"the configuration was changed by another session").WithContext("generation", gen)
	}

	doc := domain.ConfigDocument{Config: draft, PasswordHash: s.passwordHash}
	if err := s.save(ctx, doc); err != nil {
		tracing.RecordError(ctx, err)
		s.metrics.RecordConfigApply(applyResultPersist)
		return domain.Config{}, err
	}

	s.current = draft
	s.committed = gen
	s.metrics.RecordConfigApply(applyResultOK)
	s.logger.Infow("config applied",
		"generation", gen,
		"pipeline", draft.Pipeline,
		"min_br", draft.MinBitrate,
		"max_br", draft.MaxBitrate,
		"srtla_addr", draft.SRTLAAddr,
		"srtla_port", draft.SRTLAPort,
	)
	return draft, nil
}

// ApplyBitrateOnly updates just the bitrate range and pushes it to the
// running encoder through the sentinel file and a reload signal.
func (s *ConfigStore) ApplyBitrateOnly(ctx context.Context, candidate domain.BitrateCandidate) (domain.BitrateRange, error) {
	br, err := validateBitrate(candidate.Min, candidate.Max)
	if err != nil {
		return domain.BitrateRange{}, err
	}
	gen := s.nextGeneration()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	next.MinBitrate = br.Min
	next.MaxBitrate = br.Max

	doc := domain.ConfigDocument{Config: next, PasswordHash: s.passwordHash}
	if err := s.save(ctx, doc); err != nil {
		return domain.BitrateRange{}, err
	}
	s.current = next
	if gen > s.committed {
		s.committed = gen
	}

	if err := s.encoder.WriteBitrate(ctx, br); err != nil {
		return br, apperrors.NewProcessError("failed to write the bitrate file", err)
	}
	if err := s.encoder.Reload(); err != nil {
		return br, apperrors.NewProcessError("failed to signal the encoder", err)
	}

	s.logger.Infow("bitrate updated", "min_br", br.Min, "max_br", br.Max)
	return br, nil
}

func (s *ConfigStore) nextGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// save must be called with mu held.
func (s *ConfigStore) save(ctx context.Context, doc domain.ConfigDocument) error {
	err := s.store.Save(ctx, ports.DocumentConfig, doc)
	s.metrics.RecordDocumentWrite(ports.DocumentConfig, err)
	if err != nil {
		s.logger.Errorw("failed to persist config", "error", err)
		return apperrors.NewPersistenceError(ports.DocumentConfig, err)
	}
	return nil
}

// validate runs the checks in order and returns the first failure. Name
// resolution is the last step and runs without holding mu.
func (s *ConfigStore) validate(ctx context.Context, c domain.ConfigCandidate) (domain.Config, error) {
	var draft domain.Config

	if c.Delay == nil {
		return draft, apperrors.NewValidationError("delay", "delay is required")
	}
	if err := validation.ValidateRange("delay", *c.Delay, domain.MinDelay, domain.MaxDelay); err != nil {
		return draft, apperrors.NewValidationError("delay", err.Error()+" ms")
	}
	draft.Delay = *c.Delay

	if c.Pipeline == nil {
		return draft, apperrors.NewValidationError("pipeline", "pipeline is required")
	}
	if err := validation.ValidatePipelineID(*c.Pipeline); err != nil {
		return draft, apperrors.NewValidationError("pipeline", err.Error())
	}
	if _, err := s.pipelines.Lookup(ctx, domain.PipelineID(*c.Pipeline)); err != nil {
		return draft, apperrors.WrapError(err, apperrors.ErrCodeValidation, "unknown pipeline").
			WithContext("field", "pipeline")
	}
	draft.Pipeline = *c.Pipeline

	br, err := validateBitrate(c.MinBitrate, c.MaxBitrate)
	if err != nil {
		return draft, err
	}
	draft.MinBitrate = br.Min
	draft.MaxBitrate = br.Max

	if c.SRTLatency == nil {
		return draft, apperrors.NewValidationError("srt_latency", "SRT latency is required")
	}
	if err := validation.ValidateRange("SRT latency", *c.SRTLatency, domain.MinSRTLatency, domain.MaxSRTLatency); err != nil {
		return draft, apperrors.NewValidationError("srt_latency", err.Error()+" ms")
	}
	draft.SRTLatency = *c.SRTLatency

	if c.SRTStreamID == nil {
		return draft, apperrors.NewValidationError("srt_streamid", "SRT stream id is required")
	}
	draft.SRTStreamID = *c.SRTStreamID

	if c.SRTLAAddr == nil {
		return draft, apperrors.NewValidationError("srtla_addr", "remote address is required")
	}
	if c.SRTLAPort == nil {
		return draft, apperrors.NewValidationError("srtla_port", "remote port is required")
	}
	if err := validation.ValidatePort(*c.SRTLAPort); err != nil {
		return draft, apperrors.NewValidationError("srtla_port", err.Error())
	}
	if err := validation.ValidateHost(*c.SRTLAAddr); err != nil {
		return draft, apperrors.NewValidationError("srtla_addr", err.Error())
	}
	addrs, err := s.resolver.LookupHost(ctx, *c.SRTLAAddr)
	if err != nil {
		return draft, apperrors.NewResolutionError(*c.SRTLAAddr, err)
	}
	if len(addrs) == 0 {
		return draft, apperrors.NewResolutionError(*c.SRTLAAddr, fmt.Errorf("no addresses for %s", *c.SRTLAAddr))
	}
	draft.SRTLAAddr = *c.SRTLAAddr
	draft.SRTLAPort = *c.SRTLAPort

	return draft, nil
}

func validateBitrate(min, max *int) (domain.BitrateRange, error) {
	if min == nil || max == nil {
		return domain.BitrateRange{}, apperrors.NewValidationError("bitrate", "both min_br and max_br are required")
	}
	if err := validation.ValidateRange("min_br", *min, domain.MinBitrate, domain.MaxBitrate); err != nil {
		return domain.BitrateRange{}, apperrors.NewValidationError("min_br", err.Error()+" kbps")
	}
	if err := validation.ValidateRange("max_br", *max, domain.MinBitrate, domain.MaxBitrate); err != nil {
		return domain.BitrateRange{}, apperrors.NewValidationError("max_br", err.Error()+" kbps")
	}
	if *min > *max {
		return domain.BitrateRange{}, apperrors.NewValidationError("min_br", "min_br must not exceed max_br")
	}
	return domain.BitrateRange{Min: *min, Max: *max}, nil
}
