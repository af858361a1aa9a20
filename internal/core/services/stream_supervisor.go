package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"streamctl/internal/core/domain"
	"streamctl/internal/core/ports"
	apperrors "streamctl/pkg/errors"
	"streamctl/pkg/tracing"

	"go.uber.org/zap"
)

// livenessMissThreshold is the number of consecutive failed liveness checks
// before a running stream is reported idle.
const livenessMissThreshold = 2

// StreamSupervisor tracks whether the encoder is running. The state is only
// ever changed by the liveness check; Start and Stop act on processes.
//
// A start goes through two phases. While launching, the config is applied
// and the processes are spawned; only Start leaves this phase. Once spawned
// the start is pending until the liveness check sees the encoder or gives
// up after livenessMissThreshold misses.
type StreamSupervisor struct {
	mu        sync.Mutex
	state     domain.StreamingState
	launching bool
	pending   bool
	misses    int
	stopGen   uint64 // bumped by every Stop
	listener  func(domain.StreamingState)

	// spawnMu orders Spawn calls against Stop: a Stop waits for an
	// in-flight spawn, and a spawn after it sees the new stopGen.
	spawnMu sync.Mutex

	config    ports.ConfigService
	pipelines ports.PipelineLister
	procs     ports.ProcessController
	commands  ports.EncoderCommands
	metrics   ports.MetricsCollector
	interval  time.Duration
	logger    *zap.SugaredLogger
}

func NewStreamSupervisor(
	config ports.ConfigService,
	pipelines ports.PipelineLister,
	procs ports.ProcessController,
	commands ports.EncoderCommands,
	metrics ports.MetricsCollector,
	interval time.Duration,
	logger *zap.SugaredLogger,
) *StreamSupervisor {
	return &StreamSupervisor{
		state:     domain.StreamingIdle,
		config:    config,
		pipelines: pipelines,
		procs:     procs,
		commands:  commands,
		metrics:   metrics,
		interval:  interval,
		logger:    logger,
	}
}

// SetStateListener registers fn to be called after every state transition.
func (s *StreamSupervisor) SetStateListener(fn func(domain.StreamingState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

func (s *StreamSupervisor) State() domain.StreamingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start applies candidate and launches the transport helper and encoder.
// The running state follows from the next liveness checks.
//
// When the config was committed but the launch then failed, the applied
// config is returned together with the error.
func (s *StreamSupervisor) Start(ctx context.Context, candidate domain.ConfigCandidate) (domain.Config, error) {
	ctx, span := tracing.TraceStreamOperation(ctx, "start")
	defer span.End()

	s.mu.Lock()
	if s.state == domain.StreamingRunning {
		s.mu.Unlock()
		return domain.Config{}, apperrors.WrapError(domain.ErrAlreadyStreaming, apperrors.ErrCodeConflict, "already streaming")
	}
	if s.launching || s.pending {
		s.mu.Unlock()
		return domain.Config{}, apperrors.WrapError(domain.ErrStartPending, apperrors.ErrCodeConflict, "the stream is already starting")
	}
	s.launching = true
	gen := s.stopGen
	s.mu.Unlock()

	cfg, err := s.launch(ctx, candidate, gen)

	s.mu.Lock()
	s.launching = false
	if err == nil {
		s.pending = true
		s.misses = 0
	}
	s.mu.Unlock()

	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return cfg, err
}

func (s *StreamSupervisor) launch(ctx context.Context, candidate domain.ConfigCandidate, gen uint64) (domain.Config, error) {
	cfg, err := s.config.Apply(ctx, candidate)
	if err != nil {
		return domain.Config{}, err
	}

	pipeline, err := s.pipelines.Lookup(ctx, domain.PipelineID(cfg.Pipeline))
	if err != nil {
		return cfg, apperrors.WrapError(err, apperrors.ErrCodeValidation, "unknown pipeline").
			WithContext("field", "pipeline")
	}

	if err := s.commands.Prepare(ctx, cfg); err != nil {
		return cfg, apperrors.NewProcessError("failed to prepare the stream", err)
	}
	transportArgs, err := s.commands.TransportArgs(cfg)
	if err != nil {
		return cfg, apperrors.NewProcessError("failed to prepare the transport", err)
	}
	encoderArgs, err := s.commands.EncoderArgs(cfg, pipeline)
	if err != nil {
		return cfg, apperrors.NewProcessError("failed to prepare the encoder", err)
	}

	s.spawnMu.Lock()
	defer s.spawnMu.Unlock()

	if s.stoppedSince(gen) {
		s.logger.Infow("stream start cancelled before spawn")
		return cfg, apperrors.WrapError(domain.ErrStartCancelled, apperrors.ErrCodeConflict, "the stream was stopped while starting")
	}
	if err := s.procs.Spawn(ctx, transportArgs); err != nil {
		s.logger.Errorw("failed to start transport", "error", err, "name", s.commands.TransportName())
		return cfg, apperrors.NewProcessError("failed to start the transport", err)
	}
	if err := s.procs.Spawn(ctx, encoderArgs); err != nil {
		s.logger.Errorw("failed to start encoder", "error", err, "name", s.commands.EncoderName())
		if termErr := s.procs.TerminateByName(s.commands.TransportName()); termErr != nil && !errors.Is(termErr, domain.ErrProcessNotFound) {
			s.logger.Warnw("failed to clean up transport", "error", termErr)
		}
		return cfg, apperrors.NewProcessError("failed to start the encoder", err)
	}

	s.logger.Infow("stream processes started", "pipeline", pipeline.Name, "srtla_addr", cfg.SRTLAAddr, "srtla_port", cfg.SRTLAPort)
	return cfg, nil
}

func (s *StreamSupervisor) isLaunching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launching
}

func (s *StreamSupervisor) stoppedSince(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopGen != gen
}

// Stop terminates the encoder and transport by name. A start still
// launching is cancelled before it spawns anything. It does nothing when
// no stream is running or starting.
func (s *StreamSupervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == domain.StreamingIdle && !s.pending && !s.launching {
		s.mu.Unlock()
		return nil
	}
	s.stopGen++
	s.pending = false
	s.mu.Unlock()

	_, span := tracing.TraceStreamOperation(ctx, "stop")
	defer span.End()

	// Wait out a spawn that was already under way.
	s.spawnMu.Lock()
	defer s.spawnMu.Unlock()

	var errs []error
	for _, name := range []string{s.commands.EncoderName(), s.commands.TransportName()} {
		if err := s.procs.TerminateByName(name); err != nil && !errors.Is(err, domain.ErrProcessNotFound) {
			s.logger.Errorw("failed to terminate process", "name", name, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return apperrors.NewProcessError("failed to stop the stream", errors.Join(errs...))
	}

	s.logger.Infow("stream stop requested")
	return nil
}

// UpdateBitrate changes the live bitrate. It fails with ErrNotStreaming
// when no stream is running.
func (s *StreamSupervisor) UpdateBitrate(ctx context.Context, candidate domain.BitrateCandidate) (domain.BitrateRange, error) {
	if s.State() != domain.StreamingRunning {
		return domain.BitrateRange{}, domain.ErrNotStreaming
	}
	return s.config.ApplyBitrateOnly(ctx, candidate)
}

// Check runs one liveness check. One alive observation marks the stream
// running; livenessMissThreshold consecutive misses mark it idle.
func (s *StreamSupervisor) Check() {
	alive, err := s.procs.IsAlive(s.commands.EncoderName())
	if err != nil {
		s.logger.Warnw("liveness check failed", "error", err)
	}

	s.mu.Lock()
	prev := s.state
	if err == nil && alive {
		s.misses = 0
		s.pending = false
		s.state = domain.StreamingRunning
	} else {
		if s.misses < livenessMissThreshold {
			s.misses++
		}
		if s.misses >= livenessMissThreshold {
			s.pending = false
			s.state = domain.StreamingIdle
		}
	}
	next := s.state
	listener := s.listener
	s.mu.Unlock()

	if next == prev {
		return
	}
	s.logger.Infow("streaming state changed", "from", prev.String(), "to", next.String())
	s.metrics.RecordStreamingState(next)
	if listener != nil {
		listener(next)
	}
}

// Run checks liveness every interval until ctx is done.
func (s *StreamSupervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Check()
		}
	}
}
