package ports

import (
	"context"
	"os"

	"streamctl/internal/core/domain"
)

// PipelineLister scans the pipeline directories. Every call rescans.
type PipelineLister interface {
	List(ctx context.Context) ([]domain.Pipeline, error)
	Lookup(ctx context.Context, id domain.PipelineID) (domain.Pipeline, error)
}

// ProcessController starts detached processes and finds running ones by
// executable name rather than by handle.
type ProcessController interface {
	Spawn(ctx context.Context, argv []string) error
	TerminateByName(name string) error
	SignalByName(name string, sig os.Signal) error
	IsAlive(name string) (bool, error)
}

// EncoderCommands prepares the files the encoder and transport helper read
// at startup and builds their argument vectors.
type EncoderCommands interface {
	Prepare(ctx context.Context, cfg domain.Config) error
	EncoderArgs(cfg domain.Config, pipeline domain.Pipeline) ([]string, error)
	TransportArgs(cfg domain.Config) ([]string, error)
	EncoderName() string
	TransportName() string
}

// EncoderControl pushes a new bitrate range to a running encoder.
type EncoderControl interface {
	WriteBitrate(ctx context.Context, br domain.BitrateRange) error
	Reload() error
}

type InterfacePoller interface {
	Poll(ctx context.Context) (map[string]domain.InterfaceCounters, error)
}

type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type SystemCommander interface {
	Run(ctx context.Context, cmd domain.SystemCommand) error
}

// MetricsCollector receives operational counters from the services.
type MetricsCollector interface {
	RecordSessionOpened()
	RecordSessionClosed()
	RecordAuthAttempt(method string, success bool)
	RecordConfigApply(result string)
	RecordStreamingState(state domain.StreamingState)
	RecordInterfaceThroughput(name string, bytesPerSecond uint64)
	RecordDocumentWrite(document string, err error)
}
