package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"streamctl/internal/core/domain"
	"streamctl/internal/core/ports"

	"go.uber.org/zap"
)

// encoderHost is where the encoder sends its output; the transport helper
// listens there and bonds it over the uplinks.
const encoderHost = "127.0.0.1"

// Commands builds the encoder and transport argv from the device setup and
// writes the files both read at startup.
type Commands struct {
	setup   domain.Setup
	network ports.NetworkService
	logger  *zap.SugaredLogger
}

func NewCommands(setup domain.Setup, network ports.NetworkService, logger *zap.SugaredLogger) *Commands {
	return &Commands{
		setup:   setup.WithDefaults(),
		network: network,
		logger:  logger,
	}
}

func (c *Commands) EncoderName() string   { return filepath.Base(c.setup.EncoderPath) }
func (c *Commands) TransportName() string { return filepath.Base(c.setup.TransportPath) }

// Prepare writes the bitrate sentinel file and the transport's source
// address list. The address list holds the IPv4 address of every interface
// the network monitor currently sees, one per line.
func (c *Commands) Prepare(ctx context.Context, cfg domain.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeBitrateFile(c.setup.BitrateFile, cfg.Bitrate()); err != nil {
		return err
	}

	addrs := c.sourceAddrs()
	if len(addrs) == 0 {
		c.logger.Warnw("no uplink addresses found for the transport", "file", c.setup.SourceIPsFile)
	}
	if err := writeFileAtomic(c.setup.SourceIPsFile, []byte(joinLines(addrs))); err != nil {
		return fmt.Errorf("write source addresses: %w", err)
	}
	return nil
}

func (c *Commands) sourceAddrs() []string {
	if c.network == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, stats := range c.network.Snapshot() {
		if stats.Address == "" || seen[stats.Address] {
			continue
		}
		seen[stats.Address] = true
		out = append(out, stats.Address)
	}
	sort.Strings(out)
	return out
}

// EncoderArgs builds:
//
//	<encoder> <pipeline file> 127.0.0.1 <port> -d <delay> -b <bitrate file> -l <latency> [-s <streamid>]
func (c *Commands) EncoderArgs(cfg domain.Config, pipeline domain.Pipeline) ([]string, error) {
	if pipeline.Path == "" {
		return nil, errors.New("pipeline has no path")
	}
	return NewCommandBuilder(c.setup.EncoderPath).
		Arg(pipeline.Path).
		Arg(encoderHost).
		IntArg(c.setup.EncoderPort).
		WithInt("-d", cfg.Delay).
		WithString("-b", c.setup.BitrateFile).
		WithInt("-l", cfg.SRTLatency).
		WithString("-s", cfg.SRTStreamID).
		BuildArgs(), nil
}

// TransportArgs builds:
//
//	<transport> <listen port> <remote addr> <remote port> <source address file>
func (c *Commands) TransportArgs(cfg domain.Config) ([]string, error) {
	if cfg.SRTLAAddr == "" || cfg.SRTLAPort == 0 {
		return nil, errors.New("remote address is not configured")
	}
	return NewCommandBuilder(c.setup.TransportPath).
		IntArg(c.setup.EncoderPort).
		Arg(cfg.SRTLAAddr).
		IntArg(cfg.SRTLAPort).
		Arg(c.setup.SourceIPsFile).
		BuildArgs(), nil
}

// Control updates the bitrate of a running encoder: the new range goes into
// the sentinel file and SIGHUP tells the encoder to re-read it.
type Control struct {
	bitrateFile string
	encoderName string
	procs       ports.ProcessController
}

func NewControl(setup domain.Setup, procs ports.ProcessController) *Control {
	setup = setup.WithDefaults()
	return &Control{
		bitrateFile: setup.BitrateFile,
		encoderName: filepath.Base(setup.EncoderPath),
		procs:       procs,
	}
}

func (c *Control) WriteBitrate(ctx context.Context, br domain.BitrateRange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeBitrateFile(c.bitrateFile, br)
}

func (c *Control) Reload() error {
	if err := c.procs.SignalByName(c.encoderName, syscall.SIGHUP); err != nil {
		return fmt.Errorf("signal %s: %w", c.encoderName, err)
	}
	return nil
}

// writeBitrateFile stores the range in bits per second, min then max.
func writeBitrateFile(path string, br domain.BitrateRange) error {
	data := fmt.Sprintf("%d\n%d\n", br.Min*1000, br.Max*1000)
	if err := writeFileAtomic(path, []byte(data)); err != nil {
		return fmt.Errorf("write bitrate file: %w", err)
	}
	return nil
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// writeFileAtomic replaces path so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
