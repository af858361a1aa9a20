package process

import (
	"context"
	"fmt"
	"os/exec"

	"streamctl/internal/core/domain"

	"go.uber.org/zap"
)

// SystemCommander runs the power management commands an operator may
// request. Binaries are looked up in PATH.
type SystemCommander struct {
	binaries map[domain.SystemCommand][]string
	run      func(ctx context.Context, argv []string) error
	logger   *zap.SugaredLogger
}

func NewSystemCommander(logger *zap.SugaredLogger) *SystemCommander {
	return &SystemCommander{
		binaries: map[domain.SystemCommand][]string{
			domain.CommandReboot:   {"reboot"},
			domain.CommandPoweroff: {"poweroff"},
		},
		run:    runCommand,
		logger: logger,
	}
}

func (s *SystemCommander) Run(ctx context.Context, cmd domain.SystemCommand) error {
	argv, ok := s.binaries[cmd]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCommand, string(cmd))
	}
	s.logger.Warnw("running system command", "command", string(cmd))
	if err := s.run(ctx, argv); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

func runCommand(ctx context.Context, argv []string) error {
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, out)
	}
	return err
}
