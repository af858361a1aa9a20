package domain

type StreamingState int

const (
	StreamingIdle StreamingState = iota
	StreamingRunning
)

func (s StreamingState) String() string {
	if s == StreamingRunning {
		return "running"
	}
	return "idle"
}

// StatusFrame is the payload of a status message.
type StatusFrame struct {
	IsStreaming bool `json:"is_streaming"`
}

// SystemCommand is an appliance-level command accepted from operators.
type SystemCommand string

const (
	CommandReboot   SystemCommand = "reboot"
	CommandPoweroff SystemCommand = "poweroff"
)

// ParseSystemCommand maps the wire string to a known command.
func ParseSystemCommand(s string) (SystemCommand, error) {
	switch SystemCommand(s) {
	case CommandReboot, CommandPoweroff:
		return SystemCommand(s), nil
	}
	return "", ErrUnknownCommand
}
