package encoder

import (
	"strconv"
	"strings"
)

// CommandBuilder builds the argv of an external helper. Positional
// arguments are always emitted; flags with empty values are omitted.
type CommandBuilder struct {
	args []string
}

// NewCommandBuilder creates a new builder, pre-seeded with the binary path.
func NewCommandBuilder(binary string) *CommandBuilder {
	return &CommandBuilder{args: []string{binary}}
}

// Arg adds a positional argument.
func (b *CommandBuilder) Arg(val string) *CommandBuilder {
	b.args = append(b.args, val)
	return b
}

// IntArg adds a positional integer argument.
func (b *CommandBuilder) IntArg(val int) *CommandBuilder {
	return b.Arg(strconv.Itoa(val))
}

// WithString adds a string flag if val is non-empty (after trimming spaces).
func (b *CommandBuilder) WithString(flag, val string) *CommandBuilder {
	if strings.TrimSpace(val) != "" {
		b.args = append(b.args, flag, val)
	}
	return b
}

// WithInt adds an int flag.
func (b *CommandBuilder) WithInt(flag string, val int) *CommandBuilder {
	b.args = append(b.args, flag, strconv.Itoa(val))
	return b
}

// BuildArgs returns the constructed argv slice.
func (b *CommandBuilder) BuildArgs() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// BuildString returns the argv as a single shell-quoted string, for logs.
func (b *CommandBuilder) BuildString() string {
	quoted := make([]string, len(b.args))
	for i, a := range b.args {
		quoted[i] = shQuote(a)
	}
	return strings.Join(quoted, " ")
}

// shQuote wraps s in single quotes, escaping any internal single quotes.
func shQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
