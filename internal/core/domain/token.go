package domain

// Token is an opaque session credential.
type Token string

type TokenClass int

const (
	TokenEphemeral TokenClass = iota
	TokenPersistent
)

func (c TokenClass) String() string {
	if c == TokenPersistent {
		return "persistent"
	}
	return "ephemeral"
}

// TokenDocument is the durable token set: token string to presence marker.
type TokenDocument map[Token]bool
