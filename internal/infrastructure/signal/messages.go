package signal

import (
	"encoding/json"

	"streamctl/internal/core/domain"
)

// Inbound keys. A frame may carry several; they are handled in this order.
const (
	KeyAuth    = "auth"
	KeyConfig  = "config"
	KeyStart   = "start"
	KeyStop    = "stop"
	KeyBitrate = "bitrate"
	KeyCommand = "command"
	KeyLogout  = "logout"
)

var dispatchOrder = []string{KeyConfig, KeyStart, KeyStop, KeyBitrate, KeyCommand, KeyLogout}

// Outbound frame types.
const (
	TypeAuth      = "auth"
	TypeConfig    = "config"
	TypePipelines = "pipelines"
	TypeStatus    = "status"
	TypeNetif     = "netif"
	TypeBitrate   = "bitrate"
	TypeError     = "error"
)

// Frame is an inbound message: command key to its raw payload.
type Frame map[string]json.RawMessage

// AuthRequest carries either a password or a previously issued token.
type AuthRequest struct {
	Password        *string `json:"password,omitempty"`
	Token           *string `json:"token,omitempty"`
	PersistentToken bool    `json:"persistent_token,omitempty"`
}

type AuthReply struct {
	Success   bool         `json:"success"`
	AuthToken domain.Token `json:"auth_token,omitempty"`
}

// ConfigRequest changes appliance settings that are not part of the
// stream config.
type ConfigRequest struct {
	Password *string `json:"password,omitempty"`
}

type ErrorReply struct {
	Msg string `json:"msg"`
}

// encodeFrame renders {typ: payload}.
func encodeFrame(typ string, payload interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{typ: payload})
}
