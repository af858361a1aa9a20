package domain

// Config limits, inclusive.
const (
	MinDelay      = -2000
	MaxDelay      = 2000
	MinBitrate    = 500
	MaxBitrate    = 12000
	MinSRTLatency = 100
	MaxSRTLatency = 10000
)

// Config is the device streaming configuration. It is only ever replaced
// as a whole.
type Config struct {
	Delay       int    `json:"delay"`
	Pipeline    string `json:"pipeline"`
	MinBitrate  int    `json:"min_br"`
	MaxBitrate  int    `json:"max_br"`
	SRTLatency  int    `json:"srt_latency"`
	SRTStreamID string `json:"srt_streamid"`
	SRTLAAddr   string `json:"srtla_addr"`
	SRTLAPort   int    `json:"srtla_port"`
}

// Bitrate returns the configured bitrate range.
func (c Config) Bitrate() BitrateRange {
	return BitrateRange{Min: c.MinBitrate, Max: c.MaxBitrate}
}

// IsZero reports whether c is the zero Config, which no apply ever commits.
func (c Config) IsZero() bool {
	return c == Config{}
}

// ConfigCandidate is an unvalidated config as received from an operator.
// A nil field was absent from the request.
type ConfigCandidate struct {
	Delay       *int    `json:"delay"`
	Pipeline    *string `json:"pipeline"`
	MinBitrate  *int    `json:"min_br"`
	MaxBitrate  *int    `json:"max_br"`
	SRTLatency  *int    `json:"srt_latency"`
	SRTStreamID *string `json:"srt_streamid"`
	SRTLAAddr   *string `json:"srtla_addr"`
	SRTLAPort   *int    `json:"srtla_port"`
}

// CandidateFrom builds a fully populated candidate from an applied config.
func CandidateFrom(c Config) ConfigCandidate {
	return ConfigCandidate{
		Delay:       &c.Delay,
		Pipeline:    &c.Pipeline,
		MinBitrate:  &c.MinBitrate,
		MaxBitrate:  &c.MaxBitrate,
		SRTLatency:  &c.SRTLatency,
		SRTStreamID: &c.SRTStreamID,
		SRTLAAddr:   &c.SRTLAAddr,
		SRTLAPort:   &c.SRTLAPort,
	}
}

// ConfigDocument is the persisted form of the config. The password hash
// rides along so the document has a single writer.
type ConfigDocument struct {
	Config
	PasswordHash string `json:"password_hash,omitempty"`
}

// BitrateRange is a min/max pair in kbps.
type BitrateRange struct {
	Min int `json:"min_br"`
	Max int `json:"max_br"`
}

// BitrateCandidate is an unvalidated bitrate update.
type BitrateCandidate struct {
	Min *int `json:"min_br"`
	Max *int `json:"max_br"`
}

// DefaultConfig is used until an operator applies a config.
func DefaultConfig() Config {
	return Config{
		Delay:      0,
		MinBitrate: 500,
		MaxBitrate: 5000,
		SRTLatency: 2000,
		SRTLAPort:  5000,
	}
}
