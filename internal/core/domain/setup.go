package domain

// Setup is the device setup document. It is read once at startup.
type Setup struct {
	Hardware      string `json:"hw"`
	PipelinesDir  string `json:"pipelines_dir"`
	EncoderPath   string `json:"encoder_path"`
	TransportPath string `json:"srtla_path"`
	BitrateFile   string `json:"bitrate_file"`
	SourceIPsFile string `json:"ips_file"`
	EncoderPort   int    `json:"encoder_port"`
}

// DefaultSetup fills in the values a bare appliance image uses.
func DefaultSetup() Setup {
	return Setup{
		Hardware:      "generic",
		PipelinesDir:  "/usr/share/streamctl/pipelines",
		EncoderPath:   "/usr/bin/belacoder",
		TransportPath: "/usr/bin/srtla_send",
		BitrateFile:   "/tmp/streamctl_bitrate",
		SourceIPsFile: "/tmp/srtla_ips",
		EncoderPort:   9000,
	}
}

// WithDefaults returns s with empty fields taken from DefaultSetup.
func (s Setup) WithDefaults() Setup {
	d := DefaultSetup()
	if s.Hardware == "" {
		s.Hardware = d.Hardware
	}
	if s.PipelinesDir == "" {
		s.PipelinesDir = d.PipelinesDir
	}
	if s.EncoderPath == "" {
		s.EncoderPath = d.EncoderPath
	}
	if s.TransportPath == "" {
		s.TransportPath = d.TransportPath
	}
	if s.BitrateFile == "" {
		s.BitrateFile = d.BitrateFile
	}
	if s.SourceIPsFile == "" {
		s.SourceIPsFile = d.SourceIPsFile
	}
	if s.EncoderPort == 0 {
		s.EncoderPort = d.EncoderPort
	}
	return s
}
