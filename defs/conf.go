package defs

type PortalConf struct {
	Listen string `yaml:"listen"`

	FFmpeg   string `yaml:"ffmpeg"`
	FFprobe  string `yaml:"ffprobe"`
	FontPath string `yaml:"font"`

	Ram       string `yaml:"ramdisk"`    // temp dir for handles
	Output    string `yaml:"output"`     // finished videos are copied here when set
	AudioDump string `yaml:"audio_dump"` // keeps what the recorder heard as wav, debugging

	// livekit monitor, disabled when Ws is empty
	Key         string `yaml:"key"`
	Secret      string `yaml:"secret"`
	Ws          string `yaml:"ws"`
	MonitorRoom string `yaml:"monitor"`
	MonitorRTP  int    `yaml:"monitor_rtp"` // relay the recorder's h264 preview from this port, opus from port+2

	Redis        string `yaml:"redis"`
	SettingsFile string `yaml:"settings"`

	TranscribeURL string `yaml:"transcribe"`
	StrictLyrics  bool   `yaml:"strict_lyrics"`

	Style StyleConfig `yaml:"style"`
}

func (c *PortalConf) Defaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.FFmpeg == "" {
		c.FFmpeg = "ffmpeg"
	}
	if c.FFprobe == "" {
		c.FFprobe = "ffprobe"
	}
	if c.MonitorRoom == "" {
		c.MonitorRoom = "mv-monitor"
	}
	if c.Style == (StyleConfig{}) {
		c.Style = DefaultStyle()
	}
	c.Style = c.Style.Normalize()
}
