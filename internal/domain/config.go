package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	YTDLP        YTDLPConfig        `mapstructure:"ytdlp"`
	Stream       StreamConfig       `mapstructure:"stream"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains background download configuration
type DownloadConfig struct {
	Dir             string        `mapstructure:"dir"`
	ConcurrentLimit int           `mapstructure:"concurrent_limit"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
}

// YTDLPConfig describes how the yt-dlp collaborator is invoked
type YTDLPConfig struct {
	Binary          string        `mapstructure:"binary"`
	DefaultFormat   string        `mapstructure:"default_format"`
	AudioExt        string        `mapstructure:"audio_ext"`
	CookieFile      string        `mapstructure:"cookie_file"`
	Impersonate     string        `mapstructure:"impersonate"`
	RequiredTools   []string      `mapstructure:"required_tools"`
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`
	ExtraArgs       []string      `mapstructure:"extra_args"`
}

// StreamConfig contains direct-stream relay configuration
type StreamConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`    // categorized JSON logs, empty disables them
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8000,
		},
		Download: DownloadConfig{
			Dir:             "$HOME/Downloads/ytrelay",
			ConcurrentLimit: 2,
			SettleDelay:     time.Second,
		},
		YTDLP: YTDLPConfig{
			Binary:          "yt-dlp",
			DefaultFormat:   "bestvideo+bestaudio/best",
			AudioExt:        "m4a",
			RequiredTools:   []string{"ffmpeg"},
			MetadataTimeout: 2 * time.Minute,
		},
		Stream: StreamConfig{
			ChunkSize: 64 * 1024,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			LogsDir:    "$HOME/Downloads/ytrelay/logs",
		},
	}
}
