package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Atronar/yt-dlp-web-api/models"
	"github.com/joho/godotenv"
)

// DefaultPath is where the service looks for its configuration file when
// YTDLP_WEB_CONFIG is not set.
const DefaultPath = ".conf.json"

// Environment overrides, applied after the file is read.
const (
	EnvConfigPath   = "YTDLP_WEB_CONFIG"
	EnvDownloadsDir = "YTDLP_WEB_DOWNLOADS_DIR"
	EnvDataDir      = "YTDLP_WEB_DATA_DIR"
	EnvPort         = "YTDLP_WEB_PORT"
)

// Config is the immutable service configuration. It is loaded once at
// startup and handed to every component that needs it.
type Config struct {
	MaxLength              int `json:"maxLength"`
	MaxPlaylistLength      int `json:"maxPlaylistLength"`
	MaxGifLength           int `json:"maxGifLength"`
	MaxGifResolution       int `json:"maxGifResolution"`
	MaxLengthPlaylistVideo int `json:"maxLengthPlaylistVideo"`

	// ProxyListURL is either a URL or the JSON literal false.
	ProxyListURL   ProxySource `json:"proxyListURL"`
	ProxyCachePath string      `json:"proxyCachePath"`

	// URL is the public base URL download links are built from.
	URL            string     `json:"url"`
	ListeningPort  int        `json:"listeningPort"`
	AllowedOrigins StringList `json:"allowedorigins"`
	DownloadsPath  string     `json:"downloadsPath"`

	BugCatcher    bool   `json:"bugcatcher"`
	BugCatcherDSN string `json:"bugcatcherdsn"`

	DataPath string `json:"dataPath"`
	LogFile  string `json:"logFile"`
	LogLevel string `json:"logLevel"`

	JWTSecret string `json:"jwtSecret"`
	JWTIssuer string `json:"jwtIssuer"`

	RequestsPerSecond float64 `json:"requestsPerSecond"`
	RequestBurst      int     `json:"requestBurst"`

	Mirrors []models.MirrorTarget `json:"mirrors"`

	YtDlpPath    string `json:"ytdlpPath"`
	FFmpegPath   string `json:"ffmpegPath"`
	GifsiclePath string `json:"gifsiclePath"`
}

// ProxySource is the proxy list URL, or disabled when the file says false.
type ProxySource struct {
	URL     string
	Enabled bool
}

func (p *ProxySource) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "false", "null", `""`:
		*p = ProxySource{}
		return nil
	}
	var url string
	if err := json.Unmarshal(data, &url); err != nil {
		return fmt.Errorf("proxyListURL must be a string or false: %w", err)
	}
	*p = ProxySource{URL: url, Enabled: true}
	return nil
}

func (p ProxySource) MarshalJSON() ([]byte, error) {
	if !p.Enabled {
		return []byte("false"), nil
	}
	return json.Marshal(p.URL)
}

// StringList accepts either a single string or a list of strings.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = StringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

// LoadEnv reads an optional .env file into the environment. Variables
// already set win. Call it before Path so YTDLP_WEB_CONFIG may come from
// .env too.
func LoadEnv() {
	// A missing .env is normal; variables may be set by the environment.
	_ = godotenv.Load()
}

// Path returns the configuration file path, honoring YTDLP_WEB_CONFIG.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the JSON configuration at path, applies environment
// overrides, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes raw JSON configuration and applies overrides and defaults.
func Parse(raw []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	if dir := os.Getenv(EnvDownloadsDir); dir != "" {
		c.DownloadsPath = dir
	}
	if dir := os.Getenv(EnvDataDir); dir != "" {
		c.DataPath = dir
	}
	if port := os.Getenv(EnvPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, port, err)
		}
		c.ListeningPort = p
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DownloadsPath == "" {
		c.DownloadsPath = "./downloads"
	}
	if c.DataPath == "" {
		c.DataPath = "./data"
	}
	if c.ProxyCachePath == "" {
		c.ProxyCachePath = "proxies.txt"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.YtDlpPath == "" {
		c.YtDlpPath = "yt-dlp"
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.GifsiclePath == "" {
		c.GifsiclePath = "gifsicle"
	}
	if c.RequestsPerSecond > 0 && c.RequestBurst <= 0 {
		c.RequestBurst = 1
	}
}

func (c *Config) validate() error {
	ceilings := map[string]int{
		"maxLength":              c.MaxLength,
		"maxPlaylistLength":      c.MaxPlaylistLength,
		"maxGifLength":           c.MaxGifLength,
		"maxGifResolution":       c.MaxGifResolution,
		"maxLengthPlaylistVideo": c.MaxLengthPlaylistVideo,
	}
	for name, v := range ceilings {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.URL == "" {
		return fmt.Errorf("url must be set")
	}
	if c.ListeningPort <= 0 || c.ListeningPort > 65535 {
		return fmt.Errorf("listeningPort out of range: %d", c.ListeningPort)
	}
	if c.BugCatcher && c.BugCatcherDSN == "" {
		return fmt.Errorf("bugcatcher is enabled but bugcatcherdsn is empty")
	}
	for i, m := range c.Mirrors {
		switch m.Type {
		case "local", "s3", "gcs", "sftp":
		default:
			return fmt.Errorf("mirrors[%d]: unknown type %q", i, m.Type)
		}
	}
	return nil
}

// SuccessDBPath is the pebble directory for successful job records.
// Path: {dataPath}/success.db
func (c *Config) SuccessDBPath() string {
	return filepath.Join(c.DataPath, "success.db")
}

// FailuresDBPath is the pebble directory for failed job records.
// Path: {dataPath}/failures.db
func (c *Config) FailuresDBPath() string {
	return filepath.Join(c.DataPath, "failures.db")
}

// ProxiesEnabled reports whether outbound proxies are configured.
func (c *Config) ProxiesEnabled() bool {
	return c.ProxyListURL.Enabled
}
