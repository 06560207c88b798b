package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete client configuration
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Channels ChannelsConfig `yaml:"channels"`
	Buffer   BufferConfig   `yaml:"buffer"`
	Display  DisplayConfig  `yaml:"display"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Router   RouterConfig   `yaml:"router"`
	UI       UIConfig       `yaml:"ui"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// LoadedFrom is the file or directory the configuration was read from.
	LoadedFrom string `yaml:"-"`
}

// Source kinds.
const (
	SourceWebSocket = "websocket"
	SourceMQTT      = "mqtt"
	SourceTCP       = "tcp"
)

// SourceConfig selects and addresses the telemetry feed
type SourceConfig struct {
	Kind               string     `yaml:"kind"`
	URL                string     `yaml:"url"`
	Address            string     `yaml:"address"`
	Transport          string     `yaml:"transport"`
	DialTimeoutSeconds int        `yaml:"dial_timeout_seconds"`
	IdleTimeoutSeconds int        `yaml:"idle_timeout_seconds"`
	IdleAfterMS        int        `yaml:"idle_after_ms"`
	MQTT               MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig contains broker settings for the mqtt source kind
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ConversionConfig overrides one linear unit conversion. Unset fields keep
// the built-in value.
type ConversionConfig struct {
	Scale  *float64 `yaml:"scale"`
	Offset *float64 `yaml:"offset"`
}

// ChannelsConfig holds unit conversions per channel kind
type ChannelsConfig struct {
	Pressure    ConversionConfig `yaml:"pressure"`
	Temperature ConversionConfig `yaml:"temperature"`
	Mass        ConversionConfig `yaml:"mass"`
	Force       ConversionConfig `yaml:"force"`
}

// BufferConfig sizes the in-memory history
type BufferConfig struct {
	SampleRateHz   int `yaml:"sample_rate_hz"`
	HistoryMinutes int `yaml:"history_minutes"`
}

// Capacity returns the per-channel ring size in samples.
func (b BufferConfig) Capacity() int {
	return b.SampleRateHz * 60 * b.HistoryMinutes
}

// DisplayConfig contains the initial plot settings
type DisplayConfig struct {
	// WindowPresetsSeconds are bound to keys 1..n; 0 means the full buffer.
	WindowPresetsSeconds []int   `yaml:"window_presets_seconds"`
	DefaultWindowSeconds int     `yaml:"default_window_seconds"`
	Multiplier           float64 `yaml:"multiplier"`
	Divider              int     `yaml:"divider"`
	Method               string  `yaml:"method"`
}

// PipelineConfig sizes the hand-off between sources and the pipeline
type PipelineConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// RouterConfig controls record validation
type RouterConfig struct {
	AllowUnknownFields bool `yaml:"allow_unknown_fields"`
}

// UI modes.
const (
	UIModeTview    = "tview"
	UIModeANSI     = "ansi"
	UIModeHeadless = "headless"
)

// UIConfig contains local console settings
type UIConfig struct {
	Mode      string `yaml:"mode"`
	TargetFPS int    `yaml:"target_fps"`
	RefreshMS int    `yaml:"refresh_ms"`
	Color     *bool  `yaml:"color"`
	LogLines  int    `yaml:"log_lines"`
}

// ColorEnabled reports whether ANSI colour output is on (default true).
func (u UIConfig) ColorEnabled() bool {
	return u.Color == nil || *u.Color
}

// LoggingConfig contains process log settings
type LoggingConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
	// DropDedupeWindowSeconds collapses repeated malformed-record log lines.
	// 0 disables dedupe.
	DropDedupeWindowSeconds *int `yaml:"drop_dedupe_window_seconds"`
}

// DropDedupeWindow returns the dedupe window in seconds.
func (l LoggingConfig) DropDedupeWindow() int {
	if l.DropDedupeWindowSeconds == nil {
		return defaultDropDedupeWindowSeconds
	}
	return *l.DropDedupeWindowSeconds
}

// MetricsConfig contains the optional Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

const (
	defaultSampleRateHz            = 1000
	defaultHistoryMinutes          = 30
	defaultQueueSize               = 8192
	defaultDivider                 = 10
	defaultTargetFPS               = 30
	defaultRefreshMS               = 250
	defaultLogLines                = 500
	defaultDialTimeoutSeconds      = 10
	defaultIdleAfterMS             = 2000
	defaultRetentionDays           = 7
	defaultDropDedupeWindowSeconds = 120
	defaultMetricsAddress          = ":9464"
	defaultWebSocketURL            = "ws://localhost:8888/websocket"
	defaultMQTTTopic               = "instrumon/telemetry"

	minMultiplier = 0.1
	maxMultiplier = 10.0
	maxDivider    = 1000
	maxHistoryMin = 24 * 60
)

var defaultWindowPresets = []int{10, 180, 600, 0}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	if err := cfg.normalize(); err != nil {
		// The zero config is always valid.
		panic(err)
	}
	return cfg
}

// Load loads configuration from a YAML file, or from every *.yaml / *.yml
// file in a directory merged in name order.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	files := []string{path}
	if info.IsDir() {
		files, err = yamlFiles(path)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no YAML files in config directory %s", path)
		}
	}

	var cfg Config
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filepath.Base(file), err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	cfg.LoadedFrom = path
	return &cfg, nil
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// IsNotExist reports whether err came from a missing config path.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// normalize applies defaults to unset fields, clamps numeric ranges and
// rejects values that cannot be interpreted.
func (c *Config) normalize() error {
	s := &c.Source
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	switch s.Kind {
	case "":
		s.Kind = SourceWebSocket
	case SourceWebSocket, SourceMQTT, SourceTCP:
	default:
		return fmt.Errorf("invalid source.kind %q (want websocket, mqtt or tcp)", s.Kind)
	}
	if strings.TrimSpace(s.URL) == "" {
		s.URL = defaultWebSocketURL
	}
	s.Transport = strings.ToLower(strings.TrimSpace(s.Transport))
	switch s.Transport {
	case "":
		s.Transport = "native"
	case "native", "ziutek":
	default:
		return fmt.Errorf("invalid source.transport %q (want native or ziutek)", s.Transport)
	}
	if s.Kind == SourceTCP && strings.TrimSpace(s.Address) == "" {
		return errors.New("source.address is required for the tcp source")
	}
	if s.DialTimeoutSeconds <= 0 {
		s.DialTimeoutSeconds = defaultDialTimeoutSeconds
	}
	if s.IdleTimeoutSeconds < 0 {
		s.IdleTimeoutSeconds = 0
	}
	if s.IdleAfterMS <= 0 {
		s.IdleAfterMS = defaultIdleAfterMS
	}
	if s.Kind == SourceMQTT && strings.TrimSpace(s.MQTT.Broker) == "" {
		return errors.New("source.mqtt.broker is required for the mqtt source")
	}
	if strings.TrimSpace(s.MQTT.Topic) == "" {
		s.MQTT.Topic = defaultMQTTTopic
	}
	if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
		return fmt.Errorf("invalid source.mqtt.qos %d (want 0, 1 or 2)", s.MQTT.QoS)
	}

	if c.Buffer.SampleRateHz <= 0 {
		c.Buffer.SampleRateHz = defaultSampleRateHz
	}
	if c.Buffer.HistoryMinutes <= 0 {
		c.Buffer.HistoryMinutes = defaultHistoryMinutes
	}
	if c.Buffer.HistoryMinutes > maxHistoryMin {
		c.Buffer.HistoryMinutes = maxHistoryMin
	}

	d := &c.Display
	if len(d.WindowPresetsSeconds) == 0 {
		d.WindowPresetsSeconds = append([]int(nil), defaultWindowPresets...)
	}
	if len(d.WindowPresetsSeconds) > 9 {
		return fmt.Errorf("display.window_presets_seconds has %d entries; at most 9 fit on the number keys", len(d.WindowPresetsSeconds))
	}
	for _, secs := range d.WindowPresetsSeconds {
		if secs < 0 {
			return fmt.Errorf("invalid display.window_presets_seconds entry %d", secs)
		}
	}
	if d.DefaultWindowSeconds < 0 {
		d.DefaultWindowSeconds = 0
	}
	switch {
	case d.Multiplier == 0:
		d.Multiplier = 1
	case d.Multiplier < minMultiplier:
		d.Multiplier = minMultiplier
	case d.Multiplier > maxMultiplier:
		d.Multiplier = maxMultiplier
	}
	if d.Divider == 0 {
		d.Divider = defaultDivider
	}
	if d.Divider < 0 {
		d.Divider = 0
	}
	if d.Divider > maxDivider {
		d.Divider = maxDivider
	}
	d.Method = strings.ToLower(strings.TrimSpace(d.Method))
	switch d.Method {
	case "":
		d.Method = "minmax"
	case "minmax", "mean":
	default:
		return fmt.Errorf("invalid display.method %q (want minmax or mean)", d.Method)
	}

	if c.Pipeline.QueueSize <= 0 {
		c.Pipeline.QueueSize = defaultQueueSize
	}

	u := &c.UI
	u.Mode = strings.ToLower(strings.TrimSpace(u.Mode))
	switch u.Mode {
	case "":
		u.Mode = UIModeTview
	case UIModeTview, UIModeANSI, UIModeHeadless:
	default:
		return fmt.Errorf("invalid ui.mode %q (want tview, ansi or headless)", u.Mode)
	}
	if u.TargetFPS <= 0 {
		u.TargetFPS = defaultTargetFPS
	}
	if u.RefreshMS <= 0 {
		u.RefreshMS = defaultRefreshMS
	}
	if u.LogLines <= 0 {
		u.LogLines = defaultLogLines
	}

	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = filepath.Join("data", "logs")
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultRetentionDays
	}
	if c.Logging.DropDedupeWindowSeconds != nil && *c.Logging.DropDedupeWindowSeconds < 0 {
		return fmt.Errorf("invalid logging.drop_dedupe_window_seconds %d", *c.Logging.DropDedupeWindowSeconds)
	}

	if strings.TrimSpace(c.Metrics.Address) == "" {
		c.Metrics.Address = defaultMetricsAddress
	}
	return nil
}

// Print displays the configuration
func (c *Config) Print() {
	if c.LoadedFrom != "" {
		fmt.Printf("Config: %s\n", c.LoadedFrom)
	}
	switch c.Source.Kind {
	case SourceMQTT:
		fmt.Printf("Source: mqtt %s (topic: %s)\n", c.Source.MQTT.Broker, c.Source.MQTT.Topic)
	case SourceTCP:
		fmt.Printf("Source: tcp %s (transport=%s)\n", c.Source.Address, c.Source.Transport)
	default:
		fmt.Printf("Source: websocket %s\n", c.Source.URL)
	}
	fmt.Printf("Buffer: %d Hz x %d min (%d samples per channel)\n",
		c.Buffer.SampleRateHz, c.Buffer.HistoryMinutes, c.Buffer.Capacity())
	fmt.Printf("Display: window=%ds multiplier=%.2f divider=%d method=%s\n",
		c.Display.DefaultWindowSeconds, c.Display.Multiplier, c.Display.Divider, c.Display.Method)
	fmt.Printf("UI: %s (fps=%d)\n", c.UI.Mode, c.UI.TargetFPS)
	if c.Metrics.Enabled {
		fmt.Printf("Metrics: %s/metrics\n", c.Metrics.Address)
	}
}
