package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/pump-monitor/internal/logger"
)

// Config holds the monitor settings.
type Config struct {
	// Ports lists candidate serial port identifiers tried in order.
	Ports []string `yaml:"ports"`
	// BaudRate is the serial line speed.
	BaudRate int `yaml:"baud_rate"`
	// ReadTimeout bounds a single serial read, and so the read loop poll interval.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// BatteryInterval is the battery drain period.
	BatteryInterval time.Duration `yaml:"battery_interval"`
	// RefreshInterval is the display refresh period.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// CuePeriod is the repetition period of the audible alarm cue.
	CuePeriod time.Duration `yaml:"cue_period"`
	// BatteryFile is the path to the JSON file storing the battery level.
	BatteryFile string `yaml:"battery_file"`
	// ManualConnect disables connecting on startup.
	ManualConnect bool `yaml:"manual_connect"`
	// Log configures the logger.
	Log Log `yaml:"log"`
	// HTTP configures the control API.
	HTTP HTTP `yaml:"http"`
	// GRPC configures the optional health endpoint.
	GRPC GRPC `yaml:"grpc"`
	// MQTT configures the optional snapshot publisher.
	MQTT MQTT `yaml:"mqtt"`
}

// Log holds logger settings.
type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is console or json.
	Format string `yaml:"format"`
}

// HTTP holds control API settings.
type HTTP struct {
	// Address is the listen address; empty disables the API.
	Address string `yaml:"address"`
}

// GRPC holds health endpoint settings.
type GRPC struct {
	// Address is the listen address; empty disables the endpoint.
	Address string `yaml:"address"`
}

// MQTT holds snapshot publisher settings.
type MQTT struct {
	// Broker is the broker URL; empty disables publishing.
	Broker string `yaml:"broker"`
	// Topic receives the snapshot documents.
	Topic string `yaml:"topic"`
	// ClientID identifies the client; generated when empty.
	ClientID string `yaml:"client_id"`
	// Username is the optional broker user.
	Username string `yaml:"username"`
	// Password is the optional broker password.
	Password string `yaml:"password"` //nolint:gosec // Settings field, not a hardcoded secret.
	// Timeout bounds connect and publish acknowledgements.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for monitor settings.
	DefaultConfigFilename = "pump-monitor-settings.yaml"

	// DefaultBatteryFilename is the default filename for the battery level JSON.
	DefaultBatteryFilename = "pump-monitor-battery.json"

	// DefaultBaudRate is the pump firmware line speed.
	DefaultBaudRate = 9600

	// DefaultReadTimeout is the serial read timeout.
	DefaultReadTimeout = 100 * time.Millisecond

	// DefaultBatteryInterval is the battery drain period.
	DefaultBatteryInterval = 10 * time.Second

	// DefaultRefreshInterval is the display refresh period.
	DefaultRefreshInterval = time.Second

	// DefaultCuePeriod is the alarm cue repetition period.
	DefaultCuePeriod = 500 * time.Millisecond

	// DefaultHTTPAddress is the control API listen address.
	DefaultHTTPAddress = ":8088"

	// DefaultMQTTTopic receives snapshots when a broker is configured.
	DefaultMQTTTopic = "pump/snapshot"

	// DefaultMQTTTimeout bounds broker acknowledgements.
	DefaultMQTTTimeout = 5 * time.Second

	// DefaultLogLevel is the logger level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the logger encoding.
	DefaultLogFormat = "console"

	// DefaultFilePermissions is the default file permission for settings and state files.
	DefaultFilePermissions = 0o600
)

// DefaultPorts are the candidate port names tried when none are configured.
var DefaultPorts = []string{"COM3", "COM4", "COM5", "COM6", "/dev/ttyUSB0", "/dev/ttyACM0"}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBaudRate is returned for a non-positive baud rate.
	errBaudRate = errors.New("baud rate must be positive")
	// errLogLevel is returned for an unknown log level.
	errLogLevel = errors.New("unknown log level")
	// errLogFormat is returned for an unknown log format.
	errLogFormat = errors.New("unknown log format")
)

// Default returns the settings used when no file exists.
func Default() *Config {
	cfg := new(Config)

	// Defaults alone always validate.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// A missing file yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills unset fields with defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if len(settings.Ports) == 0 {
		settings.Ports = slices.Clone(DefaultPorts)
	}

	switch {
	case settings.BaudRate < 0:
		return errBaudRate
	case settings.BaudRate == 0:
		settings.BaudRate = DefaultBaudRate
	}

	setDuration(&settings.ReadTimeout, DefaultReadTimeout)
	setDuration(&settings.BatteryInterval, DefaultBatteryInterval)
	setDuration(&settings.RefreshInterval, DefaultRefreshInterval)
	setDuration(&settings.CuePeriod, DefaultCuePeriod)

	if settings.BatteryFile == "" {
		settings.BatteryFile = DefaultBatteryFilename
	}

	if err := validateLog(&settings.Log); err != nil {
		return err
	}

	if settings.HTTP.Address == "" {
		settings.HTTP.Address = DefaultHTTPAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.HTTP.Address); err != nil {
		return fmt.Errorf("invalid http address: %w", err)
	}

	if settings.GRPC.Address != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.GRPC.Address); err != nil {
			return fmt.Errorf("invalid grpc address: %w", err)
		}
	}

	return validateMQTT(&settings.MQTT)
}

// validateLog fills and checks logger settings.
func validateLog(settings *Log) error {
	if settings.Level == "" {
		settings.Level = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.Level); !ok {
		return fmt.Errorf("%w: %q", errLogLevel, settings.Level)
	}

	switch settings.Format {
	case "":
		settings.Format = DefaultLogFormat
	case string(logger.FormatConsole), string(logger.FormatJSON):
	default:
		return fmt.Errorf("%w: %q", errLogFormat, settings.Format)
	}

	return nil
}

// validateMQTT fills and checks publisher settings.
func validateMQTT(settings *MQTT) error {
	if settings.Topic == "" {
		settings.Topic = DefaultMQTTTopic
	}

	setDuration(&settings.Timeout, DefaultMQTTTimeout)

	if settings.Broker == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(settings.Broker); err != nil {
		return fmt.Errorf("invalid mqtt broker URI: %w", err)
	}

	return nil
}

// setDuration replaces a non-positive duration with def.
func setDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}
