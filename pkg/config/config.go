package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dougsko/automagic/pkg/civ"
	"gopkg.in/yaml.v2"
)

// Config represents the automagic configuration
type Config struct {
	Radio struct {
		Model      string `yaml:"model"`
		Device     string `yaml:"device"` // empty: no radio attached, frames are only logged
		BaudRate   int    `yaml:"baud_rate"`
		CIVAddress int    `yaml:"civ_address"` // 0: factory default of the model
		EdgeSet    int    `yaml:"edge_set"`
	} `yaml:"radio"`

	Scope struct {
		ZoomWidth int `yaml:"zoom_width"` // kHz
	} `yaml:"scope"`

	N1MM struct {
		Enabled    bool `yaml:"enabled"`
		Port       int  `yaml:"port"`
		RadioNr    int  `yaml:"radio_nr"`
		FreqUnitHz int  `yaml:"freq_unit_hz"`
	} `yaml:"n1mm"`

	DXLog struct {
		Enabled bool   `yaml:"enabled"`
		Port    int    `yaml:"port"`
		Station string `yaml:"station"`
	} `yaml:"dxlog"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
	} `yaml:"api"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *Config {
	var config Config
	config.N1MM.Enabled = true
	config.DXLog.Enabled = true
	config.Logging.Console = true
	config.applyDefaults()
	return &config
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Booleans missing from the file keep their defaults.
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Radio.Model == "" {
		c.Radio.Model = civ.DefaultModel
	}
	if c.Radio.BaudRate == 0 {
		c.Radio.BaudRate = 19200
	}
	if c.Radio.EdgeSet == 0 {
		c.Radio.EdgeSet = 1
	}
	if c.Scope.ZoomWidth == 0 {
		c.Scope.ZoomWidth = 20
	}
	if c.N1MM.Port == 0 {
		c.N1MM.Port = 12060
	}
	if c.N1MM.RadioNr == 0 {
		c.N1MM.RadioNr = 1
	}
	if c.N1MM.FreqUnitHz == 0 {
		c.N1MM.FreqUnitHz = 1
	}
	if c.DXLog.Port == 0 {
		c.DXLog.Port = 9888
	}
	if c.DXLog.Station == "" {
		// DXLog.net sends the computer name as sender.
		if host, err := os.Hostname(); err == nil {
			c.DXLog.Station = host
		}
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8073
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "127.0.0.1"
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = DefaultSocketPath()
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = DefaultDatabasePath()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Radio.EdgeSet < 1 || c.Radio.EdgeSet > 3 {
		return fmt.Errorf("radio edge_set must be 1, 2 or 3, got %d", c.Radio.EdgeSet)
	}
	if c.Radio.BaudRate < 4800 || c.Radio.BaudRate > 115200 {
		return fmt.Errorf("radio baud_rate %d out of range 4800..115200", c.Radio.BaudRate)
	}
	if c.Radio.CIVAddress < 0 || c.Radio.CIVAddress > 0xff {
		return fmt.Errorf("radio civ_address 0x%x out of range", c.Radio.CIVAddress)
	}
	if _, err := c.RadioAddress(); err != nil {
		return err
	}
	if c.Scope.ZoomWidth <= 0 {
		return fmt.Errorf("scope zoom_width must be positive, got %d", c.Scope.ZoomWidth)
	}
	if c.N1MM.RadioNr < 1 {
		return fmt.Errorf("n1mm radio_nr must be at least 1, got %d", c.N1MM.RadioNr)
	}
	if c.N1MM.FreqUnitHz < 1 {
		return fmt.Errorf("n1mm freq_unit_hz must be at least 1, got %d", c.N1MM.FreqUnitHz)
	}
	if c.N1MM.Enabled && c.DXLog.Enabled && c.N1MM.Port == c.DXLog.Port {
		return fmt.Errorf("n1mm and dxlog cannot share UDP port %d", c.N1MM.Port)
	}
	return nil
}

// RadioAddress returns the CI-V address of the radio: the configured
// civ_address, or the factory default of the configured model.
func (c *Config) RadioAddress() (byte, error) {
	if c.Radio.CIVAddress != 0 {
		return byte(c.Radio.CIVAddress), nil
	}
	addr, ok := civ.AddressForModel(c.Radio.Model)
	if !ok {
		return 0, fmt.Errorf("unknown radio model %q: set radio.civ_address", c.Radio.Model)
	}
	return addr, nil
}

// Save writes the configuration to path
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
