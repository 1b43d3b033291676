package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ConfigFile string `yaml:"-"`

	GpsdServer      string        `yaml:"gpsd_server"`
	RedisURL        string        `yaml:"redis_url"`
	Interval        time.Duration `yaml:"interval"`
	GlonassFirstPRN int           `yaml:"glonass_first_prn"`
	GlonassLastPRN  int           `yaml:"glonass_last_prn"`
	SatelliteFormat string        `yaml:"satellite_format"`
	Wakelock        bool          `yaml:"wakelock"`
	PowerChip       string        `yaml:"power_chip"`
	PowerLine       int           `yaml:"power_line"`
	ModemGNSS       bool          `yaml:"modem_gnss"`
	Debug           bool          `yaml:"debug"`

	fs *flag.FlagSet
}

// New registers the options on the process flag set.
func New() *Config {
	return NewWithFlagSet(flag.CommandLine)
}

func NewWithFlagSet(fs *flag.FlagSet) *Config {
	cfg := &Config{fs: fs}

	fs.StringVar(&cfg.ConfigFile, "config", "", "Optional YAML config file; flags given on the command line take precedence")
	fs.StringVar(&cfg.GpsdServer, "gpsd-server", "localhost:2947", "GPSD server address")
	fs.StringVar(&cfg.RedisURL, "redis-url", "redis://127.0.0.1:6379", "Redis URL")
	fs.DurationVar(&cfg.Interval, "interval", time.Second, "Location report interval (0 reports every fix)")
	fs.IntVar(&cfg.GlonassFirstPRN, "glonass-first-prn", 65, "First PRN of the GLONASS band")
	fs.IntVar(&cfg.GlonassLastPRN, "glonass-last-prn", 96, "Last PRN of the GLONASS band")
	fs.StringVar(&cfg.SatelliteFormat, "satellite-format", "auto", "Satellite report format: auto, gnss or legacy")
	fs.BoolVar(&cfg.Wakelock, "wakelock", true, "Hold a logind sleep inhibitor while handling gpsd events")
	fs.StringVar(&cfg.PowerChip, "power-chip", "gpiochip0", "GPIO chip of the GNSS receiver enable line")
	fs.IntVar(&cfg.PowerLine, "power-line", -1, "GPIO line of the GNSS receiver enable line (-1 disables)")
	fs.BoolVar(&cfg.ModemGNSS, "modem-gnss", false, "Enable the modem GNSS engine through ModemManager")
	fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	return cfg
}

// Load applies the config file, if any, underneath the explicitly set flags
// and validates the result. Call it after the flag set has been parsed.
func (c *Config) Load() error {
	if c.ConfigFile != "" {
		if err := c.overlay(c.ConfigFile); err != nil {
			return err
		}
	}
	return c.validate()
}

func (c *Config) overlay(path string) error {
	explicit := map[string]string{}
	c.fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "parse config")
	}

	for name, value := range explicit {
		if err := c.fs.Set(name, value); err != nil {
			return errors.Wrapf(err, "restore flag %s", name)
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.SatelliteFormat {
	case "auto", "gnss", "legacy":
	default:
		return errors.Errorf("unknown satellite format %q", c.SatelliteFormat)
	}
	if c.Interval < 0 {
		return errors.Errorf("negative interval %v", c.Interval)
	}
	if c.GlonassFirstPRN <= 0 || c.GlonassLastPRN < c.GlonassFirstPRN {
		return errors.Errorf("invalid GLONASS PRN band %d-%d", c.GlonassFirstPRN, c.GlonassLastPRN)
	}
	return nil
}
