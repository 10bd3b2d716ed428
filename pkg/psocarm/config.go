package psocarm

import (
	"context"
	"errors"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/psoc-arm/pkg/l0/comm"
	env "github.com/robotalks/psoc-arm/pkg/l1/env/controller"
)

// Config defines the configurations for the controller.
type Config struct {
	// SerialPort is the device address, see comm.ParseAddress.
	SerialPort   string        `yaml:"serial_port"`
	BaudRate     int           `yaml:"baudrate"`
	OpenTimeout  time.Duration `yaml:"open_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

var defaultConfig = Config{
	SerialPort:  "/dev/ttyUSB2",
	BaudRate:    comm.DefaultBaudRate,
	OpenTimeout: 5 * time.Second,
}

func init() {
	if val := os.Getenv("PSOC_ARM_SERIAL"); val != "" {
		defaultConfig.SerialPort = val
	}
	if val := os.Getenv("PSOC_ARM_BAUDRATE"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultConfig.BaudRate = baud
		}
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.SerialPort, "serial-port", defaultConfig.SerialPort, "Device address, e.g. /dev/ttyUSB2, /dev/ttyUSB2:57600, tcp://host:port.")
	flag.IntVar(&defaultConfig.BaudRate, "baudrate", defaultConfig.BaudRate, "Baud rate unless specified in address.")
	flag.DurationVar(&defaultConfig.OpenTimeout, "open-timeout", defaultConfig.OpenTimeout, "Timeout opening the device.")
	flag.DurationVar(&defaultConfig.WriteTimeout, "write-timeout", defaultConfig.WriteTimeout, "Timeout writing a frame, 0 to disable.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.SerialPort == "" {
		return errors.New("serial port is required")
	}
	if c.BaudRate <= 0 {
		return errors.New("baudrate must be positive")
	}
	if c.OpenTimeout < 0 || c.WriteTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// NewController creates a controller using the config.
func (c *Config) NewController(e *env.Env) *Controller {
	ctx := context.Background()
	if c.OpenTimeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, c.OpenTimeout)
		defer cancel()
	}
	ctl := NewControllerContext(ctx, nil, c.SerialPort, c.BaudRate)
	if e != nil {
		ctl.Registrar = e.Registrar
	}
	if link := ctl.Link(); link != nil {
		link.WriteTimeout = c.WriteTimeout
	}
	return ctl
}
