package env

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by config sections which can check themselves.
type Validator interface {
	Validate() error
}

var configFile = os.Getenv("ROBO_CONFIG")

// SetupConfigFlag sets the -config command line flag.
func SetupConfigFlag() {
	flag.StringVar(&configFile, "config", configFile, "YAML config file.")
}

// ParseFlags parses command line flags. If a config file is specified,
// it's decoded into conf and flags on command line are applied again
// so they take precedence over the file.
func ParseFlags(conf interface{}) error {
	flag.Parse()
	if configFile == "" {
		return nil
	}
	if err := LoadConfigFile(configFile, conf); err != nil {
		return err
	}
	return flag.CommandLine.Parse(os.Args[1:])
}

// LoadConfigFile decodes a YAML file into conf.
// Unknown keys are rejected.
func LoadConfigFile(fn string, conf interface{}) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	if err = DecodeConfig(f, conf); err != nil {
		return fmt.Errorf("config %s: %v", fn, err)
	}
	return nil
}

// DecodeConfig decodes YAML from r into conf.
// An empty document leaves conf unchanged.
func DecodeConfig(r io.Reader, conf interface{}) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(conf); err != nil && err != io.EOF {
		return err
	}
	if v, ok := conf.(Validator); ok {
		return v.Validate()
	}
	return nil
}
