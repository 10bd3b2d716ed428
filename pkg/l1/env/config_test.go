package env

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testSection struct {
	Port    string        `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

type testConfig struct {
	Section *testSection `yaml:"section"`
	Name    string       `yaml:"name"`
}

func (c *testConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name required")
	}
	return nil
}

func TestDecodeConfig(t *testing.T) {
	conf := &testConfig{Section: &testSection{Port: "/dev/ttyUSB2"}, Name: "arm"}
	err := DecodeConfig(strings.NewReader("section:\n  timeout: 2s\n"), conf)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB2", conf.Section.Port)
	require.Equal(t, 2*time.Second, conf.Section.Timeout)

	require.NoError(t, DecodeConfig(strings.NewReader(""), conf))
	require.Error(t, DecodeConfig(strings.NewReader("unknown: 1\n"), conf))
	require.Error(t, DecodeConfig(strings.NewReader("name: ''\n"), conf))
	require.Error(t, DecodeConfig(strings.NewReader("section: [\n"), conf))
}

func TestLoadConfigFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "arm.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("name: arm2\nsection:\n  port: mock://arm\n"), 0644))
	conf := &testConfig{Section: &testSection{}}
	require.NoError(t, LoadConfigFile(fn, conf))
	require.Equal(t, "arm2", conf.Name)
	require.Equal(t, "mock://arm", conf.Section.Port)

	err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"), conf)
	require.True(t, os.IsNotExist(err))
}

func TestMachineID(t *testing.T) {
	require.NotEmpty(t, MachineID())
}
