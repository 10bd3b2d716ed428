package psocarm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/psoc-arm/pkg/l0/comm"
	"github.com/robotalks/psoc-arm/pkg/l1/env"
)

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"no port", func(c *Config) { c.SerialPort = "" }, false},
		{"zero baud", func(c *Config) { c.BaudRate = 0 }, false},
		{"negative timeout", func(c *Config) { c.WriteTimeout = -time.Second }, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := NewConfig()
			tc.modify(conf)
			if tc.ok {
				require.NoError(t, conf.Validate())
			} else {
				require.Error(t, conf.Validate())
			}
		})
	}
}

func TestConfigFromYAML(t *testing.T) {
	conf := NewConfig()
	err := env.DecodeConfig(strings.NewReader(`
serial_port: mock://arm-config
baudrate: 57600
write_timeout: 250ms
`), conf)
	require.NoError(t, err)
	require.Equal(t, "mock://arm-config", conf.SerialPort)
	require.Equal(t, 57600, conf.BaudRate)
	require.Equal(t, 250*time.Millisecond, conf.WriteTimeout)
	require.Equal(t, Default().OpenTimeout, conf.OpenTimeout)

	require.Error(t, env.DecodeConfig(strings.NewReader("serial: x\n"), NewConfig()))
	require.Error(t, env.DecodeConfig(strings.NewReader("baudrate: -1\n"), NewConfig()))
}

func TestConfigNewController(t *testing.T) {
	const name = "arm-config"
	dev := comm.OpenMockDevice(name)
	defer comm.RemoveMockDevice(name)

	conf := NewConfig()
	conf.SerialPort = "mock://" + name
	conf.WriteTimeout = time.Second
	ctl := conf.NewController(nil)
	defer ctl.Close()
	require.Equal(t, StateOpen, ctl.State())
	require.Equal(t, time.Second, ctl.Link().WriteTimeout)
	require.NoError(t, ctl.Move(300, 700))
	data, ok := dev.WaitWritten(comm.FrameSize, testTimeout)
	require.True(t, ok)
	require.Equal(t, []byte{0xea, 0xe3, 0x2c, 0x01, 0xbc, 0x02}, data)
}
