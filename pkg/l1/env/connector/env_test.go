package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/psoc-arm/pkg/l1"
)

func TestNewConnector(t *testing.T) {
	for _, u := range []string{"mqtt://localhost:1883/robo/", "ws://localhost:8080/robo", "wss://host/robo"} {
		conf := &Config{RegistryURL: u}
		connector, err := conf.NewConnector()
		assert.NoError(t, err, u)
		assert.NotNil(t, connector, u)
	}
	for _, u := range []string{"http://localhost/robo", "::bad"} {
		conf := &Config{RegistryURL: u}
		_, err := conf.NewConnector()
		assert.Error(t, err, u)
	}
}

func TestConnectRequiresRef(t *testing.T) {
	conf := &Config{RegistryURL: "ws://localhost:8080/robo", Ref: l1.ControllerRef{Type: "psoc-arm"}}
	_, err := conf.Connect()
	require.Error(t, err)
}

func TestConnectContextCanceled(t *testing.T) {
	conf := &Config{
		RegistryURL: "ws://127.0.0.1:1/robo",
		Ref:         l1.ControllerRef{Type: "psoc-arm", ID: "a1"},
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := conf.ConnectContext(ctx)
	require.Error(t, err)
}

func TestSetDefaultType(t *testing.T) {
	saved := defaultConfig
	defer func() { defaultConfig = saved }()

	defaultConfig.Ref = l1.ControllerRef{}
	SetDefaultType("psoc-arm")
	assert.Equal(t, "psoc-arm", Default().Ref.Type)
	SetDefaultType("other")
	assert.Equal(t, "psoc-arm", NewConfig().Ref.Type)
}
