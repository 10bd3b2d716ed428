package l1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseControllerRef(t *testing.T) {
	ref, err := ParseControllerRef("psoc-arm/a1")
	require.NoError(t, err)
	require.Equal(t, ControllerRef{Type: "psoc-arm", ID: "a1"}, ref)
	require.Equal(t, "psoc-arm/a1", ref.Name())
	require.True(t, ref.IsValid())

	for _, name := range []string{"", "psoc-arm", "/a1", "psoc-arm/", "a/b/c"} {
		_, err := ParseControllerRef(name)
		require.Error(t, err, name)
	}
}

func TestControllerInfoString(t *testing.T) {
	info := ControllerInfo{Ref: ControllerRef{Type: "psoc-arm", ID: "a1"}}
	require.Equal(t, "psoc-arm/a1", info.String())
	info.Meta = ControllerMeta{
		Description: "PSoC Arm Controller",
		Labels:      map[string]string{"port": "ttyUSB2", "baud": "9600"},
	}
	require.Equal(t, "psoc-arm/a1: PSoC Arm Controller [baud=9600,port=ttyUSB2]", info.String())
}
