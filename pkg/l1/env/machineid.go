package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves the unique ID identifying the machine.
// The host name is used where machine id isn't available (e.g. containers).
func MachineID() string {
	if id, err := machineid.ID(); err == nil && id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}
