package arm

import (
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/psoc-arm/pkg/cli/sh"
	"github.com/robotalks/psoc-arm/pkg/psocarm/msgs"
)

var (
	// ArmMoveCmd exposes ArmCommand.
	ArmMoveCmd = ishell.Cmd{
		Name:    "arm.move",
		Aliases: []string{"am"},
		Help:    "TURRET SHOULDER (0-65535)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			msg, err := ParseArmCommand(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, msg)
		}),
	}

	// ArmStatusCmd exposes ArmStatusQuery.
	ArmStatusCmd = ishell.Cmd{
		Name:    "arm.status",
		Aliases: []string{"as"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.ArmStatusQuery{})
		}),
	}
)

// ParseArmCommand parses TURRET SHOULDER into ArmCommand.
func ParseArmCommand(args []string) (*msgs.ArmCommand, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("TURRET and SHOULDER required")
	}
	turret, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return nil, fmt.Errorf("Invalid TURRET: %v", err)
	}
	shoulder, err := strconv.ParseUint(args[1], 0, 16)
	if err != nil {
		return nil, fmt.Errorf("Invalid SHOULDER: %v", err)
	}
	return &msgs.ArmCommand{Turret: uint32(turret), Shoulder: uint32(shoulder)}, nil
}

func init() {
	sh.AddCmds(
		&ArmMoveCmd,
		&ArmStatusCmd,
	)
}
