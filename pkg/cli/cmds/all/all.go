// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/psoc-arm/pkg/cli/cmds/arm"
)
