package main

import (
	"github.com/robotalks/psoc-arm/pkg/cli/sh"
	env "github.com/robotalks/psoc-arm/pkg/l1/env/connector"
	"github.com/robotalks/psoc-arm/pkg/psocarm"

	_ "github.com/robotalks/psoc-arm/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
	env.SetDefaultType(psocarm.ControllerType)
}

func main() {
	sh.Main()
}
