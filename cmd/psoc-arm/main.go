package main

//go-build: CGO_ENABLED=0

import (
	"github.com/golang/glog"

	"github.com/robotalks/psoc-arm/pkg/framework"
	"github.com/robotalks/psoc-arm/pkg/l1"
	cfg "github.com/robotalks/psoc-arm/pkg/l1/env"
	env "github.com/robotalks/psoc-arm/pkg/l1/env/controller"
	"github.com/robotalks/psoc-arm/pkg/psocarm"
)

// fileConfig is the layout of the -config file.
type fileConfig struct {
	Controller *env.Config     `yaml:"controller"`
	Arm        *psocarm.Config `yaml:"psoc_arm"`
}

func (c *fileConfig) Validate() error {
	if err := c.Controller.Validate(); err != nil {
		return err
	}
	return c.Arm.Validate()
}

func init() {
	env.SetControllerType(psocarm.ControllerType, l1.ControllerMeta{Description: "PSoC Arm Controller"})
	env.SetupFlags()
	psocarm.SetupFlags()
	cfg.SetupConfigFlag()
}

func main() {
	conf := &fileConfig{Controller: env.Default(), Arm: psocarm.Default()}
	if err := cfg.ParseFlags(conf); err != nil {
		glog.Exit(err)
	}
	if err := conf.Validate(); err != nil {
		glog.Exit(err)
	}
	defer glog.Flush()

	env := env.NewConfig().MustNewEnv()
	ctl := psocarm.NewConfig().NewController(env)
	framework.NewLoop().Add(env, ctl).RunOrFail()
}
