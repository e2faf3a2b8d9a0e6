package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/rtlessly/RTL-CommandBus/pkg/device"
	fx "github.com/rtlessly/RTL-CommandBus/pkg/framework"
)

func init() {
	device.SetupFlags()
}

func main() {
	flag.Parse()

	ctl := &device.Controller{Exec: device.ShellExec}
	env := device.NewConfig().MustNewEnv(ctl)
	loop := fx.NewLoop()
	ctl.Loop = loop
	env.AddToLoop(loop)

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("loop", loop))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
