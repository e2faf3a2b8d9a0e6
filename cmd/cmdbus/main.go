package main

//go-build: CGO_ENABLED=0

import (
	"github.com/rtlessly/RTL-CommandBus/pkg/cli/sh"
)

func main() {
	sh.Main()
}
