package main

import (
	// pull in all the pawapay-gateway commands
	"github.com/myzuwa/pawapay-go/cmd"
)

// variables will be overwritten at build time with ldflags
var (
	version   string
	commit    string
	buildTime string
)

func main() {
	cmd.Execute(version, commit, buildTime)
}
