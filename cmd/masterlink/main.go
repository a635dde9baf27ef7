package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Run   RunCommand   `command:"run" description:"Connect to the slave robot and open the control panel"`
	Probe ProbeCommand `command:"probe" description:"Scan serial ports for master arm servo buses"`
	Home  HomeCommand  `command:"home" description:"Send a one-shot return-to-home command to the slave"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "masterlink - supervisory control panel for the dual-arm master teleoperation device"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
