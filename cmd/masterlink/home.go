package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/smartteach/masterlink/pkg/config"
	"github.com/smartteach/masterlink/pkg/frame"
	"github.com/smartteach/masterlink/pkg/transport"
)

// HomeCommand sends a single return-to-home request outside of a streaming
// session, for bench use.
type HomeCommand struct {
	Config string `long:"config" description:"Config file path" default:"masterlink.yaml"`
	Target string `long:"target" description:"Slave endpoint override (host:port)"`
	Arm    string `long:"arm" description:"Arm to home" choice:"left" choice:"right" default:"left"`
}

func (c *HomeCommand) Execute(args []string) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	target := cfg.SlaveEndpoint
	if c.Target != "" {
		target = c.Target
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sess, err := transport.Dial(target, time.Duration(cfg.ConnectTimeout), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	payload, err := frame.EncodeHome(frame.HomeRequest{Arm: frame.ArmID(c.Arm)})
	if err != nil {
		return err
	}
	if err := sess.Send(payload); err != nil {
		fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Home command sent to %s for %s arm\n", target, c.Arm)
	return nil
}
