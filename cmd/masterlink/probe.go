package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/smartteach/masterlink/pkg/frame"
)

type ProbeCommand struct{}

type busInfo struct {
	port   string
	arm    frame.ArmID
	servos []feetech.FoundServo
}

// Left arm servos answer on IDs 1-7, right arm on 11-17.
const (
	leftFirstID  = 1
	leftLastID   = 7
	rightFirstID = 11
	rightLastID  = 17
)

func (c *ProbeCommand) Execute(args []string) error {
	fmt.Println("Masterlink Bus Probe")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	buses := findBuses()

	if len(buses) == 0 {
		fmt.Println("No master arm buses found.")
		fmt.Println("Make sure the device is connected and powered on.")
		return nil
	}

	fmt.Println()
	fmt.Println("Configuration:")
	for _, b := range buses {
		fmt.Printf("  %s arm: %s (%d servos)\n", b.arm, b.port, len(b.servos))
	}
	fmt.Println()
	fmt.Println("Put the ports into masterlink.yaml under left_arm/right_arm,")
	fmt.Println("then start the panel with: masterlink run")
	return nil
}

func findBuses() []busInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var buses []busInfo

	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)

		bus, err := feetech.NewBus(feetech.BusConfig{
			Port:     port,
			BaudRate: 1_000_000,
			Protocol: feetech.ProtocolSTS,
			Timeout:  100 * time.Millisecond,
		})
		if err != nil {
			cancel()
			continue
		}

		servos, err := bus.Scan(ctx, leftFirstID, rightLastID)
		cancel()
		bus.Close()
		if err != nil {
			continue
		}

		if id, ok := identifyArm(servos); ok {
			fmt.Printf("  Found %s arm bus on %s\n", id, port)
			buses = append(buses, busInfo{port: port, arm: id, servos: servos})
		}
	}

	return buses
}

// identifyArm checks whether the discovered servos form a complete 7-servo
// master arm and reports which arm it is by its ID block.
func identifyArm(servos []feetech.FoundServo) (frame.ArmID, bool) {
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}

	complete := func(first, last int) bool {
		for i := first; i <= last; i++ {
			if !ids[i] {
				return false
			}
		}
		return true
	}

	switch {
	case complete(leftFirstID, leftLastID):
		return frame.Left, true
	case complete(rightFirstID, rightLastID):
		return frame.Right, true
	default:
		return "", false
	}
}
