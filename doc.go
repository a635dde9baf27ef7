// Package masterlink is the supervisory control core for a dual-arm
// master teleoperation device (Raspberry Pi + feetech servo bus). It
// streams per-arm command frames to a slave robot over a bidirectional
// websocket link, tracks each arm's control mode, and records incoming
// encoder telemetry for CSV export.
//
// # Usage
//
// Probe the servo buses, then open the control panel:
//
//	masterlink probe
//	masterlink run --target 192.168.0.41:50054
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/masterlink: CLI with run, probe, and home commands
//   - pkg/arm: per-arm control mode state machine
//   - pkg/frame: wire frame types and deterministic CBOR codec
//   - pkg/transport: websocket streaming session
//   - pkg/stream: streaming session controller (send/receive loops)
//   - pkg/record: in-memory telemetry recording buffer
//   - pkg/export: CSV export of recorded telemetry
//   - pkg/device: local servo bus encoder source
//   - pkg/config: YAML configuration
package masterlink
