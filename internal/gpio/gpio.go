// Package gpio drives relay outputs wired to the pellet stove.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Relays sets the state of output lines.
type Relays interface {
	// Set energises (on) or releases the relay on line.
	Set(line int, on bool) error
	// Close releases all lines, leaving the relays off.
	Close() error
}

// DefaultChip is the GPIO chip on a Raspberry Pi header.
const DefaultChip = "gpiochip0"

// Consumer is the label shown for requested lines.
const Consumer = "smart-thermostat"
