//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealRelays drives relays through the Linux GPIO character device.
type RealRelays struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealRelays requests the given lines as outputs, initially off.
// With activeLow the relay is energised by driving the line low, as on most relay boards.
func NewRealRelays(chipName string, offsets []int, activeLow bool) (*RealRelays, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealRelays{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line, len(offsets)),
	}
	for _, offset := range offsets {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
		if activeLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request relay line %d: %w", offset, err)
		}
		r.lines[offset] = line
	}
	return r, nil
}

// Set drives a requested line.
func (r *RealRelays) Set(line int, on bool) error {
	l, ok := r.lines[line]
	if !ok {
		return fmt.Errorf("relay line %d not requested", line)
	}
	v := 0
	if on {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("set relay line %d: %w", line, err)
	}
	return nil
}

// Close turns every relay off and releases the lines and the chip.
func (r *RealRelays) Close() error {
	var errs []error

	for offset, l := range r.lines {
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release relay line %d: %w", offset, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay line %d: %w", offset, err))
		}
	}
	r.lines = nil

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
