//go:build linux

package relay

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/hglynn/labclimate/internal/climate"
)

// RealBoard drives relays through the Linux GPIO character device. Lines are
// requested lazily on first use and held until Close.
type RealBoard struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewRealBoard opens the GPIO chip.
func NewRealBoard(chipName string) (*RealBoard, error) {
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealBoard{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// Set drives one relay line. Active-low: ON writes 0, OFF writes 1.
func (b *RealBoard) Set(line int, out climate.Output) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.lines[line]
	if !ok {
		// Request as output, initially de-energized (high).
		var err error
		l, err = b.chip.RequestLine(line, gpiocdev.AsOutput(1))
		if err != nil {
			return fmt.Errorf("request line %d: %w", line, err)
		}
		b.lines[line] = l
	}

	value := 1
	if out == climate.On {
		value = 0
	}
	if err := l.SetValue(value); err != nil {
		return fmt.Errorf("set line %d: %w", line, err)
	}
	return nil
}

// Close de-energizes every held line and releases the chip. Lines are
// reconfigured to input so external hardware sees the Pi's boot defaults.
func (b *RealBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for offset, l := range b.lines {
		if err := l.SetValue(1); err != nil {
			errs = append(errs, fmt.Errorf("release line %d: %w", offset, err))
		}
		if err := l.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", offset, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", offset, err))
		}
	}
	b.lines = make(map[int]*gpiocdev.Line)

	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
