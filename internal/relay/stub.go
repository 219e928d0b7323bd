//go:build !linux

package relay

import (
	"errors"

	"github.com/hglynn/labclimate/internal/climate"
)

// RealBoard is not available on non-Linux platforms.
type RealBoard struct{}

// NewRealBoard returns an error on non-Linux platforms.
func NewRealBoard(string) (*RealBoard, error) {
	return nil, errors.New("relay: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (b *RealBoard) Set(int, climate.Output) error {
	return errors.New("relay: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealBoard) Close() error {
	return nil
}
