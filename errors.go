package zpacket

import (
	"errors"
	"fmt"
)

var (
	ErrDestinationAddressOutOfRange = errors.New("zpacket: destination address out of range")
	ErrSenderAddressOutOfRange      = errors.New("zpacket: sender address out of range")
	ErrPayloadTooLarge              = errors.New("zpacket: payload too large")
	ErrBadCRC                       = errors.New("zpacket: bad crc")
	ErrShortFrame                   = errors.New("zpacket: short frame")
	ErrTrailingBytes                = errors.New("zpacket: trailing bytes after frame")
	ErrNoStartMarker                = errors.New("zpacket: missing start marker")
)

// FrameError describes a frame that was fully received but failed validation.
// It unwraps to ErrBadCRC.
type FrameError struct {
	Destination uint8
	Source      uint8
	Length      int
	Want        byte // checksum accumulated over the received bytes
	Got         byte // checksum byte found on the wire
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("zpacket: bad crc in frame %d->%d len=%d: want 0x%02x got 0x%02x",
		e.Source, e.Destination, e.Length, e.Want, e.Got)
}

func (e *FrameError) Unwrap() error { return ErrBadCRC }
