package firmware

import (
	"encoding/binary"
	"fmt"

	"github.com/moffa90/go-cts/flash"
	"github.com/moffa90/go-cts/protocol"
)

// Trailer record layout. The record sits at the top of the firmware
// section, right below the NVR region.
const (
	TrailerOffset     = 0xC000 - TrailerSize
	TrailerSize       = 16
	SectionEnableFlag = 0x0000C35A
)

// Trailer is the record written after a flashed image. The boot ROM only
// runs an image whose trailer is enabled and whose CRC matches.
//
// Layout (little-endian):
//
//	[CRC(4)][Length(4)][SectionEnableFlag(4)][Length(4)]
type Trailer struct {
	CRC    uint32
	Length uint32
}

// MarshalBinary encodes the trailer record.
func (t Trailer) MarshalBinary() ([]byte, error) {
	b := make([]byte, TrailerSize)
	binary.LittleEndian.PutUint32(b[0:], t.CRC)
	binary.LittleEndian.PutUint32(b[4:], t.Length)
	binary.LittleEndian.PutUint32(b[8:], SectionEnableFlag)
	binary.LittleEndian.PutUint32(b[12:], t.Length)
	return b, nil
}

// UnmarshalBinary decodes a trailer record, rejecting records without the
// enable flag or with disagreeing lengths.
func (t *Trailer) UnmarshalBinary(b []byte) error {
	if len(b) != TrailerSize {
		return fmt.Errorf("trailer is %d bytes, want %d: %w", len(b), TrailerSize, protocol.ErrInvalidArgument)
	}

	if flag := binary.LittleEndian.Uint32(b[8:]); flag != SectionEnableFlag {
		return fmt.Errorf("trailer section flag 0x%08X: %w", flag, protocol.ErrInvalidArgument)
	}

	length := binary.LittleEndian.Uint32(b[4:])
	if again := binary.LittleEndian.Uint32(b[12:]); again != length {
		return fmt.Errorf("trailer lengths disagree: %d != %d: %w", length, again, protocol.ErrInvalidArgument)
	}

	t.CRC = binary.LittleEndian.Uint32(b[0:])
	t.Length = length
	return nil
}

// Matches reports whether the trailer describes img.
func (t Trailer) Matches(img *Image) bool {
	return t.Length == uint32(img.Size()) && t.CRC == img.CRC()
}

// ReadTrailer reads and decodes the trailer currently stored in flash.
func ReadTrailer(f *flash.Flash) (Trailer, error) {
	b := make([]byte, TrailerSize)
	if _, err := f.Read(TrailerOffset, b); err != nil {
		return Trailer{}, fmt.Errorf("read trailer: %w", err)
	}

	var t Trailer
	if err := t.UnmarshalBinary(b); err != nil {
		return Trailer{}, err
	}
	return t, nil
}
