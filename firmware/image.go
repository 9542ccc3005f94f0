package firmware

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/moffa90/go-cts/protocol"
)

// Constants for firmware image layout.
const (
	// MaxImageSize is the largest image that fits in front of the trailer
	MaxImageSize = TrailerOffset

	// VersionOffset is where the little-endian firmware version is stored
	VersionOffset = 0x100

	// ImageAlignment is the required size granularity of an image
	ImageAlignment = 4
)

// Image is a raw firmware image, flashed from offset 0.
type Image struct {
	// Name is the file or resource the image was loaded from
	Name string

	// Data is the image content
	Data []byte
}

// NewImage wraps data in an Image and validates it.
func NewImage(name string, data []byte) (*Image, error) {
	img := &Image{Name: name, Data: data}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// Size returns the image size in bytes.
func (img *Image) Size() int {
	return len(img.Data)
}

// Validate checks that the image is non-empty, fits in front of the
// trailer and is a whole number of words.
func (img *Image) Validate() error {
	size := len(img.Data)
	switch {
	case size == 0:
		return &InvalidImageError{Name: img.Name, Size: size, Reason: "empty image"}
	case size > MaxImageSize:
		return &InvalidImageError{Name: img.Name, Size: size,
			Reason: fmt.Sprintf("larger than 0x%04X bytes", MaxImageSize)}
	case size%ImageAlignment != 0:
		return &InvalidImageError{Name: img.Name, Size: size,
			Reason: fmt.Sprintf("size is not a multiple of %d", ImageAlignment)}
	}
	return nil
}

// Version returns the firmware version stored in the image, or 0 when the
// image is too short to carry one.
func (img *Image) Version() uint16 {
	if len(img.Data) < VersionOffset+2 {
		return 0
	}
	return binary.LittleEndian.Uint16(img.Data[VersionOffset:])
}

// CRC returns the software CRC32 of the image, the value stored in the trailer.
func (img *Image) CRC() uint32 {
	return protocol.CalculateCRC32(img.Data)
}

// Load reads and validates a firmware image from the given file path.
//
// Example:
//
//	img, err := firmware.Load("/vendor/firmware/ts/CTS8918TST.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Version: %04x, size: %d\n", img.Version(), img.Size())
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadReader(filepath.Base(path), f)
}

// LoadReader reads and validates a firmware image from any io.Reader.
// At most MaxImageSize+1 bytes are consumed.
func LoadReader(name string, r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return NewImage(name, data)
}
