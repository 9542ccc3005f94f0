package firmware

import (
	"fmt"
	"path/filepath"
)

// SDImageName is the image used for manual updates from external storage.
const SDImageName = "ts/touch_screen_firmware.img"

// Loader fetches firmware images by name.
type Loader interface {
	Load(name string) (*Image, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(name string) (*Image, error)

// Load calls f(name).
func (f LoaderFunc) Load(name string) (*Image, error) {
	return f(name)
}

// DirLoader loads images relative to a firmware directory.
//
// Example:
//
//	loader := firmware.DirLoader{Dir: "/vendor/firmware"}
//	img, err := loader.Load(firmware.BootImageName("k50", projectID, false))
type DirLoader struct {
	Dir string
}

// Load reads Dir/name.
func (l DirLoader) Load(name string) (*Image, error) {
	if name == "" {
		return nil, &InvalidImageError{Reason: "empty image name"}
	}

	img, err := Load(filepath.Join(l.Dir, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	img.Name = name
	return img, nil
}

// BootImageName returns the name of the image flashed at boot. A hidden
// name only carries the project id.
func BootImageName(product, projectID string, hide bool) string {
	if hide {
		return fmt.Sprintf("ts/%s.bin", projectID)
	}
	return fmt.Sprintf("ts/%s_%s.img", product, projectID)
}
