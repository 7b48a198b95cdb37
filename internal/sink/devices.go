package sink

import (
	"fmt"

	"github.com/drgolem/go-portaudio/portaudio"
)

// Device describes one PortAudio device that can output sound.
type Device struct {
	Index             int
	Name              string
	MaxOutputChannels int
	DefaultSampleRate float64
}

func (d Device) String() string {
	return fmt.Sprintf("%d: %s (%dch, %gHz)",
		d.Index, d.Name, d.MaxOutputChannels, d.DefaultSampleRate)
}

// OutputDevices lists the devices capable of output. PortAudio must be
// initialised first.
func OutputDevices() ([]Device, error) {
	count, err := portaudio.GetDeviceCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}

	var devices []Device
	for idx := 0; idx < count; idx++ {
		info, err := portaudio.GetDeviceInfo(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to query device %d: %w", idx, err)
		}
		if info.MaxOutputChannels <= 0 {
			continue
		}
		devices = append(devices, Device{
			Index:             idx,
			Name:              info.Name,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		})
	}

	return devices, nil
}

// IsOutputDevice reports whether id names a device that can output
// sound.
func IsOutputDevice(id int) bool {
	devices, err := OutputDevices()
	if err != nil {
		return false
	}
	for _, d := range devices {
		if d.Index == id {
			return true
		}
	}
	return false
}
