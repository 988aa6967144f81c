package audio

import (
	"strings"

	"github.com/gordonklaus/portaudio"
)

// inputKeywords mark device names that are likely microphones.
var inputKeywords = []string{"mic", "input"}

// SelectInputDevice picks the capture device. A non-empty preferred name
// must match exactly. Otherwise the first input-capable device whose name
// mentions a microphone or input wins. Nil means use the host default.
func SelectInputDevice(devices []*portaudio.DeviceInfo, preferred string) (*portaudio.DeviceInfo, error) {
	if preferred != "" {
		for _, d := range devices {
			if d.Name == preferred && d.MaxInputChannels > 0 {
				return d, nil
			}
		}
		return nil, ErrDeviceNotFound
	}

	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		name := strings.ToLower(d.Name)
		for _, keyword := range inputKeywords {
			if strings.Contains(name, keyword) {
				return d, nil
			}
		}
	}

	return nil, nil
}

func inputDevices(devices []*portaudio.DeviceInfo, defaultDevice *portaudio.DeviceInfo) []AudioDevice {
	result := make([]AudioDevice, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}
	return result
}
