package audio

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Device describes one input-capable PortAudio device.
type Device struct {
	Name           string
	Inputs         int
	SampleRateHz   float64
	HostAPI        string
	IsDefaultInput bool
}

// InputDevices returns every input-capable device sorted by host API and
// name.
func InputDevices() ([]Device, error) {
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defaultIndex := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultIndex = def.Index
	}

	var devices []Device
	for _, host := range hosts {
		for _, d := range host.Devices {
			if d.MaxInputChannels <= 0 {
				continue
			}
			devices = append(devices, Device{
				Name:           d.Name,
				Inputs:         d.MaxInputChannels,
				SampleRateHz:   d.DefaultSampleRate,
				HostAPI:        host.Name,
				IsDefaultInput: d.Index == defaultIndex,
			})
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})
	return devices, nil
}

// findInput resolves the capture device: substring match when a name is
// given, otherwise the system default, otherwise the highest-scoring
// loopback-looking input.
func findInput(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	if name != "" {
		want := strings.ToLower(name)
		for _, d := range devices {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), want) {
				return d, nil
			}
		}
		return nil, fmt.Errorf("audio device %q not found", name)
	}

	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil && def.MaxInputChannels > 0 {
		return def, nil
	}

	var best *portaudio.DeviceInfo
	bestScore := -1
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		score := d.MaxInputChannels
		lower := strings.ToLower(d.Name)
		for _, kw := range []string{"monitor", "loopback", "stereo mix", "what u hear"} {
			if strings.Contains(lower, kw) {
				score += 20
				break
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no suitable audio input device found")
	}
	return best, nil
}
