package adapter

import (
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

func TestFilterMatch(t *testing.T) {
	hall := "Hall"
	d := device.Device{
		LocalID:      "bf1",
		Room:         &hall,
		Capabilities: []device.Capability{device.CapSwitch, device.CapDimmer},
	}
	noRoom := device.Device{LocalID: "bf2", Capabilities: []device.Capability{device.CapLock}}

	tests := []struct {
		name   string
		filter Filter
		dev    device.Device
		want   bool
	}{
		{name: "zero filter", filter: Filter{}, dev: d, want: true},
		{name: "local id hit", filter: Filter{LocalIDs: []string{"bf0", "bf1"}}, dev: d, want: true},
		{name: "local id miss", filter: Filter{LocalIDs: []string{"bf0"}}, dev: d, want: false},
		{name: "capability hit", filter: Filter{Capability: device.CapDimmer}, dev: d, want: true},
		{name: "capability miss", filter: Filter{Capability: device.CapLock}, dev: d, want: false},
		{name: "room hit", filter: Filter{Room: "Hall"}, dev: d, want: true},
		{name: "room on device without room", filter: Filter{Room: "Hall"}, dev: noRoom, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.dev); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterApply(t *testing.T) {
	ds := []device.Device{
		{LocalID: "a", Capabilities: []device.Capability{device.CapSwitch}},
		{LocalID: "b", Capabilities: []device.Capability{device.CapLock}},
		{LocalID: "c", Capabilities: []device.Capability{device.CapSwitch}},
	}

	got := Filter{Capability: device.CapSwitch}.Apply(ds)
	if len(got) != 2 || got[0].LocalID != "a" || got[1].LocalID != "c" {
		t.Errorf("Apply() = %v", got)
	}
	if all := (Filter{}).Apply(ds); len(all) != 3 {
		t.Errorf("zero filter Apply() returned %d devices", len(all))
	}
}
