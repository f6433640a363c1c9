package homeassistant

import (
	"slices"
	"strings"
	"time"
)

// Entity is a Home Assistant entity state.
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Domain returns the entity domain, e.g. "light" for "light.kitchen".
func (e Entity) Domain() string {
	d, _, _ := strings.Cut(e.EntityID, ".")
	return d
}

// Name returns the friendly name, falling back to the entity id.
func (e Entity) Name() string {
	if n, ok := e.Attributes["friendly_name"].(string); ok && n != "" {
		return n
	}
	return e.EntityID
}

// Available reports whether Home Assistant can reach the entity.
func (e Entity) Available() bool {
	return e.State != "unavailable"
}

func (e Entity) deviceClass() string {
	dc, _ := e.Attributes["device_class"].(string)
	return dc
}

func (e Entity) has(attr string) bool {
	_, ok := e.Attributes[attr]
	return ok
}

func (e Entity) colorModes() []string {
	raw, _ := e.Attributes["supported_color_modes"].([]any)
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		if s, ok := m.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Feature names used as native capabilities.
const (
	featOnOff       = "onoff"
	featBrightness  = "brightness"
	featHS          = "hs_color"
	featColorTemp   = "color_temp_kelvin"
	featClimate     = "climate"
	featLock        = "lock"
	featCover       = "cover"
	featPercentage  = "percentage"
	featTemperature = "temperature"
	featHumidity    = "humidity"
	featIlluminance = "illuminance"
	featBattery     = "battery"
	featPower       = "power"
	featEnergy      = "energy"
	featMotion      = "motion"
	featDoor        = "door"
	featOccupancy   = "occupancy"
	featValve       = "valve"
	featSiren       = "siren"
)

// sensorDomains report their reading in the entity state; the adapter emits it
// under the feature name.
var sensorDomains = []string{"sensor", "binary_sensor"}

func isSensor(domain string) bool {
	return slices.Contains(sensorDomains, domain)
}

// features derives native capability names from an entity's domain,
// device class and attributes.
func features(e Entity) []string {
	switch e.Domain() {
	case "light":
		out := []string{featOnOff}
		modes := e.colorModes()
		if e.has("brightness") || len(modes) > 0 && !slices.Equal(modes, []string{"onoff"}) {
			out = append(out, featBrightness)
		}
		if slices.Contains(modes, "hs") || slices.Contains(modes, "xy") || slices.Contains(modes, "rgb") {
			out = append(out, featHS)
		}
		if slices.Contains(modes, "color_temp") {
			out = append(out, featColorTemp)
		}
		return out
	case "switch", "input_boolean":
		return []string{featOnOff}
	case "fan":
		return []string{featOnOff, featPercentage}
	case "climate":
		return []string{featClimate}
	case "lock":
		return []string{featLock}
	case "cover":
		return []string{featCover}
	case "valve":
		return []string{featValve}
	case "siren":
		return []string{featSiren}
	case "sensor":
		switch dc := e.deviceClass(); dc {
		case featTemperature, featHumidity, featIlluminance, featBattery, featPower, featEnergy:
			return []string{dc}
		}
	case "binary_sensor":
		switch e.deviceClass() {
		case "motion":
			return []string{featMotion}
		case "door", "window", "opening", "garage_door":
			return []string{featDoor}
		case "occupancy", "presence":
			return []string{featOccupancy}
		}
	}
	return nil
}
