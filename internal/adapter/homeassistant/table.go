package homeassistant

import (
	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Native attribute names with adapter-side handling.
const (
	attrState = "state"
	attrHSHue = featHS + ".h"
	attrHSSat = featHS + ".s"
	paramHue  = "hue"
	paramSat  = "saturation"
)

var (
	brightness = capability.Linear(0, 255, 0, 100)
	onOff      = capability.Enum(map[string]string{"on": "on", "off": "off"})
	hvacModes  = map[string]string{"off": "off", "heat": "heat", "cool": "cool", "heat_cool": "auto"}
)

func service(command, native string, params ...capability.ParamMapping) capability.CommandMapping {
	return capability.CommandMapping{Command: command, Native: native, Params: params}
}

func param(native string, c capability.Converter) capability.ParamMapping {
	return capability.ParamMapping{Native: native, Convert: c}
}

// entries is the Home Assistant feature table. Natives are features derived
// from an entity's domain and attributes; command natives are service names
// called in the entity's own domain. Sensor entities report their reading
// under the feature name.
func entries() []capability.Entry {
	return []capability.Entry{
		{
			Capability: device.CapSwitch,
			Native:     featOnOff,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: attrState, Convert: onOff}},
			Commands: []capability.CommandMapping{
				service(device.CmdOn, "turn_on"),
				service(device.CmdOff, "turn_off"),
				service(device.CmdToggle, "toggle"),
			},
		},
		{
			Capability: device.CapDimmer,
			Native:     featBrightness,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrLevel, Native: "brightness", Convert: brightness}},
			Commands: []capability.CommandMapping{
				service(device.CmdSetLevel, "turn_on", param("brightness", brightness), param("transition", capability.Numeric())),
			},
		},
		{
			Capability: device.CapColor,
			Native:     featHS,
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrHue, Native: attrHSHue, Convert: capability.Numeric()},
				{Attribute: device.AttrSaturation, Native: attrHSSat, Convert: capability.Numeric()},
			},
			Commands: []capability.CommandMapping{
				service(device.CmdSetColor, "turn_on", param(paramHue, capability.Numeric()), param(paramSat, capability.Numeric())),
			},
		},
		{
			Capability: device.CapColorTemperature,
			Native:     featColorTemp,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrKelvin, Native: "color_temp_kelvin", Convert: capability.Numeric()}},
			Commands: []capability.CommandMapping{
				service(device.CmdSetColorTemperature, "turn_on", param("color_temp_kelvin", capability.Numeric())),
			},
		},
		{
			Capability: device.CapThermostat,
			Native:     featClimate,
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrHeatingSetpoint, Native: "temperature", Convert: capability.Numeric()},
				{Attribute: device.AttrCoolingSetpoint, Native: "target_temp_high", Convert: capability.Numeric()},
				{Attribute: device.AttrMode, Native: attrState, Convert: capability.Enum(hvacModes)},
				{Attribute: device.AttrOperatingState, Native: "hvac_action", Convert: capability.Enum(map[string]string{
					"heating": "heating", "cooling": "cooling", "idle": "idle",
				})},
			},
			Commands: []capability.CommandMapping{
				service(device.CmdSetHeatingSetpoint, "set_temperature", param("temperature", capability.Numeric())),
				service(device.CmdSetCoolingSetpoint, "set_temperature", param("target_temp_high", capability.Numeric())),
				service(device.CmdSetMode, "set_hvac_mode", param("hvac_mode", capability.Enum(hvacModes))),
			},
		},
		{
			Capability: device.CapLock,
			Native:     featLock,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: attrState, Convert: capability.Enum(map[string]string{
				"locked": "locked", "unlocked": "unlocked",
			})}},
			Commands: []capability.CommandMapping{
				service(device.CmdLock, "lock"),
				service(device.CmdUnlock, "unlock"),
			},
		},
		{
			Capability: device.CapShade,
			Native:     featCover,
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrPosition, Native: "current_position", Convert: capability.Numeric()},
				{Attribute: device.AttrState, Native: attrState, Convert: capability.Enum(map[string]string{
					"open": "open", "closed": "closed", "opening": "opening", "closing": "closing",
				})},
			},
			Commands: []capability.CommandMapping{
				service(device.CmdOpen, "open_cover"),
				service(device.CmdClose, "close_cover"),
				service(device.CmdStop, "stop_cover"),
				service(device.CmdSetPosition, "set_cover_position", param("position", capability.Numeric())),
			},
		},
		{
			Capability: device.CapFan,
			Native:     featPercentage,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrSpeed, Native: "percentage", Convert: capability.Numeric()}},
			Commands: []capability.CommandMapping{
				service(device.CmdSetSpeed, "set_percentage", param("percentage", capability.Numeric())),
			},
		},
		{
			Capability: device.CapTemperatureSensor,
			Native:     featTemperature,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrTemperature, Native: featTemperature, Convert: capability.Numeric()}},
		},
		{
			Capability: device.CapHumiditySensor,
			Native:     featHumidity,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrHumidity, Native: featHumidity, Convert: capability.RoundedPercent()}},
		},
		{
			Capability: device.CapIlluminanceSensor,
			Native:     featIlluminance,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrIlluminance, Native: featIlluminance, Convert: capability.Numeric()}},
		},
		{
			Capability: device.CapBattery,
			Native:     featBattery,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrLevel, Native: featBattery, Convert: capability.Numeric()}},
		},
		{
			Capability: device.CapEnergyMeter,
			Native:     featPower,
			Detect:     []string{featEnergy},
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrPower, Native: featPower, Convert: capability.Numeric()},
				{Attribute: device.AttrEnergy, Native: featEnergy, Source: featEnergy, Convert: capability.Numeric()},
			},
		},
		{
			Capability: device.CapMotionSensor,
			Native:     featMotion,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrMotion, Native: featMotion, Convert: capability.Enum(map[string]string{"on": "active", "off": "inactive"})}},
		},
		{
			Capability: device.CapContactSensor,
			Native:     featDoor,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrContact, Native: featDoor, Convert: capability.Enum(map[string]string{"on": "open", "off": "closed"})}},
		},
		{
			Capability: device.CapOccupancySensor,
			Native:     featOccupancy,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrOccupancy, Native: featOccupancy, Convert: capability.Enum(map[string]string{"on": "occupied", "off": "unoccupied"})}},
		},
		{
			Capability: device.CapValve,
			Native:     featValve,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: attrState, Convert: capability.Enum(map[string]string{"open": "open", "closed": "closed"})}},
			Commands: []capability.CommandMapping{
				service(device.CmdOpen, "open_valve"),
				service(device.CmdClose, "close_valve"),
			},
		},
		{
			Capability: device.CapAlarm,
			Native:     featSiren,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: attrState, Convert: capability.Enum(map[string]string{"on": "siren", "off": "off"})}},
			Commands: []capability.CommandMapping{
				service(device.CmdSiren, "turn_on"),
				service(device.CmdOff, "turn_off"),
			},
		},
	}
}

// NewRegistry builds the Home Assistant capability registry.
func NewRegistry() (*capability.Registry, error) {
	return capability.NewRegistry(device.BackendHomeAssistant, entries()...)
}
