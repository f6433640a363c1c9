package tuya

import (
	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// DP codes with adapter-side handling.
const (
	codeColour    = "colour_data_v2"
	codeControl   = "control"
	codeSwitch    = "switch"
	categoryValve = "sfkzq"
)

var (
	tenBit     = capability.Linear(0, 1000, 0, 100)
	tempValue  = capability.Linear(0, 1000, 2700, 6500)
	modes      = map[string]string{"hot": "heat", "cold": "cool", "auto": "auto", "off": "off"}
	fixedTrue  = []capability.Arg{{Name: "value", Value: true}}
	fixedFalse = []capability.Arg{{Name: "value", Value: false}}
)

func valueParam(c capability.Converter) []capability.ParamMapping {
	return []capability.ParamMapping{{Native: "value", Convert: c}}
}

func set(command string, fixed []capability.Arg) capability.CommandMapping {
	return capability.CommandMapping{Command: command, Native: "set", Fixed: fixed}
}

func setValue(command string, c capability.Converter) capability.CommandMapping {
	return capability.CommandMapping{Command: command, Native: "set", Params: valueParam(c)}
}

// entries is the Tuya DP-code table. Tuya reports flat data points, so
// attribute natives are DP codes and must be unique across the table.
// The colour DP is a JSON object the adapter expands into "colour_data_v2.h"
// and "colour_data_v2.s".
func entries() []capability.Entry {
	return []capability.Entry{
		{
			Capability: device.CapSwitch,
			Native:     "switch_led",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: "switch_led", Convert: capability.BoolEnum("on", "off")}},
			Commands:   []capability.CommandMapping{set(device.CmdOn, fixedTrue), set(device.CmdOff, fixedFalse)},
		},
		{
			Capability: device.CapDimmer,
			Native:     "bright_value_v2",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrLevel, Native: "bright_value_v2", Convert: tenBit}},
			Commands:   []capability.CommandMapping{setValue(device.CmdSetLevel, tenBit)},
		},
		{
			Capability: device.CapColor,
			Native:     codeColour,
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrHue, Native: codeColour + ".h", Convert: capability.Numeric()},
				{Attribute: device.AttrSaturation, Native: codeColour + ".s", Convert: tenBit},
			},
			Commands: []capability.CommandMapping{
				{
					Command: device.CmdSetColor,
					Native:  "set",
					Params: []capability.ParamMapping{
						{Native: "h", Convert: capability.Numeric()},
						{Native: "s", Convert: tenBit},
					},
					Fixed: []capability.Arg{{Name: "v", Value: 1000.0}},
				},
			},
		},
		{
			Capability: device.CapColorTemperature,
			Native:     "temp_value_v2",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrKelvin, Native: "temp_value_v2", Convert: tempValue}},
			Commands:   []capability.CommandMapping{setValue(device.CmdSetColorTemperature, tempValue)},
		},
		{
			Capability: device.CapThermostat,
			Native:     "temp_set",
			Detect:     []string{"mode", "work_state"},
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrHeatingSetpoint, Native: "temp_set", Convert: capability.Divide(10)},
				{Attribute: device.AttrMode, Native: "mode", Convert: capability.Enum(modes)},
				{Attribute: device.AttrOperatingState, Native: "work_state", Convert: capability.Enum(map[string]string{
					"heating": "heating", "cooling": "cooling", "idle": "idle",
				})},
			},
			Commands: []capability.CommandMapping{
				setValue(device.CmdSetHeatingSetpoint, capability.Divide(10)),
				{Command: device.CmdSetMode, Native: "set", Target: "mode", Params: valueParam(capability.Enum(modes))},
			},
		},
		{
			Capability: device.CapLock,
			Native:     "lock_motor_state",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: "lock_motor_state", Convert: capability.BoolEnum("locked", "unlocked")}},
			Commands:   []capability.CommandMapping{set(device.CmdLock, fixedTrue), set(device.CmdUnlock, fixedFalse)},
		},
		{
			Capability: device.CapShade,
			Native:     "percent_control",
			Detect:     []string{codeControl},
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrPosition, Native: "percent_control", Convert: capability.Numeric()}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdOpen, Native: "set", Target: codeControl, Fixed: []capability.Arg{{Name: "value", Value: "open"}}},
				{Command: device.CmdClose, Native: "set", Target: codeControl, Fixed: []capability.Arg{{Name: "value", Value: "close"}}},
				{Command: device.CmdStop, Native: "set", Target: codeControl, Fixed: []capability.Arg{{Name: "value", Value: "stop"}}},
				setValue(device.CmdSetPosition, capability.Numeric()),
			},
		},
		{
			Capability: device.CapFan,
			Native:     "fan_speed_percent",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrSpeed, Native: "fan_speed_percent", Convert: capability.Numeric()}},
			Commands:   []capability.CommandMapping{setValue(device.CmdSetSpeed, capability.Numeric())},
		},
		{
			Capability: device.CapTemperatureSensor,
			Native:     "va_temperature",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrTemperature, Native: "va_temperature", Convert: capability.Divide(10)}},
		},
		{
			Capability: device.CapHumiditySensor,
			Native:     "va_humidity",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrHumidity, Native: "va_humidity", Convert: capability.RoundedPercent()}},
		},
		{
			Capability: device.CapMotionSensor,
			Native:     "pir",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrMotion, Native: "pir", Convert: capability.Enum(map[string]string{"pir": "active", "none": "inactive"})}},
		},
		{
			Capability: device.CapContactSensor,
			Native:     "doorcontact_state",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrContact, Native: "doorcontact_state", Convert: capability.BoolEnum("open", "closed")}},
		},
		{
			Capability: device.CapOccupancySensor,
			Native:     "presence_state",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrOccupancy, Native: "presence_state", Convert: capability.Enum(map[string]string{"presence": "occupied", "none": "unoccupied"})}},
		},
		{
			Capability: device.CapIlluminanceSensor,
			Native:     "illuminance_value",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrIlluminance, Native: "illuminance_value", Convert: capability.Numeric()}},
		},
		{
			Capability: device.CapBattery,
			Native:     "battery_percentage",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrLevel, Native: "battery_percentage", Convert: capability.Numeric()}},
		},
		{
			// cur_power is tenths of a watt; add_ele is thousandths of a kWh.
			Capability: device.CapEnergyMeter,
			Native:     "cur_power",
			Detect:     []string{"add_ele"},
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrPower, Native: "cur_power", Convert: capability.Divide(10)},
				{Attribute: device.AttrEnergy, Native: "add_ele", Convert: capability.Divide(1000)},
			},
		},
		{
			Capability: device.CapValve,
			// Plugs and breakers report the same DP; only valve controllers
			// are given the capability.
			Native:     codeSwitch,
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: codeSwitch, Convert: capability.BoolEnum("open", "closed")}},
			Commands:   []capability.CommandMapping{set(device.CmdOpen, fixedTrue), set(device.CmdClose, fixedFalse)},
		},
		{
			Capability: device.CapAlarm,
			Native:     "alarm_switch",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: "alarm_switch", Convert: capability.BoolEnum("siren", "off")}},
			Commands:   []capability.CommandMapping{set(device.CmdSiren, fixedTrue), set(device.CmdOff, fixedFalse)},
		},
	}
}

// NewRegistry builds the Tuya capability registry.
func NewRegistry() (*capability.Registry, error) {
	return capability.NewRegistry(device.BackendTuya, entries()...)
}
