package smartthings

import (
	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

var (
	thermostatModes = map[string]string{"off": "off", "heat": "heat", "cool": "cool", "auto": "auto"}
	shadeStates     = map[string]string{
		"open": "open", "closed": "closed", "opening": "opening", "closing": "closing",
		"partially open": "partially_open",
	}
	presenceStates = map[string]string{"present": "occupied", "not present": "unoccupied"}
)

// entries is the SmartThings capability table. SmartThings splits some
// unified capabilities over several native ones; the extras are detection
// names, attribute sources and command targets.
func entries() []capability.Entry {
	return []capability.Entry{
		{
			Capability: device.CapSwitch,
			Native:     "switch",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: "switch"}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdOn, Native: "on"},
				{Command: device.CmdOff, Native: "off"},
			},
		},
		{
			Capability: device.CapDimmer,
			Native:     "switchLevel",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrLevel, Native: "level", Convert: capability.Numeric()}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdSetLevel, Native: "setLevel", Params: []capability.ParamMapping{
					{Native: "level", Convert: capability.Numeric()},
					{Native: "rate", Convert: capability.Numeric()},
				}},
			},
		},
		{
			// SmartThings hue is a 0-100 percentage of the colour wheel.
			Capability: device.CapColor,
			Native:     "colorControl",
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrHue, Native: "hue", Convert: capability.Linear(0, 100, 0, 360)},
				{Attribute: device.AttrSaturation, Native: "saturation", Convert: capability.Numeric()},
			},
			Commands: []capability.CommandMapping{
				{Command: device.CmdSetColor, Native: "setColor", Params: []capability.ParamMapping{
					{Native: "hue", Convert: capability.Linear(0, 100, 0, 360)},
					{Native: "saturation", Convert: capability.Numeric()},
				}},
				{Command: device.CmdSetHue, Native: "setHue", Params: []capability.ParamMapping{
					{Native: "hue", Convert: capability.Linear(0, 100, 0, 360)},
				}},
				{Command: device.CmdSetSaturation, Native: "setSaturation", Params: []capability.ParamMapping{
					{Native: "saturation", Convert: capability.Numeric()},
				}},
			},
		},
		{
			Capability: device.CapColorTemperature,
			Native:     "colorTemperature",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrKelvin, Native: "colorTemperature", Convert: capability.Numeric()}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdSetColorTemperature, Native: "setColorTemperature", Params: []capability.ParamMapping{
					{Native: "temperature", Convert: capability.Numeric()},
				}},
			},
		},
		{
			Capability: device.CapThermostat,
			Native:     "thermostatHeatingSetpoint",
			Detect:     []string{"thermostatCoolingSetpoint", "thermostatMode", "thermostatOperatingState"},
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrHeatingSetpoint, Native: "heatingSetpoint", Convert: capability.Numeric()},
				{Attribute: device.AttrCoolingSetpoint, Native: "coolingSetpoint", Source: "thermostatCoolingSetpoint", Convert: capability.Numeric()},
				{Attribute: device.AttrMode, Native: "thermostatMode", Source: "thermostatMode", Convert: capability.Enum(thermostatModes)},
				{Attribute: device.AttrOperatingState, Native: "thermostatOperatingState", Source: "thermostatOperatingState", Convert: capability.Enum(map[string]string{
					"idle": "idle", "heating": "heating", "cooling": "cooling",
				})},
			},
			Commands: []capability.CommandMapping{
				{Command: device.CmdSetHeatingSetpoint, Native: "setHeatingSetpoint", Params: []capability.ParamMapping{
					{Native: "setpoint", Convert: capability.Numeric()},
				}},
				{Command: device.CmdSetCoolingSetpoint, Native: "setCoolingSetpoint", Target: "thermostatCoolingSetpoint", Params: []capability.ParamMapping{
					{Native: "setpoint", Convert: capability.Numeric()},
				}},
				{Command: device.CmdSetMode, Native: "setThermostatMode", Target: "thermostatMode", Params: []capability.ParamMapping{
					{Native: "mode", Convert: capability.Enum(thermostatModes)},
				}},
			},
		},
		{
			Capability: device.CapLock,
			Native:     "lock",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: "lock"}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdLock, Native: "lock"},
				{Command: device.CmdUnlock, Native: "unlock"},
			},
		},
		{
			Capability: device.CapShade,
			Native:     "windowShade",
			Detect:     []string{"windowShadeLevel"},
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrState, Native: "windowShade", Convert: capability.Enum(shadeStates)},
				{Attribute: device.AttrPosition, Native: "shadeLevel", Source: "windowShadeLevel", Convert: capability.Numeric()},
			},
			Commands: []capability.CommandMapping{
				{Command: device.CmdOpen, Native: "open"},
				{Command: device.CmdClose, Native: "close"},
				{Command: device.CmdStop, Native: "pause"},
				{Command: device.CmdSetPosition, Native: "setShadeLevel", Target: "windowShadeLevel", Params: []capability.ParamMapping{
					{Native: "shadeLevel", Convert: capability.Numeric()},
				}},
			},
		},
		{
			Capability: device.CapFan,
			Native:     "fanSpeedPercent",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrSpeed, Native: "percent", Convert: capability.Numeric()}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdSetSpeed, Native: "setPercent", Params: []capability.ParamMapping{
					{Native: "percent", Convert: capability.Numeric()},
				}},
			},
		},
		{
			Capability: device.CapTemperatureSensor,
			Native:     "temperatureMeasurement",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrTemperature, Native: "temperature", Convert: capability.Numeric()}},
		},
		{
			Capability: device.CapHumiditySensor,
			Native:     "relativeHumidityMeasurement",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrHumidity, Native: "humidity", Convert: capability.RoundedPercent()}},
		},
		{
			Capability: device.CapMotionSensor,
			Native:     "motionSensor",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrMotion, Native: "motion"}},
		},
		{
			Capability: device.CapContactSensor,
			Native:     "contactSensor",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrContact, Native: "contact"}},
		},
		{
			Capability: device.CapOccupancySensor,
			Native:     "presenceSensor",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrOccupancy, Native: "presence", Convert: capability.Enum(presenceStates)}},
		},
		{
			Capability: device.CapIlluminanceSensor,
			Native:     "illuminanceMeasurement",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrIlluminance, Native: "illuminance", Convert: capability.Numeric()}},
		},
		{
			Capability: device.CapBattery,
			Native:     "battery",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrLevel, Native: "battery", Convert: capability.Numeric()}},
		},
		{
			Capability: device.CapEnergyMeter,
			Native:     "powerMeter",
			Detect:     []string{"energyMeter"},
			Attributes: []capability.AttributeMapping{
				{Attribute: device.AttrPower, Native: "power", Convert: capability.Numeric()},
				{Attribute: device.AttrEnergy, Native: "energy", Source: "energyMeter", Convert: capability.Numeric()},
			},
		},
		{
			Capability: device.CapValve,
			Native:     "valve",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: "valve"}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdOpen, Native: "open"},
				{Command: device.CmdClose, Native: "close"},
			},
		},
		{
			Capability: device.CapAlarm,
			Native:     "alarm",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: "alarm"}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdOff, Native: "off"},
				{Command: device.CmdSiren, Native: "siren"},
				{Command: device.CmdStrobe, Native: "strobe"},
				{Command: device.CmdBoth, Native: "both"},
			},
		},
	}
}

// NewRegistry builds the SmartThings capability registry.
func NewRegistry() (*capability.Registry, error) {
	return capability.NewRegistry(device.BackendSmartThings, entries()...)
}
