package device

import (
	"fmt"
	"sync"
)

// Capability is an abstract, vendor-neutral device function.
//
// Each capability has a CapabilitySpec in the catalogue that fixes its
// permitted commands and readable attributes. New capabilities are added with
// RegisterCapability; consumers that ignore a capability are unaffected.
type Capability string

// Capability constants.
const (
	CapSwitch            Capability = "switch"
	CapDimmer            Capability = "dimmer"
	CapColor             Capability = "color"
	CapColorTemperature  Capability = "color-temperature"
	CapThermostat        Capability = "thermostat"
	CapLock              Capability = "lock"
	CapShade             Capability = "shade"
	CapFan               Capability = "fan"
	CapTemperatureSensor Capability = "temperature-sensor"
	CapHumiditySensor    Capability = "humidity-sensor"
	CapMotionSensor      Capability = "motion-sensor"
	CapContactSensor     Capability = "contact-sensor"
	CapOccupancySensor   Capability = "occupancy-sensor"
	CapIlluminanceSensor Capability = "illuminance-sensor"
	CapBattery           Capability = "battery"
	CapEnergyMeter       Capability = "energy-meter"
	CapValve             Capability = "valve"
	CapAlarm             Capability = "alarm"
)

// Command names.
const (
	CmdOn                  = "on"
	CmdOff                 = "off"
	CmdToggle              = "toggle"
	CmdSetLevel            = "setLevel"
	CmdSetColor            = "setColor"
	CmdSetHue              = "setHue"
	CmdSetSaturation       = "setSaturation"
	CmdSetColorTemperature = "setColorTemperature"
	CmdSetHeatingSetpoint  = "setHeatingSetpoint"
	CmdSetCoolingSetpoint  = "setCoolingSetpoint"
	CmdSetMode             = "setMode"
	CmdLock                = "lock"
	CmdUnlock              = "unlock"
	CmdOpen                = "open"
	CmdClose               = "close"
	CmdStop                = "stop"
	CmdSetPosition         = "setPosition"
	CmdSetSpeed            = "setSpeed"
	CmdSiren               = "siren"
	CmdStrobe              = "strobe"
	CmdBoth                = "both"
)

// Attribute names.
const (
	AttrState           = "state"
	AttrLevel           = "level"
	AttrHue             = "hue"
	AttrSaturation      = "saturation"
	AttrKelvin          = "kelvin"
	AttrHeatingSetpoint = "heatingSetpoint"
	AttrCoolingSetpoint = "coolingSetpoint"
	AttrMode            = "mode"
	AttrOperatingState  = "operatingState"
	AttrPosition        = "position"
	AttrSpeed           = "speed"
	AttrTemperature     = "temperature"
	AttrHumidity        = "humidity"
	AttrMotion          = "motion"
	AttrContact         = "contact"
	AttrOccupancy       = "occupancy"
	AttrIlluminance     = "illuminance"
	AttrPower           = "power"
	AttrEnergy          = "energy"
)

// AttributeSpec documents one readable attribute and its value domain.
type AttributeSpec struct {
	Name    string
	Type    ValueType
	Unit    string
	Min     float64
	Max     float64
	Bounded bool     // Min/Max apply
	Enum    []string // permitted values for string attributes
}

// Quantitative reports whether the attribute is numeric.
func (a AttributeSpec) Quantitative() bool {
	return a.Type == TypeNumber
}

// ParamSpec documents one positional command argument.
type ParamSpec struct {
	Name     string
	Type     ValueType
	Unit     string
	Min      float64
	Max      float64
	Bounded  bool
	Enum     []string
	Optional bool // trailing optional parameter
}

// Effect declares the attribute a command is expected to change.
// When Param >= 0 the expected value is that argument; otherwise it is Value.
type Effect struct {
	Attribute string
	Param     int
	Value     Value
}

// CommandSpec documents one permitted command.
type CommandSpec struct {
	Name    string
	Params  []ParamSpec
	Effects []Effect
}

// CapabilitySpec is the full contract of one capability.
type CapabilitySpec struct {
	Capability  Capability
	Description string
	Attributes  []AttributeSpec
	Commands    []CommandSpec
}

// Attribute finds an attribute by name.
func (s CapabilitySpec) Attribute(name string) (AttributeSpec, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeSpec{}, false
}

// Command finds a command by name.
func (s CapabilitySpec) Command(name string) (CommandSpec, bool) {
	for _, c := range s.Commands {
		if c.Name == name {
			return c, true
		}
	}
	return CommandSpec{}, false
}

// AttributeKey builds the "{capability}.{attribute}" state key.
func AttributeKey(c Capability, attribute string) string {
	return string(c) + "." + attribute
}

var (
	catalogueMu    sync.RWMutex
	catalogue      = make(map[Capability]CapabilitySpec)
	catalogueOrder []Capability
)

func init() {
	for _, spec := range builtinCapabilities() {
		if err := RegisterCapability(spec); err != nil {
			panic(err)
		}
	}
}

// RegisterCapability adds a capability to the catalogue.
// Returns ErrCapabilityExists if the capability is already registered.
func RegisterCapability(spec CapabilitySpec) error {
	if spec.Capability == "" {
		return fmt.Errorf("%w: empty capability", ErrInvalidCommand)
	}

	catalogueMu.Lock()
	defer catalogueMu.Unlock()

	if _, exists := catalogue[spec.Capability]; exists {
		return fmt.Errorf("%w: %s", ErrCapabilityExists, spec.Capability)
	}
	catalogue[spec.Capability] = spec
	catalogueOrder = append(catalogueOrder, spec.Capability)
	return nil
}

// LookupCapability returns the spec for a capability.
func LookupCapability(c Capability) (CapabilitySpec, bool) {
	catalogueMu.RLock()
	defer catalogueMu.RUnlock()
	spec, ok := catalogue[c]
	return spec, ok
}

// AllCapabilities returns every registered capability in registration order.
func AllCapabilities() []Capability {
	catalogueMu.RLock()
	defer catalogueMu.RUnlock()
	out := make([]Capability, len(catalogueOrder))
	copy(out, catalogueOrder)
	return out
}

// Expectation is one attribute value a command is expected to produce.
type Expectation struct {
	Key   string
	Value Value
}

// ExpectedValues derives the post-command expectations from the command's effects.
// Commands without effects return an empty slice.
func ExpectedValues(cmd Command) ([]Expectation, error) {
	spec, ok := LookupCapability(cmd.Capability)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCapabilityNotSupported, cmd.Capability)
	}
	cs, ok := spec.Command(cmd.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrInvalidCommand, cmd.Capability, cmd.Name)
	}

	out := make([]Expectation, 0, len(cs.Effects))
	for _, eff := range cs.Effects {
		v := eff.Value
		if eff.Param >= 0 {
			if eff.Param >= len(cmd.Args) {
				continue
			}
			v = cmd.Args[eff.Param]
		}
		out = append(out, Expectation{Key: AttributeKey(cmd.Capability, eff.Attribute), Value: v})
	}
	return out, nil
}

// Catalogue construction helpers.

func percentAttr(name string) AttributeSpec {
	return AttributeSpec{Name: name, Type: TypeNumber, Unit: "%", Min: 0, Max: 100, Bounded: true}
}

func numberAttr(name, unit string) AttributeSpec {
	return AttributeSpec{Name: name, Type: TypeNumber, Unit: unit}
}

func enumAttr(name string, values ...string) AttributeSpec {
	return AttributeSpec{Name: name, Type: TypeString, Enum: values}
}

func boundedParam(name, unit string, lo, hi float64) ParamSpec {
	return ParamSpec{Name: name, Type: TypeNumber, Unit: unit, Min: lo, Max: hi, Bounded: true}
}

func fixed(attr, value string) Effect {
	return Effect{Attribute: attr, Param: -1, Value: String(value)}
}

func fromArg(attr string, index int) Effect {
	return Effect{Attribute: attr, Param: index}
}

func builtinCapabilities() []CapabilitySpec {
	transition := ParamSpec{Name: "duration", Type: TypeNumber, Unit: "s", Min: 0, Max: 3600, Bounded: true, Optional: true}

	return []CapabilitySpec{
		{
			Capability:  CapSwitch,
			Description: "Binary on/off control",
			Attributes:  []AttributeSpec{enumAttr(AttrState, "on", "off")},
			Commands: []CommandSpec{
				{Name: CmdOn, Effects: []Effect{fixed(AttrState, "on")}},
				{Name: CmdOff, Effects: []Effect{fixed(AttrState, "off")}},
				{Name: CmdToggle},
			},
		},
		{
			Capability:  CapDimmer,
			Description: "Brightness level",
			Attributes:  []AttributeSpec{percentAttr(AttrLevel)},
			Commands: []CommandSpec{
				{
					Name:    CmdSetLevel,
					Params:  []ParamSpec{boundedParam("level", "%", 0, 100), transition},
					Effects: []Effect{fromArg(AttrLevel, 0)},
				},
			},
		},
		{
			Capability:  CapColor,
			Description: "Hue and saturation",
			Attributes: []AttributeSpec{
				{Name: AttrHue, Type: TypeNumber, Unit: "°", Min: 0, Max: 360, Bounded: true},
				percentAttr(AttrSaturation),
			},
			Commands: []CommandSpec{
				{
					Name:    CmdSetColor,
					Params:  []ParamSpec{boundedParam("hue", "°", 0, 360), boundedParam("saturation", "%", 0, 100)},
					Effects: []Effect{fromArg(AttrHue, 0), fromArg(AttrSaturation, 1)},
				},
				{Name: CmdSetHue, Params: []ParamSpec{boundedParam("hue", "°", 0, 360)}, Effects: []Effect{fromArg(AttrHue, 0)}},
				{Name: CmdSetSaturation, Params: []ParamSpec{boundedParam("saturation", "%", 0, 100)}, Effects: []Effect{fromArg(AttrSaturation, 0)}},
			},
		},
		{
			Capability:  CapColorTemperature,
			Description: "White colour temperature",
			Attributes:  []AttributeSpec{{Name: AttrKelvin, Type: TypeNumber, Unit: "K", Min: 1500, Max: 9000, Bounded: true}},
			Commands: []CommandSpec{
				{
					Name:    CmdSetColorTemperature,
					Params:  []ParamSpec{boundedParam("kelvin", "K", 1500, 9000)},
					Effects: []Effect{fromArg(AttrKelvin, 0)},
				},
			},
		},
		{
			Capability:  CapThermostat,
			Description: "Heating and cooling setpoints and mode",
			Attributes: []AttributeSpec{
				numberAttr(AttrHeatingSetpoint, "°C"),
				numberAttr(AttrCoolingSetpoint, "°C"),
				enumAttr(AttrMode, "off", "heat", "cool", "auto"),
				enumAttr(AttrOperatingState, "idle", "heating", "cooling"),
			},
			Commands: []CommandSpec{
				{Name: CmdSetHeatingSetpoint, Params: []ParamSpec{boundedParam("setpoint", "°C", 5, 35)}, Effects: []Effect{fromArg(AttrHeatingSetpoint, 0)}},
				{Name: CmdSetCoolingSetpoint, Params: []ParamSpec{boundedParam("setpoint", "°C", 10, 35)}, Effects: []Effect{fromArg(AttrCoolingSetpoint, 0)}},
				{
					Name:    CmdSetMode,
					Params:  []ParamSpec{{Name: "mode", Type: TypeString, Enum: []string{"off", "heat", "cool", "auto"}}},
					Effects: []Effect{fromArg(AttrMode, 0)},
				},
			},
		},
		{
			Capability:  CapLock,
			Description: "Door lock",
			Attributes:  []AttributeSpec{enumAttr(AttrState, "locked", "unlocked", "unknown")},
			Commands: []CommandSpec{
				{Name: CmdLock, Effects: []Effect{fixed(AttrState, "locked")}},
				{Name: CmdUnlock, Effects: []Effect{fixed(AttrState, "unlocked")}},
			},
		},
		{
			Capability:  CapShade,
			Description: "Blind, shade or cover position",
			Attributes: []AttributeSpec{
				percentAttr(AttrPosition),
				enumAttr(AttrState, "open", "closed", "opening", "closing", "partially_open"),
			},
			Commands: []CommandSpec{
				{Name: CmdOpen, Effects: []Effect{{Attribute: AttrPosition, Param: -1, Value: Number(100)}}},
				{Name: CmdClose, Effects: []Effect{{Attribute: AttrPosition, Param: -1, Value: Number(0)}}},
				{Name: CmdStop},
				{Name: CmdSetPosition, Params: []ParamSpec{boundedParam("position", "%", 0, 100)}, Effects: []Effect{fromArg(AttrPosition, 0)}},
			},
		},
		{
			Capability:  CapFan,
			Description: "Fan speed",
			Attributes:  []AttributeSpec{percentAttr(AttrSpeed)},
			Commands: []CommandSpec{
				{Name: CmdSetSpeed, Params: []ParamSpec{boundedParam("speed", "%", 0, 100)}, Effects: []Effect{fromArg(AttrSpeed, 0)}},
			},
		},
		{Capability: CapTemperatureSensor, Description: "Ambient temperature", Attributes: []AttributeSpec{numberAttr(AttrTemperature, "°C")}},
		{Capability: CapHumiditySensor, Description: "Relative humidity", Attributes: []AttributeSpec{percentAttr(AttrHumidity)}},
		{Capability: CapMotionSensor, Description: "Motion detection", Attributes: []AttributeSpec{enumAttr(AttrMotion, "active", "inactive")}},
		{Capability: CapContactSensor, Description: "Door/window contact", Attributes: []AttributeSpec{enumAttr(AttrContact, "open", "closed")}},
		{Capability: CapOccupancySensor, Description: "Presence", Attributes: []AttributeSpec{enumAttr(AttrOccupancy, "occupied", "unoccupied")}},
		{
			Capability:  CapIlluminanceSensor,
			Description: "Ambient light",
			Attributes:  []AttributeSpec{{Name: AttrIlluminance, Type: TypeNumber, Unit: "lx", Min: 0, Max: 200000, Bounded: true}},
		},
		{Capability: CapBattery, Description: "Battery charge", Attributes: []AttributeSpec{percentAttr(AttrLevel)}},
		{
			Capability:  CapEnergyMeter,
			Description: "Power and energy",
			Attributes:  []AttributeSpec{numberAttr(AttrPower, "W"), numberAttr(AttrEnergy, "kWh")},
		},
		{
			Capability:  CapValve,
			Description: "Water or gas valve",
			Attributes:  []AttributeSpec{enumAttr(AttrState, "open", "closed")},
			Commands: []CommandSpec{
				{Name: CmdOpen, Effects: []Effect{fixed(AttrState, "open")}},
				{Name: CmdClose, Effects: []Effect{fixed(AttrState, "closed")}},
			},
		},
		{
			Capability:  CapAlarm,
			Description: "Siren and strobe",
			Attributes:  []AttributeSpec{enumAttr(AttrState, "off", "siren", "strobe", "both")},
			Commands: []CommandSpec{
				{Name: CmdOff, Effects: []Effect{fixed(AttrState, "off")}},
				{Name: CmdSiren, Effects: []Effect{fixed(AttrState, "siren")}},
				{Name: CmdStrobe, Effects: []Effect{fixed(AttrState, "strobe")}},
				{Name: CmdBoth, Effects: []Effect{fixed(AttrState, "both")}},
			},
		},
	}
}
