package device

import (
	"errors"
	"testing"
)

func testDevice(caps ...Capability) *Device {
	return &Device{
		ID:           NewUniversalID(BackendTuya, "bf12ab"),
		Backend:      BackendTuya,
		LocalID:      "bf12ab",
		Name:         "Hall Dimmer",
		Capabilities: caps,
		Reachable:    true,
	}
}

func TestValidateCommand(t *testing.T) {
	dimmer := testDevice(CapSwitch, CapDimmer, CapThermostat, CapColor)

	tests := []struct {
		name     string
		dev      *Device
		cmd      Command
		wantKind ErrorKind
	}{
		{
			name: "valid setLevel",
			dev:  dimmer,
			cmd:  Command{Capability: CapDimmer, Name: CmdSetLevel, Args: []Value{Number(75)}},
		},
		{
			name: "setLevel with optional duration",
			dev:  dimmer,
			cmd:  Command{Capability: CapDimmer, Name: CmdSetLevel, Args: []Value{Number(75), Number(2)}},
		},
		{
			name: "on with no args",
			dev:  dimmer,
			cmd:  Command{Capability: CapSwitch, Name: CmdOn},
		},
		{
			name: "setMode enum value",
			dev:  dimmer,
			cmd:  Command{Capability: CapThermostat, Name: CmdSetMode, Args: []Value{String("heat")}},
		},
		{
			name: "setColor two args",
			dev:  dimmer,
			cmd:  Command{Capability: CapColor, Name: CmdSetColor, Args: []Value{Number(120), Number(50)}},
		},
		{
			name:     "undeclared capability",
			dev:      testDevice(CapSwitch),
			cmd:      Command{Capability: CapDimmer, Name: CmdSetLevel, Args: []Value{Number(75)}},
			wantKind: KindCapabilityNotSupported,
		},
		{
			name:     "unknown command",
			dev:      dimmer,
			cmd:      Command{Capability: CapDimmer, Name: "explode"},
			wantKind: KindInvalidCommand,
		},
		{
			name:     "level above range",
			dev:      dimmer,
			cmd:      Command{Capability: CapDimmer, Name: CmdSetLevel, Args: []Value{Number(101)}},
			wantKind: KindInvalidCommand,
		},
		{
			name:     "level below range",
			dev:      dimmer,
			cmd:      Command{Capability: CapDimmer, Name: CmdSetLevel, Args: []Value{Number(-1)}},
			wantKind: KindInvalidCommand,
		},
		{
			name:     "missing required arg",
			dev:      dimmer,
			cmd:      Command{Capability: CapDimmer, Name: CmdSetLevel},
			wantKind: KindInvalidCommand,
		},
		{
			name:     "wrong arg type",
			dev:      dimmer,
			cmd:      Command{Capability: CapDimmer, Name: CmdSetLevel, Args: []Value{String("bright")}},
			wantKind: KindInvalidCommand,
		},
		{
			name:     "too many args",
			dev:      dimmer,
			cmd:      Command{Capability: CapSwitch, Name: CmdOn, Args: []Value{Bool(true)}},
			wantKind: KindInvalidCommand,
		},
		{
			name:     "mode outside enum",
			dev:      dimmer,
			cmd:      Command{Capability: CapThermostat, Name: CmdSetMode, Args: []Value{String("turbo")}},
			wantKind: KindInvalidCommand,
		},
		{
			name:     "nil device",
			dev:      nil,
			cmd:      Command{Capability: CapSwitch, Name: CmdOn},
			wantKind: KindDeviceNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand(tt.dev, tt.cmd)
			if tt.wantKind == "" {
				if err != nil {
					t.Errorf("ValidateCommand(%s) = %v, want nil", tt.cmd, err)
				}
				return
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("ValidateCommand(%s) kind = %q, want %q (err=%v)", tt.cmd, got, tt.wantKind, err)
			}
		})
	}
}

func TestValidateAttribute(t *testing.T) {
	dev := testDevice(CapSwitch, CapDimmer)

	tests := []struct {
		name    string
		key     string
		value   Value
		wantErr error
	}{
		{name: "valid level", key: "dimmer.level", value: Number(40)},
		{name: "valid switch", key: "switch.state", value: String("on")},
		{name: "undeclared capability", key: "lock.state", value: String("locked"), wantErr: ErrCapabilityNotSupported},
		{name: "unknown attribute", key: "dimmer.colour", value: Number(1), wantErr: ErrInvalidCommand},
		{name: "wrong type", key: "dimmer.level", value: String("high"), wantErr: ErrInvalidCommand},
		{name: "malformed key", key: "dimmer", value: Number(1), wantErr: ErrInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAttribute(dev, tt.key, tt.value)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateAttribute(%q) = %v, want nil", tt.key, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateAttribute(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestExpectedValues(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []Expectation
	}{
		{
			name: "argument effect",
			cmd:  Command{Capability: CapDimmer, Name: CmdSetLevel, Args: []Value{Number(75)}},
			want: []Expectation{{Key: "dimmer.level", Value: Number(75)}},
		},
		{
			name: "fixed effect",
			cmd:  Command{Capability: CapSwitch, Name: CmdOff},
			want: []Expectation{{Key: "switch.state", Value: String("off")}},
		},
		{
			name: "two effects",
			cmd:  Command{Capability: CapColor, Name: CmdSetColor, Args: []Value{Number(10), Number(20)}},
			want: []Expectation{
				{Key: "color.hue", Value: Number(10)},
				{Key: "color.saturation", Value: Number(20)},
			},
		},
		{
			name: "no effect",
			cmd:  Command{Capability: CapSwitch, Name: CmdToggle},
			want: []Expectation{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpectedValues(tt.cmd)
			if err != nil {
				t.Fatalf("ExpectedValues() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ExpectedValues() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].Key != tt.want[i].Key || !got[i].Value.Equal(tt.want[i].Value, 0) {
					t.Errorf("ExpectedValues()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRegisterCapability(t *testing.T) {
	if err := RegisterCapability(CapabilitySpec{Capability: CapSwitch}); !errors.Is(err, ErrCapabilityExists) {
		t.Errorf("RegisterCapability(switch) = %v, want ErrCapabilityExists", err)
	}

	custom := Capability("air-quality-sensor")
	err := RegisterCapability(CapabilitySpec{
		Capability: custom,
		Attributes: []AttributeSpec{numberAttr("pm25", "µg/m³")},
	})
	if err != nil {
		t.Fatalf("RegisterCapability() error = %v", err)
	}

	spec, ok := LookupCapability(custom)
	if !ok {
		t.Fatal("LookupCapability() did not find registered capability")
	}
	if _, ok := spec.Attribute("pm25"); !ok {
		t.Error("registered attribute missing")
	}

	all := AllCapabilities()
	if all[0] != CapSwitch {
		t.Errorf("AllCapabilities()[0] = %q, want switch", all[0])
	}
	if all[len(all)-1] != custom {
		t.Errorf("AllCapabilities() last = %q, want %q", all[len(all)-1], custom)
	}
}

func TestCatalogueCommandEffectsReferenceAttributes(t *testing.T) {
	for _, c := range AllCapabilities() {
		spec, _ := LookupCapability(c)
		for _, cmd := range spec.Commands {
			for _, eff := range cmd.Effects {
				if _, ok := spec.Attribute(eff.Attribute); !ok {
					t.Errorf("%s.%s effect references unknown attribute %q", c, cmd.Name, eff.Attribute)
				}
				if eff.Param >= len(cmd.Params) {
					t.Errorf("%s.%s effect references missing param %d", c, cmd.Name, eff.Param)
				}
			}
		}
	}
}
