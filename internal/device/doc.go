// Package device provides the unified device model for Gray Logic Hub.
//
// Every backend (SmartThings, Tuya, Home Assistant) is translated into the
// types in this package before any data reaches the state cache, the command
// executor or a caller. Nothing backend-specific crosses this boundary.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────────┐
//	│                        Unified Device Model                       │
//	│                                                                   │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌───────────────┐  │
//	│  │    Catalogue     │   │      Types       │   │  Validation   │  │
//	│  │ (capability.go)  │   │ (types.go,       │   │(validation.go)│  │
//	│  │                  │   │  value.go)       │   │               │  │
//	│  │ • Capabilities   │   │ • Device         │   │ • Capability  │  │
//	│  │ • Commands       │──▶│ • State          │◀──│   membership  │  │
//	│  │ • Attributes     │   │ • Command        │   │ • Arg schemas │  │
//	│  │ • Effects        │   │ • CommandResult  │   │               │  │
//	│  └──────────────────┘   └──────────────────┘   └───────────────┘  │
//	└───────────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - UniversalID: "{backend}:{localId}", unique across all backends
//   - Capability: abstract device function (switch, dimmer, lock, ...)
//   - Device: identity, metadata and the declared capability set
//   - State: "{capability}.{attribute}" keyed Values with a capture time
//   - Command: capability, command name and ordered arguments
//   - CommandResult: the single outcome of one command execution
//   - Error: structured error carrying one ErrorKind of the taxonomy
//
// # Usage
//
//	id := device.NewUniversalID(device.BackendTuya, "bf12ab")
//	cmd := device.Command{
//	    Capability: device.CapDimmer,
//	    Name:       device.CmdSetLevel,
//	    Args:       []device.Value{device.Number(75)},
//	}
//	if err := device.ValidateCommand(dev, cmd); err != nil {
//	    // device.KindOf(err) == device.KindCapabilityNotSupported, ...
//	}
//
// # Thread Safety
//
// Types in this package are values; State and Device expose Clone/DeepCopy
// for cache isolation. The capability catalogue is guarded by a read-write
// mutex so RegisterCapability may extend it at init time.
package device
