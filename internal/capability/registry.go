package capability

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// ErrInvalidTable is returned when a mapping table violates the registry rules.
var ErrInvalidTable = errors.New("capability: invalid mapping table")

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AttributeMapping binds one unified attribute to a backend-native attribute.
type AttributeMapping struct {
	Attribute string    // unified attribute name
	Native    string    // backend attribute name
	Source    string    // backend capability reporting the attribute; defaults to Entry.Native
	Convert   Converter // nil means Identity
}

// ParamMapping binds one positional unified argument to a named backend argument.
type ParamMapping struct {
	Native  string
	Convert Converter // nil means Identity
}

// CommandMapping binds one unified command to a backend command.
type CommandMapping struct {
	Command string // unified command name
	Native  string // backend command name
	Target  string // backend capability override; defaults to Entry.Native
	Params  []ParamMapping
	Fixed   []Arg // appended after converted params
}

// Entry is the mapping of one unified capability for one backend.
type Entry struct {
	Capability device.Capability
	Native     string   // backend capability name; the one-to-one mapping
	Detect     []string // further backend names that imply the capability when listing devices
	Attributes []AttributeMapping
	Commands   []CommandMapping
}

// NativeValue is one backend-native attribute value as reported by a backend.
// Capability may be empty when the backend's attribute names are globally unique.
type NativeValue struct {
	Capability string
	Attribute  string
	Value      any
}

// Arg is one named backend command argument.
type Arg struct {
	Name  string
	Value any
}

// BackendCommand is a unified command translated into the backend's vocabulary.
type BackendCommand struct {
	Capability string
	Command    string
	Args       []Arg
}

type attrRef struct {
	entry *Entry
	attr  *AttributeMapping
}

type sourceKey struct {
	capability string
	attribute  string
}

// Registry is one backend's bidirectional capability table.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	backend  device.Backend
	entries  []*Entry
	byCap    map[device.Capability]*Entry
	byNative map[string]*Entry
	byDetect map[string]*Entry
	bySource map[sourceKey]attrRef
	byAttr   map[string]attrRef // attribute-only index; ambiguous names excluded
	logger   Logger
}

// NewRegistry validates the table and builds a Registry.
//
// Rules enforced:
//   - each unified capability appears once and exists in the catalogue
//   - native and detection names are unique, so the capability mapping is
//     a bijection between Native names and unified capabilities
//   - every attribute and command exists in the capability's contract
func NewRegistry(backend device.Backend, entries ...Entry) (*Registry, error) {
	r := &Registry{
		backend:  backend,
		byCap:    make(map[device.Capability]*Entry),
		byNative: make(map[string]*Entry),
		byDetect: make(map[string]*Entry),
		bySource: make(map[sourceKey]attrRef),
		byAttr:   make(map[string]attrRef),
		logger:   noopLogger{},
	}

	ambiguous := make(map[string]bool)
	var errs []error
	for i := range entries {
		e := entries[i]
		spec, ok := device.LookupCapability(e.Capability)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s: unknown capability %q", ErrInvalidTable, backend, e.Capability))
			continue
		}
		if _, dup := r.byCap[e.Capability]; dup {
			errs = append(errs, fmt.Errorf("%w: %s: capability %q mapped twice", ErrInvalidTable, backend, e.Capability))
			continue
		}
		if e.Native == "" {
			errs = append(errs, fmt.Errorf("%w: %s: capability %q has no native name", ErrInvalidTable, backend, e.Capability))
			continue
		}

		entry := &e
		entry.Attributes = slices.Clone(e.Attributes)
		entry.Commands = slices.Clone(e.Commands)
		for j := range entry.Commands {
			entry.Commands[j].Params = slices.Clone(entry.Commands[j].Params)
		}
		for k, n := range append([]string{e.Native}, e.Detect...) {
			if other, dup := r.lookupName(n); dup {
				errs = append(errs, fmt.Errorf("%w: %s: native %q used by %q and %q",
					ErrInvalidTable, backend, n, other.Capability, e.Capability))
				continue
			}
			if k == 0 {
				r.byNative[n] = entry
			} else {
				r.byDetect[n] = entry
			}
		}

		for j := range entry.Attributes {
			am := &entry.Attributes[j]
			if _, ok := spec.Attribute(am.Attribute); !ok {
				errs = append(errs, fmt.Errorf("%w: %s: %s has no attribute %q", ErrInvalidTable, backend, e.Capability, am.Attribute))
			}
			if am.Convert == nil {
				am.Convert = Identity()
			}
			if am.Source == "" {
				am.Source = e.Native
			}
			key := sourceKey{capability: am.Source, attribute: am.Native}
			if _, dup := r.bySource[key]; dup {
				errs = append(errs, fmt.Errorf("%w: %s: %s.%s mapped twice", ErrInvalidTable, backend, am.Source, am.Native))
			}
			r.bySource[key] = attrRef{entry: entry, attr: am}
			if _, seen := r.byAttr[am.Native]; seen || ambiguous[am.Native] {
				delete(r.byAttr, am.Native)
				ambiguous[am.Native] = true
				continue
			}
			r.byAttr[am.Native] = attrRef{entry: entry, attr: am}
		}

		for j := range entry.Commands {
			cm := &entry.Commands[j]
			if _, ok := spec.Command(cm.Command); !ok {
				errs = append(errs, fmt.Errorf("%w: %s: %s has no command %q", ErrInvalidTable, backend, e.Capability, cm.Command))
			}
			for k := range cm.Params {
				if cm.Params[k].Convert == nil {
					cm.Params[k].Convert = Identity()
				}
			}
		}

		r.byCap[e.Capability] = entry
		r.entries = append(r.entries, entry)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Backend returns the backend this table belongs to.
func (r *Registry) Backend() device.Backend {
	return r.backend
}

// Supported returns every unified capability in the table, in table order.
func (r *Registry) Supported() []device.Capability {
	out := make([]device.Capability, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Capability
	}
	return out
}

// MapFromBackend maps a native capability name to a unified capability.
// Detection-only names do not map, so MapToBackend(MapFromBackend(n)) == n
// for every name that does.
func (r *Registry) MapFromBackend(native string) (device.Capability, bool) {
	e, ok := r.byNative[native]
	if !ok {
		return "", false
	}
	return e.Capability, true
}

// MapToBackend maps a unified capability to its native name.
func (r *Registry) MapToBackend(c device.Capability) (string, bool) {
	e, ok := r.byCap[c]
	if !ok {
		return "", false
	}
	return e.Native, true
}

// Capabilities maps a backend's native capability list to the unified set,
// honouring detection names. Unknown natives are logged at debug level and
// excluded. Order follows the first occurrence; duplicates are removed.
func (r *Registry) Capabilities(natives []string) []device.Capability {
	out := make([]device.Capability, 0, len(natives))
	for _, n := range natives {
		e, ok := r.lookupName(n)
		if !ok {
			r.logger.Debug("unmapped backend capability", "backend", r.backend, "native", n)
			continue
		}
		if !slices.Contains(out, e.Capability) {
			out = append(out, e.Capability)
		}
	}
	return out
}

func (r *Registry) lookupName(n string) (*Entry, bool) {
	if e, ok := r.byNative[n]; ok {
		return e, true
	}
	e, ok := r.byDetect[n]
	return e, ok
}

// TranslateState converts native values into a unified State. Values that
// are unmapped, fail conversion or belong to an undeclared capability are
// dropped.
func (r *Registry) TranslateState(id device.UniversalID, declared []device.Capability,
	values []NativeValue, capturedAt time.Time) device.State {
	state := device.NewState(id, capturedAt)
	for _, nv := range values {
		ref, ok := r.resolve(nv)
		if !ok || !slices.Contains(declared, ref.entry.Capability) {
			continue
		}
		v, err := ref.attr.Convert.ToUnified(nv.Value)
		if err != nil {
			r.logger.Debug("dropping unconvertible value",
				"backend", r.backend, "device", id, "native", nv.Attribute, "error", err)
			continue
		}
		state.Set(ref.entry.Capability, ref.attr.Attribute, v)
	}
	return state
}

// ToNativeValue converts one unified attribute value back into the backend
// representation. Used by tests and by adapters emulating state locally.
func (r *Registry) ToNativeValue(c device.Capability, attribute string, v device.Value) (NativeValue, error) {
	e, ok := r.byCap[c]
	if !ok {
		return NativeValue{}, device.Errorf(device.KindCapabilityNotSupported, "map to backend", "",
			"%s does not map %s", r.backend, c)
	}
	for i := range e.Attributes {
		am := &e.Attributes[i]
		if am.Attribute != attribute {
			continue
		}
		n, err := am.Convert.ToNative(v)
		if err != nil {
			return NativeValue{}, device.NewError(device.KindInvalidCommand, "map to backend", "", err)
		}
		return NativeValue{Capability: am.Source, Attribute: am.Native, Value: n}, nil
	}
	return NativeValue{}, device.Errorf(device.KindInvalidCommand, "map to backend", "",
		"%s does not map %s.%s", r.backend, c, attribute)
}

// ToBackendCommand translates a unified command. A missing mapping or an
// unconvertible argument yields an InvalidCommand error.
func (r *Registry) ToBackendCommand(cmd device.Command) (BackendCommand, error) {
	e, ok := r.byCap[cmd.Capability]
	if !ok {
		return BackendCommand{}, device.Errorf(device.KindInvalidCommand, "map command", "",
			"%s does not map capability %s", r.backend, cmd.Capability)
	}

	var cm *CommandMapping
	for i := range e.Commands {
		if e.Commands[i].Command == cmd.Name {
			cm = &e.Commands[i]
			break
		}
	}
	if cm == nil {
		return BackendCommand{}, device.Errorf(device.KindInvalidCommand, "map command", "",
			"%s does not map command %s", r.backend, cmd)
	}

	target := cm.Target
	if target == "" {
		target = e.Native
	}
	bc := BackendCommand{Capability: target, Command: cm.Native}
	for i, pm := range cm.Params {
		if i >= len(cmd.Args) {
			break
		}
		n, err := pm.Convert.ToNative(cmd.Args[i])
		if err != nil {
			return BackendCommand{}, device.NewError(device.KindInvalidCommand, "map command", "", err)
		}
		bc.Args = append(bc.Args, Arg{Name: pm.Native, Value: n})
	}
	bc.Args = append(bc.Args, cm.Fixed...)
	return bc, nil
}

func (r *Registry) resolve(nv NativeValue) (attrRef, bool) {
	if nv.Capability == "" {
		ref, ok := r.byAttr[nv.Attribute]
		return ref, ok
	}
	ref, ok := r.bySource[sourceKey{capability: nv.Capability, attribute: nv.Attribute}]
	return ref, ok
}
