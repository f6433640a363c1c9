package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const draft2020 = "https://json-schema.org/draft/2020-12/schema"

// argSchemas caches compiled argument schemas keyed by "capability.command".
var argSchemas = struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}{cache: make(map[string]*jsonschema.Schema)}

// ValidateCommand checks a command against a device without touching the network.
//
// Checks, in order:
//   - the device declares the command's capability (CapabilityNotSupported)
//   - the capability defines the command (InvalidCommand)
//   - the arguments satisfy the command's parameter schema (InvalidCommand)
func ValidateCommand(dev *Device, cmd Command) error {
	if dev == nil {
		return NewError(KindDeviceNotFound, "validate", "", nil)
	}
	if !dev.HasCapability(cmd.Capability) {
		return Errorf(KindCapabilityNotSupported, "validate", dev.ID,
			"device does not declare %s", cmd.Capability)
	}

	spec, ok := LookupCapability(cmd.Capability)
	if !ok {
		return Errorf(KindCapabilityNotSupported, "validate", dev.ID,
			"unknown capability %s", cmd.Capability)
	}
	cs, ok := spec.Command(cmd.Name)
	if !ok {
		return Errorf(KindInvalidCommand, "validate", dev.ID,
			"capability %s has no command %q", cmd.Capability, cmd.Name)
	}

	if err := validateArgs(cmd, cs); err != nil {
		return NewError(KindInvalidCommand, "validate", dev.ID, err)
	}
	return nil
}

// ValidateAttribute checks a unified state key and value against a device's
// declared capabilities and the attribute's value domain.
func ValidateAttribute(dev *Device, key string, v Value) error {
	c, attr, ok := strings.Cut(key, ".")
	if !ok {
		return Errorf(KindInvalidCommand, "validate attribute", dev.ID, "malformed key %q", key)
	}
	if !dev.HasCapability(Capability(c)) {
		return Errorf(KindCapabilityNotSupported, "validate attribute", dev.ID,
			"device does not declare %s", c)
	}
	spec, ok := LookupCapability(Capability(c))
	if !ok {
		return Errorf(KindCapabilityNotSupported, "validate attribute", dev.ID, "unknown capability %s", c)
	}
	as, ok := spec.Attribute(attr)
	if !ok {
		return Errorf(KindInvalidCommand, "validate attribute", dev.ID, "unknown attribute %q", key)
	}
	if v.Type() != as.Type {
		return Errorf(KindInvalidCommand, "validate attribute", dev.ID,
			"%s expects %s, got %s", key, as.Type, v.Type())
	}
	return nil
}

func validateArgs(cmd Command, cs CommandSpec) error {
	schema, err := compileArgSchema(cmd.Capability, cs)
	if err != nil {
		return err
	}

	values := cmd.Args
	if values == nil {
		values = []Value{}
	}
	args, err := toInstance(values)
	if err != nil {
		return err
	}
	if err := schema.Validate(args); err != nil {
		return fmt.Errorf("arguments for %s: %w", cmd, err)
	}
	return nil
}

func compileArgSchema(c Capability, cs CommandSpec) (*jsonschema.Schema, error) {
	key := AttributeKey(c, cs.Name)

	argSchemas.mu.RLock()
	if s, ok := argSchemas.cache[key]; ok {
		argSchemas.mu.RUnlock()
		return s, nil
	}
	argSchemas.mu.RUnlock()

	argSchemas.mu.Lock()
	defer argSchemas.mu.Unlock()

	// Double-check after acquiring write lock
	if s, ok := argSchemas.cache[key]; ok {
		return s, nil
	}

	doc, err := toInstance(ArgSchema(cs))
	if err != nil {
		return nil, fmt.Errorf("encoding schema %s: %w", key, err)
	}

	url := key + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("adding schema %s: %w", key, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", key, err)
	}

	argSchemas.cache[key] = compiled
	return compiled, nil
}

// toInstance round-trips v through JSON so numbers reach the validator as json.Number.
func toInstance(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}

// ArgSchema renders a command's parameters as a JSON Schema for a positional array.
func ArgSchema(cs CommandSpec) map[string]any {
	items := make([]any, 0, len(cs.Params))
	required := 0
	for i, p := range cs.Params {
		items = append(items, paramSchema(p))
		if !p.Optional {
			required = i + 1
		}
	}

	schema := map[string]any{
		"$schema":  draft2020,
		"type":     "array",
		"items":    false,
		"minItems": required,
		"maxItems": len(cs.Params),
	}
	// prefixItems must be non-empty
	if len(items) > 0 {
		schema["prefixItems"] = items
	}
	return schema
}

func paramSchema(p ParamSpec) map[string]any {
	s := map[string]any{}
	switch p.Type {
	case TypeNumber:
		s["type"] = "number"
		if p.Bounded {
			s["minimum"] = p.Min
			s["maximum"] = p.Max
		}
	case TypeBool:
		s["type"] = "boolean"
	default:
		s["type"] = "string"
		if len(p.Enum) > 0 {
			enum := make([]any, len(p.Enum))
			for i, e := range p.Enum {
				enum[i] = e
			}
			s["enum"] = enum
		}
	}
	return s
}
