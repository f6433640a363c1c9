package capability

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// ErrConversion is returned when a native value cannot be converted.
var ErrConversion = errors.New("capability: conversion failed")

// Converter translates one attribute or argument between its backend-native
// representation and the unified one. Implementations must be inverses of
// each other within one unit of the coarser scale.
type Converter interface {
	ToUnified(native any) (device.Value, error)
	ToNative(v device.Value) (any, error)
}

// Identity passes values through, preserving their type.
func Identity() Converter { return identity{} }

type identity struct{}

func (identity) ToUnified(native any) (device.Value, error) {
	switch v := native.(type) {
	case string:
		return device.String(v), nil
	case bool:
		return device.Bool(v), nil
	}
	if n, ok := toFloat(native); ok {
		return device.Number(n), nil
	}
	return device.Value{}, fmt.Errorf("%w: unsupported native %T", ErrConversion, native)
}

func (identity) ToNative(v device.Value) (any, error) {
	if v.IsZero() {
		return nil, fmt.Errorf("%w: empty value", ErrConversion)
	}
	return v.Interface(), nil
}

// Numeric coerces native numbers and numeric strings to a number.
func Numeric() Converter { return Linear(0, 1, 0, 1) }

// Linear maps the native range [nativeMin, nativeMax] onto
// [unifiedMin, unifiedMax]. Unified values are rounded to integers when both
// unified bounds are integral; native values are always rounded.
func Linear(nativeMin, nativeMax, unifiedMin, unifiedMax float64) Converter {
	return linear{nMin: nativeMin, nMax: nativeMax, uMin: unifiedMin, uMax: unifiedMax}
}

type linear struct {
	nMin, nMax, uMin, uMax float64
}

func (l linear) identityScale() bool {
	return l.nMin == l.uMin && l.nMax == l.uMax
}

func (l linear) ToUnified(native any) (device.Value, error) {
	n, ok := toFloat(native)
	if !ok {
		return device.Value{}, fmt.Errorf("%w: %v is not numeric", ErrConversion, native)
	}
	if l.identityScale() {
		return device.Number(n), nil
	}
	u := l.uMin + (n-l.nMin)*(l.uMax-l.uMin)/(l.nMax-l.nMin)
	if l.integralUnified() {
		u = math.Round(u)
	}
	return device.Number(u), nil
}

func (l linear) integralUnified() bool {
	return l.uMin == math.Trunc(l.uMin) && l.uMax == math.Trunc(l.uMax)
}

func (l linear) ToNative(v device.Value) (any, error) {
	u, ok := v.Num()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrConversion, v)
	}
	if l.identityScale() {
		return u, nil
	}
	n := l.nMin + (u-l.uMin)*(l.nMax-l.nMin)/(l.uMax-l.uMin)
	return math.Round(n), nil
}

// Divide converts fixed-point natives, such as tenths of a degree, by divisor.
func Divide(divisor float64) Converter { return divide{d: divisor} }

type divide struct{ d float64 }

func (d divide) ToUnified(native any) (device.Value, error) {
	n, ok := toFloat(native)
	if !ok {
		return device.Value{}, fmt.Errorf("%w: %v is not numeric", ErrConversion, native)
	}
	return device.Number(n / d.d), nil
}

func (d divide) ToNative(v device.Value) (any, error) {
	u, ok := v.Num()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrConversion, v)
	}
	return math.Round(u * d.d), nil
}

// RoundedPercent converts a fractional 0.00-100.00 native to an integer percent.
func RoundedPercent() Converter { return roundedPercent{} }

type roundedPercent struct{}

func (roundedPercent) ToUnified(native any) (device.Value, error) {
	n, ok := toFloat(native)
	if !ok {
		return device.Value{}, fmt.Errorf("%w: %v is not numeric", ErrConversion, native)
	}
	return device.Number(math.Round(math.Max(0, math.Min(100, n)))), nil
}

func (roundedPercent) ToNative(v device.Value) (any, error) {
	u, ok := v.Num()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrConversion, v)
	}
	return u, nil
}

// Enum maps native strings to unified enum values. The mapping must be injective.
func Enum(nativeToUnified map[string]string) Converter {
	rev := make(map[string]string, len(nativeToUnified))
	for n, u := range nativeToUnified {
		rev[u] = n
	}
	return enum{fwd: nativeToUnified, rev: rev}
}

type enum struct {
	fwd map[string]string
	rev map[string]string
}

func (e enum) ToUnified(native any) (device.Value, error) {
	s, ok := native.(string)
	if !ok {
		return device.Value{}, fmt.Errorf("%w: %v is not a string", ErrConversion, native)
	}
	u, ok := e.fwd[s]
	if !ok {
		return device.Value{}, fmt.Errorf("%w: unknown native value %q", ErrConversion, s)
	}
	return device.String(u), nil
}

func (e enum) ToNative(v device.Value) (any, error) {
	s, ok := v.Str()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a string", ErrConversion, v)
	}
	n, ok := e.rev[s]
	if !ok {
		return nil, fmt.Errorf("%w: no native value for %q", ErrConversion, s)
	}
	return n, nil
}

// BoolEnum maps a native boolean onto a two-valued unified enum.
func BoolEnum(whenTrue, whenFalse string) Converter {
	return boolEnum{t: whenTrue, f: whenFalse}
}

type boolEnum struct{ t, f string }

func (b boolEnum) ToUnified(native any) (device.Value, error) {
	v, ok := native.(bool)
	if !ok {
		return device.Value{}, fmt.Errorf("%w: %v is not a boolean", ErrConversion, native)
	}
	if v {
		return device.String(b.t), nil
	}
	return device.String(b.f), nil
}

func (b boolEnum) ToNative(v device.Value) (any, error) {
	s, _ := v.Str()
	switch s {
	case b.t:
		return true, nil
	case b.f:
		return false, nil
	default:
		return nil, fmt.Errorf("%w: %s is neither %q nor %q", ErrConversion, v, b.t, b.f)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
