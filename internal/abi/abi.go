// Package abi describes the runtime ABI surface the Emit stage targets:
// the fixed set of entry points a generated translation unit calls into a
// runtime library for (allocation, monitor, boxing, dispatch, static-init
// guards), plus version selection for that surface. The runtime library
// itself — including native-call bridging — is out of this module's
// scope (spec.md Non-goals); only the symbol names and version contract
// it exposes matter here. This adapts the teacher's pkg/native boxing
// helpers (NativeInteger, NativeHashMap, ...) from live Go-side
// implementations into the named ABI surface a generated translation unit
// links against instead of interprets.
package abi

import (
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/bytecast/jtc/internal/model"
)

// Symbols is the full named ABI surface for one target ABI version.
type Symbols struct {
	Version string

	// Allocation and object lifecycle.
	Alloc          string // allocate an instance, given a class-id
	AllocArray     string // allocate an array, given an element class-id/primitive tag and length
	MonitorEnter   string
	MonitorExit    string

	// Boxing, one symbol per primitive kind the teacher's pkg/native
	// modeled as a distinct Go type (NativeInteger, NativeHashMap's key
	// normalization, ...).
	BoxBool, UnboxBool     string
	BoxByte, UnboxByte     string
	BoxChar, UnboxChar     string
	BoxShort, UnboxShort   string
	BoxInt, UnboxInt       string
	BoxLong, UnboxLong     string
	BoxFloat, UnboxFloat   string
	BoxDouble, UnboxDouble string

	// Dispatch and type checks.
	InstanceOf        string // (object, class-id) -> bool
	Checkcast         string // (object, class-id) -> object, faults on mismatch
	InterfaceDispatch string // (object, iface-id, slot) -> function pointer
	VirtualDispatch   string // (object, slot) -> function pointer

	// Static initialization guard, one acquire/release pair shared by
	// every class's <clinit> guard per spec.md §4.4 "static-initializer
	// guard emission."
	StaticInitGuardAcquire string
	StaticInitGuardRelease string

	// Exceptions.
	Throw       string
	BeginCatch  string // (class-id) -> caught object or rethrows
	EndCatch    string
	StringIntern string
}

// knownVersions maps an ABI version to its symbol table. Real deployments
// would likely generate this from the runtime library's own build, but a
// closed translator module pins a small known set.
var knownVersions = map[string]Symbols{
	"v1.0.0": defaultSymbols("v1.0.0", "jtcrt_v1"),
	"v1.1.0": defaultSymbols("v1.1.0", "jtcrt_v1"),
}

func defaultSymbols(version, prefix string) Symbols {
	return Symbols{
		Version:                version,
		Alloc:                  prefix + "_alloc",
		AllocArray:             prefix + "_alloc_array",
		MonitorEnter:           prefix + "_monitor_enter",
		MonitorExit:            prefix + "_monitor_exit",
		BoxBool:                prefix + "_box_bool", UnboxBool: prefix + "_unbox_bool",
		BoxByte: prefix + "_box_byte", UnboxByte: prefix + "_unbox_byte",
		BoxChar: prefix + "_box_char", UnboxChar: prefix + "_unbox_char",
		BoxShort: prefix + "_box_short", UnboxShort: prefix + "_unbox_short",
		BoxInt: prefix + "_box_int", UnboxInt: prefix + "_unbox_int",
		BoxLong: prefix + "_box_long", UnboxLong: prefix + "_unbox_long",
		BoxFloat: prefix + "_box_float", UnboxFloat: prefix + "_unbox_float",
		BoxDouble: prefix + "_box_double", UnboxDouble: prefix + "_unbox_double",
		InstanceOf:             prefix + "_instanceof",
		Checkcast:              prefix + "_checkcast",
		InterfaceDispatch:      prefix + "_iface_dispatch",
		VirtualDispatch:        prefix + "_vtable_dispatch",
		StaticInitGuardAcquire: prefix + "_clinit_acquire",
		StaticInitGuardRelease: prefix + "_clinit_release",
		Throw:                  prefix + "_throw",
		BeginCatch:             prefix + "_begin_catch",
		EndCatch:               prefix + "_end_catch",
		StringIntern:           prefix + "_string_intern",
	}
}

// Resolve validates requested against the known ABI versions using
// semantic-version comparison (so "v1.0" and "v1.0.0" and a configured
// "v1" all resolve consistently) and returns its Symbols table.
func Resolve(requested string) (Symbols, error) {
	if !semver.IsValid(canonicalize(requested)) {
		return Symbols{}, fmt.Errorf("abi version %q is not a valid semantic version", requested)
	}
	var best string
	for v := range knownVersions {
		if semver.Compare(v, canonicalize(requested)) == 0 {
			return knownVersions[v], nil
		}
		if semver.Major(v) == semver.Major(canonicalize(requested)) {
			if best == "" || semver.Compare(v, best) > 0 {
				best = v
			}
		}
	}
	if best != "" {
		return knownVersions[best], nil
	}
	return Symbols{}, fmt.Errorf("no known ABI implementation compatible with requested version %q", requested)
}

func canonicalize(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

// BoxSymbolFor returns the Box/Unbox symbol pair for a primitive JavaType,
// panicking on a reference type (callers must only box primitives).
func (s Symbols) BoxSymbolFor(t model.JavaType) (box, unbox string) {
	switch t.Kind {
	case model.TBool:
		return s.BoxBool, s.UnboxBool
	case model.TByte:
		return s.BoxByte, s.UnboxByte
	case model.TChar:
		return s.BoxChar, s.UnboxChar
	case model.TShort:
		return s.BoxShort, s.UnboxShort
	case model.TInt:
		return s.BoxInt, s.UnboxInt
	case model.TLong:
		return s.BoxLong, s.UnboxLong
	case model.TFloat:
		return s.BoxFloat, s.UnboxFloat
	case model.TDouble:
		return s.BoxDouble, s.UnboxDouble
	default:
		panic(fmt.Sprintf("BoxSymbolFor: %v is not a primitive type", t))
	}
}
