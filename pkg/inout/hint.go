package inout

import "reflect"

// Hint identifies a type that a provider can supply or a processor can
// consume. An optional hint marks a value that may legitimately be absent:
// optional providers are kept apart from definite ones and only serve
// optional requests.
type Hint struct {
	typ      reflect.Type
	optional bool
}

// HintOf returns the hint for T. Works for interface types as well as
// concrete ones.
func HintOf[T any]() Hint {
	return Hint{typ: typeOf[T]()}
}

// OptionalOf returns the optional hint for T.
func OptionalOf[T any]() Hint {
	return Hint{typ: typeOf[T](), optional: true}
}

// HintFor wraps an already-reflected type.
func HintFor(t reflect.Type) Hint {
	return Hint{typ: t}
}

// AsOptional returns a copy of the hint with the optional flag set.
func (h Hint) AsOptional() Hint {
	h.optional = true
	return h
}

func (h Hint) Type() reflect.Type { return h.typ }

func (h Hint) IsOptional() bool { return h.optional }

func (h Hint) IsZero() bool { return h.typ == nil }

func (h Hint) String() string {
	if h.typ == nil {
		return "<invalid>"
	}
	if h.optional {
		return "optional " + h.typ.String()
	}
	return h.typ.String()
}

// definite strips the optional flag for use as a map key.
func (h Hint) definite() Hint {
	h.optional = false
	return h
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// hintForValue derives a hint from a concrete value's dynamic type.
func hintForValue(v any) (Hint, bool) {
	if v == nil {
		return Hint{}, false
	}
	return Hint{typ: reflect.TypeOf(v)}, true
}

// satisfies reports whether a request for type want is served by a
// registration keyed on type got. Exact matches always satisfy; beyond
// that, a registration keyed on an interface serves any requested type
// that implements it, which is how the subclass lookup of the original
// design maps onto Go.
func satisfies(want, got reflect.Type) bool {
	if want == got {
		return true
	}
	if got.Kind() == reflect.Interface && want.Implements(got) {
		return true
	}
	return false
}
