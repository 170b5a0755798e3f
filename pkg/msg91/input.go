package msg91

import "strings"

// Delimiter separates entries inside a Delimited input.
const Delimiter = ","

// Kind tags the shape an Input was supplied in.
type Kind int

const (
	// KindAbsent is the zero Input: nothing was supplied.
	KindAbsent Kind = iota
	// KindScalar is a single value that is never split.
	KindScalar
	// KindDelimited is a single value split on Delimiter when it contains one.
	KindDelimited
	// KindList is an ordered list of values.
	KindList
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindDelimited:
		return "delimited"
	case KindList:
		return "list"
	default:
		return "absent"
	}
}

// Input is a recipient or message argument. Callers pick the shape explicitly
// with Scalar, Delimited or List so that a single string and a one-element
// list are never confused.
type Input struct {
	kind   Kind
	value  string
	values []string
}

// Scalar wraps a single value used as-is.
func Scalar(value string) Input {
	return Input{kind: KindScalar, value: value}
}

// Delimited wraps a comma separated value. A value without a comma behaves
// like Scalar.
func Delimited(value string) Input {
	return Input{kind: KindDelimited, value: value}
}

// List wraps an ordered list of values. The slice is copied.
func List(values ...string) Input {
	return Input{kind: KindList, values: append([]string(nil), values...)}
}

// Kind reports the shape of the input.
func (in Input) Kind() Kind {
	return in.kind
}

// Empty reports whether the input is absent, an empty string or an empty list.
func (in Input) Empty() bool {
	switch in.kind {
	case KindScalar, KindDelimited:
		return in.value == ""
	case KindList:
		return len(in.values) == 0
	default:
		return true
	}
}

func (in Input) delimited() bool {
	return in.kind == KindDelimited && strings.Contains(in.value, Delimiter)
}
