package proto

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type Kind uint8

const (
	KindText Kind = iota + 1
	KindNumber
	KindBool
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindJSON:
		return "json"
	}
	return "unknown"
}

// Arg is one loggable value: text, number, boolean or an arbitrary JSON value.
// The zero Arg encodes as null.
type Arg struct {
	kind Kind
	text string
	num  float64
	b    bool
	json any
}

func Text(s string) Arg { return Arg{kind: KindText, text: s} }

func Number(f float64) Arg { return Arg{kind: KindNumber, num: f} }

func Bool(b bool) Arg { return Arg{kind: KindBool, b: b} }

// JSON carries v as-is; it is encoded when the envelope is built.
func JSON(v any) Arg { return Arg{kind: KindJSON, json: v} }

// RawJSON carries already encoded JSON text.
func RawJSON(raw []byte) Arg {
	return Arg{kind: KindJSON, json: json.RawMessage(append([]byte(nil), raw...))}
}

// From picks the variant for a Go value. Strings, booleans and numeric types
// map to their own variants; anything else is carried as JSON.
func From(v any) Arg {
	switch x := v.(type) {
	case Arg:
		return x
	case string:
		return Text(x)
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int8:
		return Number(float64(x))
	case int16:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint8:
		return Number(float64(x))
	case uint16:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case json.RawMessage:
		return RawJSON(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return Text(x.String())
	case error:
		return Text(x.Error())
	case fmt.Stringer:
		return Text(x.String())
	default:
		return JSON(v)
	}
}

// Args converts each value with From.
func Args(vals ...any) []Arg {
	out := make([]Arg, 0, len(vals))
	for _, v := range vals {
		out = append(out, From(v))
	}
	return out
}

func (a Arg) Kind() Kind { return a.kind }

// String renders the value the way a console would print it.
func (a Arg) String() string {
	switch a.kind {
	case KindText:
		return a.text
	case KindNumber:
		return strconv.FormatFloat(a.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(a.b)
	}
	b, err := a.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", a.json)
	}
	return string(b)
}

func (a Arg) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case KindText:
		return marshal(a.text)
	case KindNumber:
		// JSON has no NaN or Inf
		if math.IsNaN(a.num) || math.IsInf(a.num, 0) {
			return []byte("null"), nil
		}
		return marshal(a.num)
	case KindBool:
		return marshal(a.b)
	case KindJSON:
		return marshal(a.json)
	}
	return []byte("null"), nil
}

func (a *Arg) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		*a = Text(x)
	case float64:
		*a = Number(x)
	case bool:
		*a = Bool(x)
	default:
		*a = RawJSON(b)
	}
	return nil
}
