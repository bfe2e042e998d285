// Package options validates the caller-supplied engine options that every
// pipeline forwards verbatim to the engine.
package options

import (
	"reflect"

	"github.com/torosent/crankfeed/internal/pluginerr"
)

// Message is the text of the error returned for malformed options.
const Message = "options must be an object"

// Options is an opaque key-value mapping merged into engine configuration.
type Options map[string]any

// Validate accepts an absent value (untyped nil) or a map keyed by strings.
// Anything else fails with a configuration error.
func Validate(v any) error {
	if v == nil || isPlainMap(v) {
		return nil
	}
	return pluginerr.New(pluginerr.Fields{
		Kind:         pluginerr.KindConfiguration,
		Message:      Message,
		Parameter:    "options",
		ExpectedType: "object",
	})
}

// From validates v and converts it into Options. An absent value yields nil.
func From(v any) (Options, error) {
	if err := Validate(v); err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case nil:
		return nil, nil
	case Options:
		return m, nil
	case map[string]any:
		return Options(m), nil
	}
	rv := reflect.ValueOf(v)
	out := make(Options, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, nil
}

func isPlainMap(v any) bool {
	t := reflect.TypeOf(v)
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

// Clone returns a shallow copy of o.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}
