// Package schematemplate turns a JSON Schema into a representative example
// value, used to pre-fill manual tool invocations.
package schematemplate

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const placeholderString = "example_string"

// Synthesize returns an example value for schema, evaluated at now. Objects
// marshal with keys in the order the schema declared them. Values the
// schema spells out verbatim (const, default, examples) come back as
// json.RawMessage. Input that is not a JSON object synthesizes to nil.
func Synthesize(schema string, now time.Time) any {
	if !gjson.Valid(schema) {
		return nil
	}
	return synthesize(gjson.Parse(schema), now)
}

// SynthesizeJSON renders the example as indented JSON, ready to edit.
func SynthesizeJSON(schema string, now time.Time) (string, error) {
	data, err := json.MarshalIndent(Synthesize(schema, now), "", " ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func synthesize(node gjson.Result, now time.Time) any {
	if !node.IsObject() && !node.IsArray() {
		return nil
	}

	if c := node.Get("const"); c.Exists() {
		return verbatim(c)
	}
	if alts := nonEmptyArray(node.Get("oneOf")); alts != nil {
		return synthesize(alts[0], now)
	}
	if d := node.Get("default"); d.Exists() {
		return verbatim(d)
	}
	if examples := nonEmptyArray(node.Get("examples")); examples != nil {
		return verbatim(examples[0])
	}

	switch node.Get("type").String() {
	case "object":
		obj := orderedmap.New[string, any]()
		if props := node.Get("properties"); props.IsObject() {
			props.ForEach(func(key, value gjson.Result) bool {
				obj.Set(key.String(), synthesize(value, now))
				return true
			})
		}
		return obj

	case "array":
		if items := node.Get("items"); truthy(items) {
			return []any{synthesize(items, now)}
		}
		return []any{}

	case "string":
		if enum := nonEmptyArray(node.Get("enum")); enum != nil {
			return verbatim(enum[0])
		}
		if s, ok := FormatExample(node.Get("format").String(), now); ok {
			return s
		}
		return placeholderString

	case "number", "integer":
		if m := node.Get("minimum"); m.Exists() {
			return verbatim(m)
		}
		return 0

	case "boolean":
		return false

	case "null":
		return nil
	}

	return orderedmap.New[string, any]()
}

func verbatim(r gjson.Result) json.RawMessage {
	return json.RawMessage(r.Raw)
}

func nonEmptyArray(r gjson.Result) []gjson.Result {
	if !r.IsArray() {
		return nil
	}
	items := r.Array()
	if len(items) == 0 {
		return nil
	}
	return items
}

func truthy(r gjson.Result) bool {
	if !r.Exists() {
		return false
	}
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	}
	return true
}
