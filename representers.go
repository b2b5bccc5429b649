package smartcache

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// StructRepresenter represents plain structs by their exported fields in
// declaration order: "<pkg>.<Type>{A=1,B="x"}". Fields are represented
// with d, so nested values follow the same rules.
//
// Example:
//
//	d := smartcache.NewDeriver()
//	d.Register(smartcache.StructRepresenter(d))
func StructRepresenter(d *Deriver) Representer {
	return RepresenterFunc(func(v any) (string, bool) {
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return "", false
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return "", false
		}
		t := rv.Type()
		parts := make([]string, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			rep, err := d.represent(rv.Field(i))
			if err != nil {
				return "", false
			}
			parts = append(parts, sf.Name+"="+rep)
		}
		return typeLabel(t) + "{" + strings.Join(parts, ",") + "}", true
	})
}

// JSONRepresenter represents any JSON-marshalable value by its canonical
// JSON encoding (object keys sorted, insignificant whitespace removed),
// prefixed with the value's type.
func JSONRepresenter() Representer {
	return RepresenterFunc(func(v any) (string, bool) {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		canonical, err := canonicalJSON(raw)
		if err != nil {
			return "", false
		}
		return typeLabel(reflect.TypeOf(v)) + canonical, true
	})
}

func canonicalJSON(raw []byte) (string, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", err
	}
	var b strings.Builder
	if err := writeCanonical(&b, decoded); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeCanonical(b *strings.Builder, v any) error {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			b.Write(kb)
			b.WriteByte(':')
			if err := writeCanonical(b, x[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		enc, err := json.Marshal(x)
		if err != nil {
			return err
		}
		b.Write(enc)
	}
	return nil
}
