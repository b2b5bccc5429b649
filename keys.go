package smartcache

import (
	"fmt"
	"reflect"
	"runtime"
	"strconv"
	"strings"
)

const (
	// MaxFunctionNameLength bounds the function name segment of a cache key.
	MaxFunctionNameLength = 100

	collapsedNameEdge = 45
	keySeparator      = "//"
)

// QualifiedName returns the fully qualified name of fn, for example
// "github.com/acme/billing.Invoice.Total". Method value and pointer
// receiver decorations are stripped. It returns "" when fn is not a func.
func QualifiedName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return ""
	}
	name := strings.TrimSuffix(rf.Name(), "-fm")
	name = strings.ReplaceAll(name, "(*", "")
	name = strings.ReplaceAll(name, ")", "")
	return name
}

// CollapseName shortens names longer than MaxFunctionNameLength characters
// to their first and last 45 characters around "...". Lengths count runes.
func CollapseName(name string) string {
	runes := []rune(name)
	if len(runes) <= MaxFunctionNameLength {
		return name
	}
	return string(runes[:collapsedNameEdge]) + "..." + string(runes[len(runes)-collapsedNameEdge:])
}

// DepthGet resolves a dotted attribute path against root. Each segment
// matches, in order, a struct field (exact name, then case-insensitive),
// a string map key, or an exported zero-argument method with one result.
// Pointers and interfaces are followed. An empty path returns root.
func DepthGet(root any, path string) (any, error) {
	if path == "" {
		return root, nil
	}
	head, rest, _ := strings.Cut(path, ".")
	next, err := attribute(root, head)
	if err != nil {
		return nil, err
	}
	return DepthGet(next, rest)
}

func attribute(obj any, name string) (any, error) {
	orig := reflect.ValueOf(obj)
	v := orig
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			break
		}
		v = v.Elem()
	}
	if !v.IsValid() || ((v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil()) {
		return nil, fmt.Errorf("%w: nil has no attribute %q", ErrAttributeNotFound, name)
	}

	switch v.Kind() {
	case reflect.Struct:
		if f := v.FieldByName(name); f.IsValid() && f.CanInterface() {
			return f.Interface(), nil
		}
		if f, ok := exportedField(v, name); ok {
			return f.Interface(), nil
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			item := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
			if item.IsValid() {
				return item.Interface(), nil
			}
		}
	}

	if out, ok := callAccessor(orig, name); ok {
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s has no attribute %q", ErrAttributeNotFound, v.Type(), name)
}

// callAccessor invokes an exported zero-argument, single-result method,
// trying the value, its pointer, and its pointee.
func callAccessor(v reflect.Value, name string) (any, bool) {
	for v.IsValid() {
		if m, ok := findAccessor(v, name); ok {
			return m.Call(nil)[0].Interface(), true
		}
		if (v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface) || v.IsNil() {
			break
		}
		v = v.Elem()
	}
	return nil, false
}

func findAccessor(v reflect.Value, name string) (reflect.Value, bool) {
	m, ok := findMethod(v, name)
	if !ok {
		t := v.Type()
		for i := 0; i < t.NumMethod(); i++ {
			if strings.EqualFold(t.Method(i).Name, name) {
				m, ok = v.Method(i), true
				break
			}
		}
	}
	if !ok || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return reflect.Value{}, false
	}
	return m, true
}

// KeySpec decides which arguments of a memoized function contribute to its
// cache key and builds keys from call arguments.
type KeySpec struct {
	params   []string
	keys     []string
	included []string
	excluded []string
	deriver  *Deriver
}

// NewKeySpec validates a key selection against the declared parameter
// names. At most one of keys, include and exclude may be set. keys may
// reference nested attributes ("user.Account.ID"); include and exclude
// name top-level parameters only. With none set, every parameter is used.
func NewKeySpec(params, keys, include, exclude []string) (*KeySpec, error) {
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if p == "" || strings.Contains(p, ".") {
			return nil, fmt.Errorf("%w: invalid parameter name %q", ErrImproperlyConfigured, p)
		}
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter name %q", ErrImproperlyConfigured, p)
		}
		seen[p] = struct{}{}
	}

	set := 0
	for _, l := range [][]string{keys, include, exclude} {
		if len(l) > 0 {
			set++
		}
	}
	if len(include) > 0 && len(exclude) > 0 {
		return nil, fmt.Errorf("%w: you shall not provide both include and exclude arguments", ErrImproperlyConfigured)
	}
	if set > 1 {
		return nil, fmt.Errorf("%w: keys can not be combined with include or exclude", ErrImproperlyConfigured)
	}

	spec := &KeySpec{
		params:   append([]string(nil), params...),
		included: append([]string(nil), include...),
		excluded: append([]string(nil), exclude...),
	}

	switch {
	case len(keys) > 0:
		for _, k := range keys {
			root, _, _ := strings.Cut(k, ".")
			if _, ok := seen[root]; !ok || strings.HasSuffix(k, ".") {
				return nil, fmt.Errorf("%w: invalid key %q. keys must start with one of: %s", ErrImproperlyConfigured, k, quoteList(params))
			}
		}
		spec.keys = append([]string(nil), keys...)
	case len(include) > 0:
		for _, k := range include {
			if _, ok := seen[k]; !ok {
				return nil, fmt.Errorf("%w: invalid key on include: %q. keys allowed to be included: %s", ErrImproperlyConfigured, k, quoteList(params))
			}
		}
		for _, p := range params {
			if contains(include, p) {
				spec.keys = append(spec.keys, p)
			}
		}
	case len(exclude) > 0:
		for _, k := range exclude {
			if _, ok := seen[k]; !ok {
				return nil, fmt.Errorf("%w: invalid key on exclude: %q. keys allowed to be excluded: %s", ErrImproperlyConfigured, k, quoteList(params))
			}
		}
		for _, p := range params {
			if !contains(exclude, p) {
				spec.keys = append(spec.keys, p)
			}
		}
	default:
		spec.keys = append([]string(nil), params...)
	}
	return spec, nil
}

// Params returns the declared parameter names.
func (s *KeySpec) Params() []string { return append([]string(nil), s.params...) }

// Keys returns the effective key paths in key order.
func (s *KeySpec) Keys() []string { return append([]string(nil), s.keys...) }

// Included returns the include list as declared.
func (s *KeySpec) Included() []string { return append([]string(nil), s.included...) }

// Excluded returns the exclude list as declared.
func (s *KeySpec) Excluded() []string { return append([]string(nil), s.excluded...) }

// WithDeriver returns a copy of s that represents values with d.
func (s *KeySpec) WithDeriver(d *Deriver) *KeySpec {
	clone := *s
	clone.deriver = d
	return &clone
}

// Build returns "<name>//<rep1>//<rep2>..." for args bound positionally to
// the declared parameters.
func (s *KeySpec) Build(name string, args []any) (string, error) {
	if len(args) != len(s.params) {
		return "", fmt.Errorf("%w: %s expects %d arguments, got %d", ErrImproperlyConfigured, name, len(s.params), len(args))
	}
	d := s.deriver
	if d == nil {
		d = defaultDeriver
	}
	parts := make([]string, 0, len(s.keys)+1)
	parts = append(parts, name)
	for _, k := range s.keys {
		root, rest, _ := strings.Cut(k, ".")
		value, err := DepthGet(args[s.index(root)], rest)
		if err != nil {
			return "", fmt.Errorf("key %q: %w", k, err)
		}
		rep, err := d.Represent(value)
		if err != nil {
			return "", fmt.Errorf("key %q: %w", k, err)
		}
		parts = append(parts, rep)
	}
	return strings.Join(parts, keySeparator), nil
}

func (s *KeySpec) index(param string) int {
	for i, p := range s.params {
		if p == param {
			return i
		}
	}
	return -1
}

// defaultParams names positional parameters arg0..argN-1.
func defaultParams(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "arg" + strconv.Itoa(i)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return strings.Join(quoted, ", ")
}
