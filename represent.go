package smartcache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxRepresentationLength bounds a representation; longer ones are
	// replaced by their md5 hex digest.
	MaxRepresentationLength = 150

	representationDelimiter = "--"
	nilRepresentation       = "nil"
)

var (
	timeType       = reflect.TypeOf(time.Time{})
	uuidType       = reflect.TypeOf(uuid.UUID{})
	bigIntType     = reflect.TypeOf(big.Int{})
	jsonNumberType = reflect.TypeOf(json.Number(""))
	float64Type    = reflect.TypeOf(float64(0))
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
)

// Representer offers a unique representation for values the built-in
// rules cannot describe. It returns ok=false when v is not its concern.
type Representer interface {
	Represent(v any) (rep string, ok bool)
}

// RepresenterFunc adapts a function to the Representer interface.
type RepresenterFunc func(v any) (string, bool)

// Represent implements Representer.
func (f RepresenterFunc) Represent(v any) (string, bool) {
	if f == nil {
		return "", false
	}
	return f(v)
}

// Deriver turns values into short, stable strings used as cache key segments.
//
// Resolution order for a value:
//
//  1. a CacheKey() string method: "<pkg>.<Type>.<result>"
//  2. an exported UUID or ID field or accessor method: "<pkg>.<Type>.<id>"
//  3. time.Time: RFC 3339 with nanoseconds
//  4. decimals exposing Float64(): the float64 rendering
//  5. scalars: canonical literal text; other non-containers go to the
//     registered representers in registration order
//  6. maps: key and value representations interleaved, ordered by key
//  7. slices and arrays: element representations in order
//
// Nil pointers render "nil". Nil and empty maps and slices render "".
// Parts are joined with "--". Results longer than MaxRepresentationLength
// collapse to a 32 character md5 hex digest.
type Deriver struct {
	mu           sync.RWMutex
	representers []Representer
}

// NewDeriver returns a Deriver with the given representers registered.
func NewDeriver(representers ...Representer) *Deriver {
	d := &Deriver{}
	d.Register(representers...)
	return d
}

// Register appends representers. They are tried in registration order.
func (d *Deriver) Register(representers ...Representer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range representers {
		if r != nil {
			d.representers = append(d.representers, r)
		}
	}
}

// Represent returns the unique representation of v.
func (d *Deriver) Represent(v any) (string, error) {
	return d.represent(reflect.ValueOf(v))
}

var defaultDeriver = NewDeriver()

// Represent returns the unique representation of v using the process-wide
// representer registry.
//
// Example:
//
//	rep, _ := smartcache.Represent(map[string]any{"b": 2, "a": []int{1, 2}})
//	fmt.Println(rep) // "a"--1--2--"b"--2
func Represent(v any) (string, error) {
	return defaultDeriver.Represent(v)
}

// RegisterRepresenter adds representers to the process-wide registry.
// Call it during program start.
func RegisterRepresenter(representers ...Representer) {
	defaultDeriver.Register(representers...)
}

func (d *Deriver) represent(v reflect.Value) (string, error) {
	rep, err := d.derive(v)
	if err != nil {
		return "", err
	}
	if len(rep) > MaxRepresentationLength {
		sum := md5.Sum([]byte(rep))
		return hex.EncodeToString(sum[:]), nil
	}
	return rep, nil
}

func (d *Deriver) derive(v reflect.Value) (string, error) {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nilRepresentation, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nilRepresentation, nil
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nilRepresentation, nil
	}

	if rep, ok, err := cacheKeyRepresentation(v); ok || err != nil {
		return rep, err
	}
	if rep, ok := identityRepresentation(v); ok {
		return rep, nil
	}
	if v.Type() == timeType {
		return v.Interface().(time.Time).Format(time.RFC3339Nano), nil
	}
	if rep, ok := decimalRepresentation(v); ok {
		return rep, nil
	}
	if v.Kind() == reflect.Pointer {
		return d.derive(v.Elem())
	}

	switch v.Type() {
	case uuidType:
		return v.Interface().(uuid.UUID).String(), nil
	case bigIntType:
		n := v.Interface().(big.Int)
		return n.String(), nil
	case jsonNumberType:
		return v.String(), nil
	}

	switch v.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32:
		return formatFloat(v.Float(), 32), nil
	case reflect.Float64:
		return formatFloat(v.Float(), 64), nil
	case reflect.String:
		return strconv.Quote(v.String()), nil
	case reflect.Map:
		return d.deriveMap(v)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return "b" + strconv.Quote(string(v.Bytes())), nil
		}
		return d.deriveSequence(v)
	case reflect.Array:
		return d.deriveSequence(v)
	}
	return d.deriveCustom(v)
}

func (d *Deriver) deriveMap(v reflect.Value) (string, error) {
	type pair struct{ key, value string }
	pairs := make([]pair, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := d.represent(iter.Key())
		if err != nil {
			return "", err
		}
		value, err := d.represent(iter.Value())
		if err != nil {
			return "", err
		}
		pairs = append(pairs, pair{key: key, value: value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	parts := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.key, p.value)
	}
	return strings.Join(parts, representationDelimiter), nil
}

func (d *Deriver) deriveSequence(v reflect.Value) (string, error) {
	parts := make([]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		rep, err := d.represent(v.Index(i))
		if err != nil {
			return "", err
		}
		parts = append(parts, rep)
	}
	return strings.Join(parts, representationDelimiter), nil
}

func (d *Deriver) deriveCustom(v reflect.Value) (string, error) {
	if v.CanInterface() {
		obj := v.Interface()
		d.mu.RLock()
		representers := d.representers
		d.mu.RUnlock()
		for _, r := range representers {
			if rep, ok := r.Represent(obj); ok {
				return rep, nil
			}
		}
	}
	return "", fmt.Errorf("%w: object of type %s has not declared a unique representation", ErrRepresentationNotFound, v.Type())
}

// cacheKeyRepresentation applies the CacheKey() method rule.
func cacheKeyRepresentation(v reflect.Value) (string, bool, error) {
	m, ok := findMethod(v, "CacheKey")
	if !ok || m.Type().NumIn() != 0 {
		return "", false, nil
	}
	if m.Type().NumOut() != 1 || m.Type().Out(0).Kind() != reflect.String {
		return "", true, fmt.Errorf("%w: %s.CacheKey() must return a string", ErrInvalidRepresentationType, typeLabel(v.Type()))
	}
	out := m.Call(nil)[0].String()
	return typeLabel(v.Type()) + "." + out, true, nil
}

// decimalRepresentation matches fixed-point types such as *big.Rat whose
// Float64 method returns (float64, exactness).
func decimalRepresentation(v reflect.Value) (string, bool) {
	m, ok := findMethod(v, "Float64")
	if !ok {
		return "", false
	}
	mt := m.Type()
	if mt.NumIn() != 0 || mt.NumOut() != 2 || mt.Out(0) != float64Type || mt.Out(1).Implements(errorType) {
		return "", false
	}
	if base := indirectType(v.Type()); base == bigIntType {
		return "", false
	}
	return formatFloat(m.Call(nil)[0].Float(), 64), true
}

// identityRepresentation applies the UUID then ID rule: an exported field
// first, then an accessor method of that name.
func identityRepresentation(v reflect.Value) (string, bool) {
	base := v
	for base.Kind() == reflect.Pointer {
		if base.IsNil() {
			return "", false
		}
		base = base.Elem()
	}
	if identityExempt(base.Type()) {
		return "", false
	}
	for _, name := range []string{"UUID", "ID"} {
		if base.Kind() == reflect.Struct {
			if f, ok := exportedField(base, name); ok {
				return typeLabel(v.Type()) + "." + identityText(f), true
			}
		}
		if !v.CanInterface() {
			continue
		}
		if m, ok := findAccessor(v, name); ok {
			return typeLabel(v.Type()) + "." + identityText(m.Call(nil)[0]), true
		}
	}
	return "", false
}

// identityExempt reports types with dedicated rules. uuid.UUID carries an
// ID() uint32 method that must not replace its string form.
func identityExempt(t reflect.Type) bool {
	switch t {
	case timeType, uuidType, bigIntType, jsonNumberType:
		return true
	}
	return false
}

// identityText renders an id, following pointers so equal ids held behind
// different pointers render the same.
func identityText(v reflect.Value) string {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nilRepresentation
		}
		v = v.Elem()
	}
	if !v.CanInterface() {
		return fmt.Sprint(v)
	}
	return fmt.Sprint(v.Interface())
}

// findMethod looks up an exported method on v, or on a pointer to v when
// the method has a pointer receiver.
func findMethod(v reflect.Value, name string) (reflect.Value, bool) {
	if !v.CanInterface() {
		return reflect.Value{}, false
	}
	if m := v.MethodByName(name); m.IsValid() {
		return m, true
	}
	if v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		return reflect.Value{}, false
	}
	if _, ok := reflect.PointerTo(v.Type()).MethodByName(name); !ok {
		return reflect.Value{}, false
	}
	if v.CanAddr() {
		return v.Addr().MethodByName(name), true
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p.MethodByName(name), true
}

// exportedField finds an exported struct field by case-insensitive name.
func exportedField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.IsExported() && strings.EqualFold(sf.Name, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// typeLabel renders "<pkgpath>.<Name>" for named types.
func typeLabel(t reflect.Type) string {
	t = indirectType(t)
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// formatFloat always carries a decimal point or exponent so 42.0 never
// collides with the integer 42.
func formatFloat(f float64, bitSize int) string {
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}
