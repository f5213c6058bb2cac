package velo

import (
	"fmt"
	"strings"
	"unicode"

	reflect "github.com/goccy/go-reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// getProperty resolves $base.member without an argument list. Resolution
// order: string-keyed map entry, exported struct field, then a
// getter-shaped zero-argument method (Member, GetMember, IsMember).
// More than one matching getter is ambiguous and is an error, as is no
// match at all.
func getProperty(line int, target any, name string) (any, error) {
	if target == nil {
		return nil, evalErrorf(line, "cannot access member %q of nil value", name)
	}
	v := reflect.ValueOf(target)
	elem, err := indirect(line, v, name)
	if err != nil {
		return nil, err
	}

	if elem.Kind() == reflect.Map && elem.Type().Key().Kind() == reflect.String {
		key := reflect.ValueOf(name).Convert(elem.Type().Key())
		if entry := elem.MapIndex(key); entry.IsValid() {
			return entry.Interface(), nil
		}
	}

	if elem.Kind() == reflect.Struct {
		if f, ok := elem.Type().FieldByName(capitalize(name)); ok && f.PkgPath == "" {
			return elem.FieldByIndex(f.Index).Interface(), nil
		}
	}

	var matched []reflect.Value
	var matchedNames []string
	for _, mn := range getterNames(name) {
		m := v.MethodByName(mn)
		if m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() >= 1 {
			matched = append(matched, m)
			matchedNames = append(matchedNames, mn)
		}
	}
	switch len(matched) {
	case 0:
		return nil, evalErrorf(line, "cannot resolve member %q on value of type %T", name, target)
	case 1:
		return callReflected(line, fmt.Sprintf("%s.%s", typeName(target), matchedNames[0]), matched[0], nil)
	default:
		return nil, evalErrorf(line, "ambiguous member %q on value of type %T: matches %s",
			name, target, strings.Join(matchedNames, ", "))
	}
}

// invokeMethod resolves and calls $base.member(args...). Exactly one
// getter-named method compatible with the argument count and types must
// exist; numeric arguments widen but never narrow.
func invokeMethod(line int, target any, name string, args []any) (any, error) {
	if target == nil {
		return nil, evalErrorf(line, "cannot call method %q on nil value", name)
	}
	v := reflect.ValueOf(target)

	var matched []reflect.Value
	var matchedNames []string
	var matchedArgs [][]reflect.Value
	for _, mn := range getterNames(name) {
		m := v.MethodByName(mn)
		if !m.IsValid() {
			continue
		}
		mt := m.Type()
		if mt.IsVariadic() || mt.NumIn() != len(args) {
			continue
		}
		callArgs := make([]reflect.Value, len(args))
		applicable := true
		for i, a := range args {
			av, ok := convertArg(a, mt.In(i))
			if !ok {
				applicable = false
				break
			}
			callArgs[i] = av
		}
		if applicable {
			matched = append(matched, m)
			matchedNames = append(matchedNames, mn)
			matchedArgs = append(matchedArgs, callArgs)
		}
	}
	switch len(matched) {
	case 0:
		return nil, evalErrorf(line, "no method %q on value of type %T accepts %d argument(s) of the given types",
			name, target, len(args))
	case 1:
		return callReflected(line, fmt.Sprintf("%s.%s", typeName(target), matchedNames[0]), matched[0], matchedArgs[0])
	default:
		return nil, evalErrorf(line, "ambiguous method %q on value of type %T: matches %s",
			name, target, strings.Join(matchedNames, ", "))
	}
}

// getIndex resolves $base[index]: integer indexing for slices and
// arrays (bounds-checked), key lookup for maps. An absent map key
// resolves to nil, which renders as the empty string.
func getIndex(line int, target any, index any) (any, error) {
	if target == nil {
		return nil, evalErrorf(line, "cannot index nil value")
	}
	v := reflect.ValueOf(target)
	elem, err := indirect(line, v, "[]")
	if err != nil {
		return nil, err
	}
	switch elem.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := toInt64(index)
		if !ok {
			return nil, evalErrorf(line, "index must be an integer: %v (%T)", index, index)
		}
		if i < 0 || i >= int64(elem.Len()) {
			return nil, evalErrorf(line, "index %d out of range for length %d", i, elem.Len())
		}
		return elem.Index(int(i)).Interface(), nil
	case reflect.Map:
		key, ok := convertArg(index, elem.Type().Key())
		if !ok {
			return nil, evalErrorf(line, "cannot use %v (%T) as key of %s", index, index, elem.Type())
		}
		entry := elem.MapIndex(key)
		if !entry.IsValid() {
			return nil, nil
		}
		return entry.Interface(), nil
	}
	return nil, evalErrorf(line, "value of type %T does not support indexed access", target)
}

// callReflected invokes a resolved method. A trailing error return is
// unwrapped; returning more than one non-error value is an error.
func callReflected(line int, desc string, m reflect.Value, args []reflect.Value) (any, error) {
	out := m.Call(args)
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, NewEvaluationError(fmt.Sprintf("method %s failed", desc), line, out[n-1].Interface().(error))
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		return nil, evalErrorf(line, "method %s returns %d values", desc, len(out))
	}
}

// convertArg adapts a template value to a method parameter or map key
// type. Assignable values pass through; integer kinds widen to larger
// integer kinds or to floats, mirroring primitive widening rules.
func convertArg(a any, t reflect.Type) (reflect.Value, bool) {
	if a == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(t), true
		}
		return reflect.Value{}, false
	}
	av := reflect.ValueOf(a)
	if av.Type().AssignableTo(t) {
		return av, true
	}
	if widens(av.Kind(), t.Kind()) {
		return av.Convert(t), true
	}
	return reflect.Value{}, false
}

// widens reports whether a value of kind from may be converted to kind
// to without loss: smaller integers to larger ones of the same
// signedness class, unsigned into strictly larger signed, and any
// integer into a float.
func widens(from, to reflect.Kind) bool {
	fromBits, fromSigned, fromInt := intKind(from)
	if !fromInt {
		return false
	}
	if to == reflect.Float32 || to == reflect.Float64 {
		return true
	}
	toBits, toSigned, toInt := intKind(to)
	if !toInt {
		return false
	}
	if fromSigned == toSigned {
		return toBits >= fromBits
	}
	if !fromSigned && toSigned {
		return toBits > fromBits
	}
	return false
}

func intKind(k reflect.Kind) (bits int, signed, ok bool) {
	switch k {
	case reflect.Int8:
		return 8, true, true
	case reflect.Int16:
		return 16, true, true
	case reflect.Int32:
		return 32, true, true
	case reflect.Int, reflect.Int64:
		return 64, true, true
	case reflect.Uint8:
		return 8, false, true
	case reflect.Uint16:
		return 16, false, true
	case reflect.Uint32:
		return 32, false, true
	case reflect.Uint, reflect.Uint64:
		return 64, false, true
	}
	return 0, false, false
}

// indirect follows pointers and interfaces down to the underlying
// value, failing on nil along the way.
func indirect(line int, v reflect.Value, member string) (reflect.Value, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, evalErrorf(line, "cannot access %q through nil %s", member, v.Kind())
		}
		v = v.Elem()
	}
	return v, nil
}

func getterNames(name string) []string {
	c := capitalize(name)
	names := []string{c, "Get" + c, "Is" + c}
	if strings.HasPrefix(c, "Get") || strings.HasPrefix(c, "Is") {
		return names[:1]
	}
	return names
}

func capitalize(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
