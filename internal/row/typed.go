package row

import (
	"encoding"
	"encoding/base64"
	"reflect"

	"github.com/memrel/memrel/internal/schema"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// StructToDynamic copies every schema column out of a Go struct (or pointer
// to struct) value v into a fresh Dynamic row. This is the boundary between
// the generic Table[T] API, where T is a caller-defined struct, and the
// engine's internal row storage, which always works in terms of Dynamic so
// the typed and metadata-driven paths share one representation.
func StructToDynamic(s *schema.Schema, v any) *Dynamic {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	d := NewDynamic(s)
	for _, col := range s.Columns {
		fv := rv.FieldByName(col.FieldName)
		if fv.IsValid() {
			d.Values[key(col.Name)] = fv.Interface()
		}
	}
	return d
}

// DynamicToStruct copies a Dynamic row's columns back into a fresh T value.
// A string value is base64-decoded into a []byte field and text-unmarshaled
// into a decimal, time or UUID field, the forms a JSON snapshot carries them in.
func DynamicToStruct[T any](s *schema.Schema, d *Dynamic) T {
	var zero T
	rv := reflect.New(reflect.TypeOf(zero)).Elem()
	for _, col := range s.Columns {
		v, ok := d.Values[key(col.Name)]
		if !ok || v == nil {
			continue
		}
		fv := rv.FieldByName(col.FieldName)
		if !fv.IsValid() || !fv.CanSet() {
			continue
		}
		rv2 := reflect.ValueOf(v)
		switch {
		case rv2.Type().AssignableTo(fv.Type()):
			fv.Set(rv2)
		case rv2.Kind() == reflect.String && fv.Type() == reflect.TypeOf([]byte(nil)):
			if b, err := base64.StdEncoding.DecodeString(rv2.String()); err == nil {
				fv.SetBytes(b)
			}
		case rv2.Kind() == reflect.String && reflect.PointerTo(fv.Type()).Implements(textUnmarshalerType):
			_ = fv.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(rv2.String()))
		case rv2.Type().ConvertibleTo(fv.Type()):
			fv.Set(rv2.Convert(fv.Type()))
		}
	}
	return rv.Interface().(T)
}
