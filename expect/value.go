package expect

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ignoreMarker struct{}

// anyValue matches any bound value of a type.
type anyValue struct {
	typ  reflect.Type
	name string
}

type literal struct {
	v any
}

// Ignore marks an argument that is not compared.
func Ignore() any {
	return ignoreMarker{}
}

// AnyOf marks an argument that only has to be bound to a value of type T.
func AnyOf[T any]() any {
	return anyValue{typ: reflect.TypeFor[T]()}
}

// Equal marks v as a literal expected value, for values that would
// otherwise be taken for a marker.
func Equal(v any) any {
	return literal{v: v}
}

var namedTypes = map[string]reflect.Type{
	"string":   reflect.TypeFor[string](),
	"bool":     reflect.TypeFor[bool](),
	"int":      reflect.TypeFor[int](),
	"int8":     reflect.TypeFor[int8](),
	"int16":    reflect.TypeFor[int16](),
	"int32":    reflect.TypeFor[int32](),
	"int64":    reflect.TypeFor[int64](),
	"uint":     reflect.TypeFor[uint](),
	"uint8":    reflect.TypeFor[uint8](),
	"uint16":   reflect.TypeFor[uint16](),
	"uint32":   reflect.TypeFor[uint32](),
	"uint64":   reflect.TypeFor[uint64](),
	"float32":  reflect.TypeFor[float32](),
	"float64":  reflect.TypeFor[float64](),
	"duration": reflect.TypeFor[time.Duration](),
	"time":     reflect.TypeFor[time.Time](),
	"uuid":     reflect.TypeFor[uuid.UUID](),
	"object":   reflect.TypeFor[map[string]any](),
	"bytes":    reflect.TypeFor[[]byte](),
}

// LookupType returns the Go type for a type name: a built-in scalar name,
// "object" for map[string]any, "bytes" for []byte, or "[]name" for a
// slice of a named type.
func LookupType(name string) (reflect.Type, bool) {
	name = strings.TrimSpace(name)
	if elem, ok := strings.CutPrefix(name, "[]"); ok {
		t, ok := LookupType(elem)
		if !ok {
			return nil, false
		}
		return reflect.SliceOf(t), true
	}
	t, ok := namedTypes[name]
	return t, ok
}

// resolveType returns the type called name. Besides LookupType names, the
// declared parameter type matches by its name or its qualified name.
func resolveType(name string, declared reflect.Type) (reflect.Type, error) {
	if declared != nil && (declared.String() == name || declared.Name() == name) {
		return declared, nil
	}
	if t, ok := LookupType(name); ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown type %q", name)
}
