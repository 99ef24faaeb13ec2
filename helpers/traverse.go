package helpers

import (
	"fmt"
	"reflect"
)

func traverse[T any](obj any, key any, keys []any, fallback T) (T, error) {
	reflectedObj := reflect.ValueOf(obj)
	var val any
	switch reflectedObj.Kind() {
	case reflect.Slice, reflect.Array:
		index, ok := key.(int)
		if !ok {
			return fallback, fmt.Errorf("expected int key for %T, got %T", obj, key)
		}
		if index >= reflectedObj.Len() {
			return fallback, fmt.Errorf("index %v out of range %v", index, reflectedObj.Len()-1)
		}
		val = reflectedObj.Index(index).Interface()
	case reflect.Map:
		name, ok := key.(string)
		if !ok {
			return fallback, fmt.Errorf("expected string key for %T, got %T (%v)", obj, key, key)
		}
		res := reflectedObj.MapIndex(reflect.ValueOf(name))
		if !res.IsValid() {
			return fallback, fmt.Errorf("key %s not found", name)
		}
		val = res.Interface()
	default:
		return fallback, fmt.Errorf("cannot traverse object of type %T", obj)
	}

	if len(keys) > 0 {
		return traverse(val, keys[0], keys[1:], fallback)
	}
	typedVal, ok := val.(T)
	if !ok {
		var empty T
		return fallback, fmt.Errorf("could not type assert final value %T into %T", val, empty)
	}
	return typedVal, nil
}

// TraverseWithError walks nested maps and slices of a decoded JSON document.
func TraverseWithError[T any](obj any, keys []any, fallback T) (T, error) {
	if len(keys) == 0 {
		return fallback, fmt.Errorf("no keys to traverse")
	}
	return traverse(obj, keys[0], keys[1:], fallback)
}

func Traverse[T any](obj any, keys []any, fallback T) T {
	res, _ := TraverseWithError(obj, keys, fallback)
	return res
}
