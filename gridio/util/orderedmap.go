package util

import (
	"errors"
	"fmt"
)

// OrderedMap holds named attribute values in insertion order.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

var (
	ErrAttributeMissing = errors.New("attribute missing")
	ErrAttributeType    = errors.New("attribute has unexpected type")
)

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: map[string]any{}}
}

// Add appends a key, or replaces the value of an existing key in place.
func (om *OrderedMap) Add(name string, val any) {
	if _, exists := om.values[name]; !exists {
		om.keys = append(om.keys, name)
	}
	om.values[name] = val
}

func (om *OrderedMap) Get(key string) (val any, has bool) {
	val, has = om.values[key]
	return
}

// Keys lists the keys in the order they were first added.
func (om *OrderedMap) Keys() []string {
	return om.keys
}

func (om *OrderedMap) Len() int {
	return len(om.keys)
}

func (om *OrderedMap) lookup(key string) (any, error) {
	val, has := om.values[key]
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrAttributeMissing, key)
	}
	return val, nil
}

// GetInt32 returns an integer attribute.
func (om *OrderedMap) GetInt32(key string) (int32, error) {
	val, err := om.lookup(key)
	if err != nil {
		return 0, err
	}
	switch v := val.(type) {
	case int32:
		return v, nil
	case []int32:
		if len(v) == 1 {
			return v[0], nil
		}
	case int16:
		return int32(v), nil
	case int8:
		return int32(v), nil
	}
	return 0, fmt.Errorf("%w: %s is %T", ErrAttributeType, key, val)
}

// GetFloat64 returns a floating point attribute, widening float32.
func (om *OrderedMap) GetFloat64(key string) (float64, error) {
	val, err := om.lookup(key)
	if err != nil {
		return 0, err
	}
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int32:
		return float64(v), nil
	}
	return 0, fmt.Errorf("%w: %s is %T", ErrAttributeType, key, val)
}

// GetFloat32s returns a float array attribute; a scalar is a one-element array.
func (om *OrderedMap) GetFloat32s(key string) ([]float32, error) {
	val, err := om.lookup(key)
	if err != nil {
		return nil, err
	}
	switch v := val.(type) {
	case []float32:
		return v, nil
	case float32:
		return []float32{v}, nil
	}
	return nil, fmt.Errorf("%w: %s is %T", ErrAttributeType, key, val)
}

// GetString returns a character attribute.
func (om *OrderedMap) GetString(key string) (string, error) {
	val, err := om.lookup(key)
	if err != nil {
		return "", err
	}
	if s, ok := val.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %s is %T", ErrAttributeType, key, val)
}
