// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Keys address settings by their TOML names joined with dots, e.g.
// "storage.driver". They are what "brainchat config get/set" accept.

var (
	allKeys     []string
	allKeysOnce sync.Once
)

// GetAllKeys lists every leaf key in declaration order.
func GetAllKeys() []string {
	allKeysOnce.Do(func() {
		allKeys = collectKeys(reflect.TypeOf(Config{}), "")
	})
	return append([]string(nil), allKeys...)
}

func collectKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := prefix + tagName(f)
		if f.Type.Kind() == reflect.Struct {
			keys = append(keys, collectKeys(f.Type, name+".")...)
			continue
		}
		keys = append(keys, name)
	}
	return keys
}

func tagName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

// Get returns the value stored under key.
func (c *Config) Get(key string) (any, error) {
	v, err := c.field(key)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// Set stores value under key. Strings are parsed into the field's type, so
// "45" sets an int and "a, b" sets a string list.
func (c *Config) Set(key string, value any) error {
	v, err := c.field(key)
	if err != nil {
		return err
	}
	if s, ok := value.(string); ok {
		return assignString(v, s)
	}
	return assign(v, value)
}

// field resolves key to a settable value inside c. Segments match the TOML
// name case-insensitively, with "-" accepted for "_".
func (c *Config) field(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	segments := strings.Split(key, ".")
	for i, seg := range segments {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(segments[:i], "."))
		}
		next, ok := childByName(v, strings.ReplaceAll(seg, "-", "_"))
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(segments[:i+1], "."))
		}
		v = next
	}
	if v.Kind() == reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%s is a section, not a key", key)
	}
	return v, nil
}

func childByName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if strings.EqualFold(tagName(t.Field(i)), name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func assignString(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value %q", s)
		}
		v.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid number value %q", s)
		}
		v.SetFloat(f)
	case reflect.Bool:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "on":
			v.SetBool(true)
		default:
			v.SetBool(false)
		}
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("cannot set %s from a string", v.Type())
		}
		var items []string
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		v.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("cannot set %s from a string", v.Type())
	}
	return nil
}

func assign(v reflect.Value, value any) error {
	val := reflect.ValueOf(value)
	switch {
	case !val.IsValid():
		return fmt.Errorf("cannot assign nil to %s", v.Type())
	case val.Type().AssignableTo(v.Type()):
		v.Set(val)
	case val.Type().ConvertibleTo(v.Type()):
		v.Set(val.Convert(v.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, v.Type())
	}
	return nil
}
