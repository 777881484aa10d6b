package store

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
)

// Decode maps a record onto a typed struct using its json tags. Decoding is
// weakly typed so "300" and 300 both land in a string or numeric field.
func Decode(r Record, out interface{}) error {
	input := r.Fields.Map()
	input["id"] = r.ID
	input["createdAt"] = r.CreatedAt

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       decimalHook,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("decode %s: %w", r.ID, err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("decode %s: %w", r.ID, err)
	}
	return nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHook reads money fields numeric-or-zero.
func decimalHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case nil:
		return decimal.Zero, nil
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
		if err != nil {
			return decimal.Zero, nil
		}
		return d, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, nil
		}
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	}
	return data, nil
}

// Encode turns a typed struct into Fields in declaration order. The system
// attributes id and createdAt are skipped, as are omitempty fields holding
// zero values. Nested structs and slices are normalised to the generic
// shapes JSON decoding produces.
func Encode(v interface{}) (Fields, error) {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("encode: expected struct, got %s", rv.Kind())
	}
	rt := rv.Type()
	out := make(Fields, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, omitEmpty := jsonName(sf)
		if name == "-" || name == "id" || name == "createdAt" {
			continue
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		val, err := generic(fv.Interface())
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out = append(out, Field{Name: name, Value: val})
	}
	return out, nil
}

func jsonName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name, false
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = sf.Name
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			return name, true
		}
	}
	return name, false
}

func generic(v interface{}) (interface{}, error) {
	switch v.(type) {
	case string, bool, float64, int, int64, nil:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
