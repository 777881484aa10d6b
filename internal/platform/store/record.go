package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the ISO-8601 layout used for createdAt. It matches the
// millisecond precision of JavaScript's toISOString so existing documents
// sort and prefix-match the same way.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Field is one named value of a record.
type Field struct {
	Name  string
	Value interface{}
}

// Fields is an ordered set of named values. Order is insertion order and is
// preserved through JSON, Postgres and Mongo round trips.
type Fields []Field

// F builds Fields from alternating names and values.
func F(kv ...interface{}) Fields {
	if len(kv)%2 != 0 {
		panic("store.F: odd number of arguments")
	}
	out := make(Fields, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		out.Set(kv[i].(string), kv[i+1])
	}
	return out
}

func (f Fields) index(name string) int {
	for i := range f {
		if f[i].Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value stored under name.
func (f Fields) Get(name string) (interface{}, bool) {
	if i := f.index(name); i >= 0 {
		return f[i].Value, true
	}
	return nil, false
}

// String returns the string rendering of the value under name, or "".
func (f Fields) String(name string) string {
	v, _ := f.Get(name)
	return Stringify(v)
}

// Has reports whether name is present with a non-empty rendering.
func (f Fields) Has(name string) bool {
	return strings.TrimSpace(f.String(name)) != ""
}

// Set replaces the value in place or appends a new field.
func (f *Fields) Set(name string, value interface{}) {
	if i := f.index(name); i >= 0 {
		(*f)[i].Value = value
		return
	}
	*f = append(*f, Field{Name: name, Value: value})
}

// Delete removes name if present.
func (f *Fields) Delete(name string) {
	if i := f.index(name); i >= 0 {
		*f = append((*f)[:i], (*f)[i+1:]...)
	}
}

// Merge returns a copy of f with every field of partial applied on top.
func (f Fields) Merge(partial Fields) Fields {
	out := f.Clone()
	for _, p := range partial {
		out.Set(p.Name, cloneValue(p.Value))
	}
	return out
}

// Names lists field names in order.
func (f Fields) Names() []string {
	names := make([]string, len(f))
	for i := range f {
		names[i] = f[i].Name
	}
	return names
}

// Map returns an unordered view of the fields.
func (f Fields) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(f))
	for _, fl := range f {
		m[fl.Name] = fl.Value
	}
	return m
}

// Clone deep-copies the fields including nested sequences and mappings.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for i, fl := range f {
		out[i] = Field{Name: fl.Name, Value: cloneValue(fl.Value)}
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Fields:
		return t.Clone()
	default:
		return v
	}
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fl := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fl.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(fl.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fl.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fields: expected object")
	}
	out := Fields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fields: expected key")
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		out.Set(name, v)
	}
	*f = out
	return nil
}

// Record is one stored document: an opaque id, the creation timestamp set
// by the store, and the ordered document fields.
type Record struct {
	ID        string
	CreatedAt string
	Fields    Fields
}

// Clone deep-copies the record.
func (r Record) Clone() Record {
	return Record{ID: r.ID, CreatedAt: r.CreatedAt, Fields: r.Fields.Clone()}
}

// Value returns a field value, resolving the system attributes "id" and
// "createdAt" as well.
func (r Record) Value(name string) (interface{}, bool) {
	switch name {
	case "id":
		return r.ID, true
	case "createdAt":
		if r.CreatedAt == "" {
			return nil, false
		}
		return r.CreatedAt, true
	}
	return r.Fields.Get(name)
}

// SearchText joins the id, every field value in order, and createdAt with
// single spaces.
func (r Record) SearchText() string {
	parts := make([]string, 0, len(r.Fields)+2)
	parts = append(parts, r.ID)
	for _, fl := range r.Fields {
		parts = append(parts, Stringify(fl.Value))
	}
	if r.CreatedAt != "" {
		parts = append(parts, r.CreatedAt)
	}
	return strings.Join(parts, " ")
}

// MarshalJSON renders the record as one flat document: id, the fields in
// order, then createdAt.
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(Fields, 0, len(r.Fields)+2)
	flat = append(flat, Field{Name: "id", Value: r.ID})
	for _, fl := range r.Fields {
		if fl.Name == "id" || fl.Name == "createdAt" {
			continue
		}
		flat = append(flat, fl)
	}
	if r.CreatedAt != "" {
		flat = append(flat, Field{Name: "createdAt", Value: r.CreatedAt})
	}
	return flat.MarshalJSON()
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var flat Fields
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	r.ID = flat.String("id")
	r.CreatedAt = flat.String("createdAt")
	flat.Delete("id")
	flat.Delete("createdAt")
	r.Fields = flat
	return nil
}

// Stringify renders a field value the way it appears in search text and
// exports.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case fmt.Stringer:
		return t.String()
	case map[string]interface{}:
		return stringifyMap(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// stringifyMap renders a mapping as compact JSON with sorted keys so that
// search text is stable.
func stringifyMap(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(Fields, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, Field{Name: k, Value: m[k]})
	}
	b, err := ordered.MarshalJSON()
	if err != nil {
		return fmt.Sprint(m)
	}
	return string(b)
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time formatted as a createdAt value.
func Now() string {
	return FormatTime(time.Now())
}

// FormatTime formats t as a createdAt value.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
