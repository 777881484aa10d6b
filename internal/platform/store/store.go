// Package store is the record store collaborator: named collections of
// documents with store-assigned ids and creation timestamps, plus a
// transactional primitive for multi-step writes.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Collection names used by the dashboards.
const (
	Patients          = "patients"
	Ward              = "ward"
	PharmacyInventory = "pharmacyinventory"
	Sales             = "sales"
	Attendance        = "attendance"
	Users             = "users"
	Accounts          = "accounts"
	Appointments      = "appointments"
	BirthRecords      = "birthrecords"
	Ambulance         = "ambulance"
)

// Store is implemented by every backend.
type Store interface {
	GetAll(ctx context.Context, collection string) ([]Record, error)
	GetWhere(ctx context.Context, collection string, preds ...Predicate) ([]Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, collection, id string, partial Fields) error
	Delete(ctx context.Context, collection, id string) error
	// Transact applies every op or none of them.
	Transact(ctx context.Context, ops ...Op) error
	Close(ctx context.Context) error
}

// Operator is a comparison used by GetWhere.
type Operator string

const (
	Eq Operator = "=="
	Ne Operator = "!="
	Lt Operator = "<"
	Le Operator = "<="
	Gt Operator = ">"
	Ge Operator = ">="
)

// sqlOperators maps operators to SQL; also used to validate input.
var sqlOperators = map[Operator]string{
	Eq: "=", Ne: "<>", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
}

// ParseOperator validates an operator string.
func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if _, ok := sqlOperators[op]; !ok {
		return "", fmt.Errorf("unsupported operator %q", s)
	}
	return op, nil
}

// Predicate is one field comparison. String values compare lexically on the
// field's string rendering (ISO timestamps order correctly); numeric values
// compare numerically. Records lacking the field never match.
type Predicate struct {
	Field string
	Op    Operator
	Value interface{}
}

// Where builds a Predicate.
func Where(field string, op Operator, value interface{}) Predicate {
	return Predicate{Field: field, Op: op, Value: value}
}

// Pushdown reports whether a backend may evaluate the predicate as a text
// comparison in the database.
func (p Predicate) Pushdown() bool {
	_, ok := p.Value.(string)
	return ok
}

// Match evaluates the predicate against a record.
func (p Predicate) Match(r Record) bool {
	v, ok := r.Value(p.Field)
	if !ok || v == nil {
		return false
	}
	var cmp int
	if want, isNum := numeric(p.Value); isNum {
		have, err := strconv.ParseFloat(strings.TrimSpace(Stringify(v)), 64)
		if err != nil {
			return false
		}
		switch {
		case have < want:
			cmp = -1
		case have > want:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(Stringify(v), Stringify(p.Value))
	}
	switch p.Op {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Ge:
		return cmp >= 0
	}
	return false
}

func numeric(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// MatchAll reports whether r satisfies every predicate.
func MatchAll(r Record, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Match(r) {
			return false
		}
	}
	return true
}

// Op is one step of a transaction.
type Op interface {
	collection() string
}

// AddOp inserts a record. ID may be preassigned with NewID so callers can
// reference the new record; the store assigns one otherwise.
type AddOp struct {
	Collection string
	ID         string
	Fields     Fields
}

// UpdateOp merges Fields into an existing record.
type UpdateOp struct {
	Collection string
	ID         string
	Fields     Fields
}

// DeleteOp removes a record.
type DeleteOp struct {
	Collection string
	ID         string
}

// MutateOp is a read-modify-write of one record. Apply sees the current
// state and edits it in place; returning an error aborts the transaction.
// ID and CreatedAt changes made by Apply are ignored.
type MutateOp struct {
	Collection string
	ID         string
	Apply      func(*Record) error
}

func (o AddOp) collection() string    { return o.Collection }
func (o UpdateOp) collection() string { return o.Collection }
func (o DeleteOp) collection() string { return o.Collection }
func (o MutateOp) collection() string { return o.Collection }
