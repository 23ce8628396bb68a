package database

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Record is a single row as returned by a backend, keyed by column name.
type Record map[string]any

// ID returns the record's "id" column as a string.
func (r Record) ID() string {
	return r.String("id")
}

// String returns the column as a string, or "" when absent or null.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// Float returns the column as a float64. Numeric strings (as produced by
// DECIMAL columns) are parsed; anything else yields 0.
func (r Record) Float(key string) float64 {
	f, _ := toFloat(r[key])
	return f
}

// timeLayouts are the textual time formats Time accepts, covering RFC3339
// writes and the DATETIME/TIMESTAMP text drivers return without parseTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Time returns the column as a time. Drivers that parse timestamps hand back
// time.Time; text columns are parsed. ok is false when absent or unreadable.
func (r Record) Time(key string) (time.Time, bool) {
	switch t := r[key].(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
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
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f, err == nil
	}
	return 0, false
}

// Filter maps column names to the value they must match.
// nil matches NULL, a slice matches any of its elements, anything else
// matches by equality.
type Filter map[string]any

// Op is a predicate operator.
type Op int

const (
	OpEq Op = iota + 1
	OpIn
	OpIsNull
)

// Predicate is one conjunctive condition of a query.
type Predicate struct {
	Column string
	Op     Op
	Value  any
	Values []any
}

// Eq builds an equality predicate.
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpEq, Value: value}
}

// TranslateFilter turns a filter map into predicates, sorted by column so
// that generated statements are deterministic.
func TranslateFilter(filter Filter) []Predicate {
	if len(filter) == 0 {
		return nil
	}

	columns := make([]string, 0, len(filter))
	for col := range filter {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	preds := make([]Predicate, 0, len(columns))
	for _, col := range columns {
		value := filter[col]
		if value == nil {
			preds = append(preds, Predicate{Column: col, Op: OpIsNull})
			continue
		}
		if values, ok := sliceValues(value); ok {
			preds = append(preds, Predicate{Column: col, Op: OpIn, Values: values})
			continue
		}
		preds = append(preds, Eq(col, value))
	}
	return preds
}

// sliceValues reports whether v is a slice or array (other than []byte) and
// returns its elements.
func sliceValues(v any) ([]any, bool) {
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Order describes a single ORDER BY column.
type Order struct {
	Column string
	Desc   bool
}

// ParseSort parses a sort spec such as "-created_date". A leading "-" means
// descending; an empty spec means no ordering.
func ParseSort(spec string) *Order {
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "-" {
		return nil
	}
	if strings.HasPrefix(spec, "-") {
		return &Order{Column: spec[1:], Desc: true}
	}
	return &Order{Column: spec}
}

// Query is the read shape handed to a Backend.
type Query struct {
	Where []Predicate
	Order *Order
	Limit int
}
