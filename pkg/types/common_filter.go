package types

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq    CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt    CommonFilterOperator = "lt"
	CommonFilterOperatorLte   CommonFilterOperator = "lte"
	CommonFilterOperatorGt    CommonFilterOperator = "gt"
	CommonFilterOperatorGte   CommonFilterOperator = "gte"
	CommonFilterOperatorRange CommonFilterOperator = "range"
	CommonFilterOperatorIn    CommonFilterOperator = "in"
)

// CommonFilter is a single column predicate. The same value drives SQL
// generation (Build) and in-process evaluation (Match).
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

func Eq(field string, v any) *CommonFilter {
	return &CommonFilter{Field: field, Operator: CommonFilterOperatorEq, Values: []any{v}}
}

func NotEq(field string, v any) *CommonFilter {
	return &CommonFilter{Field: field, Operator: CommonFilterOperatorNotEq, Values: []any{v}}
}

func Lt(field string, v any) *CommonFilter {
	return &CommonFilter{Field: field, Operator: CommonFilterOperatorLt, Values: []any{v}}
}

func Lte(field string, v any) *CommonFilter {
	return &CommonFilter{Field: field, Operator: CommonFilterOperatorLte, Values: []any{v}}
}

func Gt(field string, v any) *CommonFilter {
	return &CommonFilter{Field: field, Operator: CommonFilterOperatorGt, Values: []any{v}}
}

func Gte(field string, v any) *CommonFilter {
	return &CommonFilter{Field: field, Operator: CommonFilterOperatorGte, Values: []any{v}}
}

// Between is inclusive on both ends.
func Between(field string, lo, hi any) *CommonFilter {
	return &CommonFilter{Field: field, Operator: CommonFilterOperatorRange, Values: []any{lo, hi}}
}

func In(field string, vs ...any) *CommonFilter {
	return &CommonFilter{Field: field, Operator: CommonFilterOperatorIn, Values: vs}
}

// Validate rejects filters that cannot be rendered safely. Field names are
// interpolated as column identifiers, so only [a-z0-9_] is accepted.
func (f *CommonFilter) Validate() error {
	if f == nil {
		return fmt.Errorf("nil filter")
	}
	if f.Field == "" || strings.Trim(f.Field, "abcdefghijklmnopqrstuvwxyz0123456789_") != "" {
		return fmt.Errorf("invalid filter field %q", f.Field)
	}
	switch f.Operator {
	case CommonFilterOperatorEq, CommonFilterOperatorNotEq, CommonFilterOperatorLt, CommonFilterOperatorLte,
		CommonFilterOperatorGt, CommonFilterOperatorGte, CommonFilterOperatorIn:
		if len(f.Values) == 0 {
			return fmt.Errorf("filter %s %s: missing value", f.Field, f.Operator)
		}
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return fmt.Errorf("filter %s range: two values required", f.Field)
		}
	default:
		return fmt.Errorf("filter %s: unsupported operator %q", f.Field, f.Operator)
	}
	return nil
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Values) == 0 {
		return
	}
	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: f.Field, Values: f.Values}.Build(builder)
	}
}

// Match evaluates the filter against a field value. NULL never matches,
// mirroring SQL comparison semantics.
func (f *CommonFilter) Match(field any) bool {
	if len(f.Values) == 0 {
		return false
	}
	switch f.Operator {
	case CommonFilterOperatorEq:
		c, ok := Compare(field, f.Values[0])
		return ok && c == 0
	case CommonFilterOperatorNotEq:
		c, ok := Compare(field, f.Values[0])
		return ok && c != 0
	case CommonFilterOperatorLt:
		c, ok := Compare(field, f.Values[0])
		return ok && c < 0
	case CommonFilterOperatorLte:
		c, ok := Compare(field, f.Values[0])
		return ok && c <= 0
	case CommonFilterOperatorGt:
		c, ok := Compare(field, f.Values[0])
		return ok && c > 0
	case CommonFilterOperatorGte:
		c, ok := Compare(field, f.Values[0])
		return ok && c >= 0
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return false
		}
		lo, ok1 := Compare(field, f.Values[0])
		hi, ok2 := Compare(field, f.Values[1])
		return ok1 && ok2 && lo >= 0 && hi <= 0
	case CommonFilterOperatorIn:
		for _, v := range f.Values {
			if c, ok := Compare(field, v); ok && c == 0 {
				return true
			}
		}
	}
	return false
}

// Compare orders two scalar values of compatible kinds. ok is false when
// either side is nil or the kinds cannot be compared.
func Compare(a, b any) (int, bool) {
	a, b = deref(a), deref(b)
	if a == nil || b == nil {
		return 0, false
	}
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case decimal.Decimal:
		switch bv := b.(type) {
		case decimal.Decimal:
			return av.Cmp(bv), true
		default:
			f, ok := toFloat(b)
			if !ok {
				return 0, false
			}
			return av.Cmp(decimal.NewFromFloat(f)), true
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.String && rb.Kind() == reflect.String {
		return strings.Compare(ra.String(), rb.String()), true
	}
	fa, ok1 := toFloat(a)
	fb, ok2 := toFloat(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	}
	return 0, true
}

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func toFloat(v any) (float64, bool) {
	if d, ok := v.(decimal.Decimal); ok {
		return d.InexactFloat64(), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
