package store

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
)

// Query selects records from one collection.
//
// Semantics:
//
//	SELECT data FROM <Collection> WHERE <Where...> ORDER BY <OrderBy>, id
//
// Where predicates are ANDed and compile to parameterized SQL. Match, when
// set, filters the decoded records in Go after the SQL predicates.
type Query struct {
	Collection string
	Where      []Predicate

	// OrderBy is a record field; empty means id. The id tiebreaker is always
	// appended so results are deterministic.
	OrderBy string
	Desc    bool

	// Limit caps the number of records yielded; 0 means no limit.
	Limit int

	Match func(record.Record) bool
}

// Predicate is a filter condition on a record field.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Equals matches field = value. A nil value matches absent or null fields.
type Equals struct {
	Field string
	Value any
}

// NotEquals matches field != value. Records without the field do not match.
type NotEquals struct {
	Field string
	Value any
}

// CompareOp is a comparison operator for Compare.
type CompareOp string

const (
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
)

// Compare matches field <op> value.
type Compare struct {
	Field string
	Op    CompareOp
	Value any
}

// HasPrefix matches string fields starting with Prefix.
type HasPrefix struct {
	Field  string
	Prefix string
}

// Contains matches string fields containing Substring, case-insensitively.
type Contains struct {
	Field     string
	Substring string
}

// IsSet matches records where the field is present and not null.
type IsSet struct {
	Field string
}

// AnyOf matches when at least one of its predicates matches.
type AnyOf []Predicate

func (Equals) predicateNode()    {}
func (NotEquals) predicateNode() {}
func (Compare) predicateNode()   {}
func (HasPrefix) predicateNode() {}
func (Contains) predicateNode()  {}
func (IsSet) predicateNode()     {}
func (AnyOf) predicateNode()     {}

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// fieldExpr returns the JSON extraction expression for field. The text must
// match the expression indexes in schema.sql exactly.
func fieldExpr(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return fmt.Sprintf("json_extract(data, '$.%s')", field), nil
}

func checkCollection(name string) error {
	if !domain.IsCollection(name) {
		return fmt.Errorf("unknown collection %q", name)
	}
	return nil
}

// sqlValue converts a record value to its json_extract representation.
// JSON booleans extract as integers 1 and 0.
func sqlValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	}
	// Named string types (statuses, enums) bind as plain strings.
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

// compileWhere compiles the predicates to a WHERE clause (possibly empty).
// All values are parameterized, never interpolated.
func compileWhere(preds []Predicate) (string, []any, error) {
	if len(preds) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sqlText, ps, err := compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sqlText)
		params = append(params, ps...)
	}
	return " WHERE " + strings.Join(parts, " AND "), params, nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		expr, err := fieldExpr(pred.Field)
		if err != nil {
			return "", nil, err
		}
		if pred.Value == nil {
			return expr + " IS NULL", nil, nil
		}
		return expr + " = ?", []any{sqlValue(pred.Value)}, nil
	case NotEquals:
		expr, err := fieldExpr(pred.Field)
		if err != nil {
			return "", nil, err
		}
		return expr + " != ?", []any{sqlValue(pred.Value)}, nil
	case Compare:
		expr, err := fieldExpr(pred.Field)
		if err != nil {
			return "", nil, err
		}
		switch pred.Op {
		case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		default:
			return "", nil, fmt.Errorf("invalid compare operator %q", pred.Op)
		}
		return fmt.Sprintf("%s %s ?", expr, pred.Op), []any{sqlValue(pred.Value)}, nil
	case HasPrefix:
		expr, err := fieldExpr(pred.Field)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("substr(%s, 1, ?) = ?", expr), []any{len([]rune(pred.Prefix)), pred.Prefix}, nil
	case Contains:
		expr, err := fieldExpr(pred.Field)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("instr(lower(%s), lower(?)) > 0", expr), []any{pred.Substring}, nil
	case IsSet:
		expr, err := fieldExpr(pred.Field)
		if err != nil {
			return "", nil, err
		}
		return expr + " IS NOT NULL", nil, nil
	case AnyOf:
		if len(pred) == 0 {
			return "0", nil, nil
		}
		parts := make([]string, 0, len(pred))
		var params []any
		for _, inner := range pred {
			sqlText, ps, err := compilePredicate(inner)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sqlText)
			params = append(params, ps...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", params, nil
	case nil:
		return "", nil, fmt.Errorf("nil predicate")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileQuery builds the SELECT for q without LIMIT/OFFSET; batching
// appends those.
func compileQuery(q Query) (string, []any, error) {
	if err := checkCollection(q.Collection); err != nil {
		return "", nil, err
	}
	where, params, err := compileWhere(q.Where)
	if err != nil {
		return "", nil, fmt.Errorf("compile query on %s: %w", q.Collection, err)
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	order := "id " + dir
	if q.OrderBy != "" && q.OrderBy != "id" {
		expr, err := fieldExpr(q.OrderBy)
		if err != nil {
			return "", nil, fmt.Errorf("compile query on %s: %w", q.Collection, err)
		}
		order = fmt.Sprintf("%s %s, id %s", expr, dir, dir)
	}

	sqlText := fmt.Sprintf("SELECT data FROM %s%s ORDER BY %s", q.Collection, where, order)
	return sqlText, params, nil
}

// compileCount builds a COUNT(*) over the predicates of q.
func compileCount(q Query) (string, []any, error) {
	if err := checkCollection(q.Collection); err != nil {
		return "", nil, err
	}
	where, params, err := compileWhere(q.Where)
	if err != nil {
		return "", nil, fmt.Errorf("compile count on %s: %w", q.Collection, err)
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.Collection, where), params, nil
}
