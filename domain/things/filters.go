package things

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/pgutils"
)

// Attribute filter operators.
const (
	OpEq       = "eq"
	OpNeq      = "neq"
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpContains = "contains"
	OpExists   = "exists"
	OpIn       = "in"
)

// AttributeFilter matches against a dot path into the attribute bag, e.g.
// {"path": "address.city", "op": "eq", "value": "Oslo"}.
type AttributeFilter struct {
	Path  string `json:"path"`
	Op    string `json:"op"`
	Value any    `json:"value,omitempty"`
}

// pathArray renders a dot path as a Postgres text[] literal for the #> and
// #>> operators.
func (f AttributeFilter) pathArray() string {
	return pgutils.FormatTextArray(strings.Split(f.Path, "."))
}

// apply appends the filter's predicate to a select query. Comparisons against
// numbers cast the extracted text to numeric; everything else compares as
// jsonb or text.
func (f AttributeFilter) apply(q *bun.SelectQuery) (*bun.SelectQuery, error) {
	if f.Path == "" {
		return nil, apperror.NewValidation("filters.path", "filter path is required")
	}
	path := f.pathArray()

	switch f.Op {
	case OpEq, OpNeq:
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, apperror.NewValidation("filters.value", "filter value is not serializable")
		}
		op := "="
		if f.Op == OpNeq {
			op = "IS DISTINCT FROM"
		}
		return q.Where(fmt.Sprintf("attributes #> ?::text[] %s ?::jsonb", op), path, string(value)), nil

	case OpGt, OpGte, OpLt, OpLte:
		op := map[string]string{OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<="}[f.Op]
		switch v := f.Value.(type) {
		case float64, int, int64:
			return q.Where(fmt.Sprintf("(attributes #>> ?::text[])::numeric %s ?", op), path, v), nil
		case string:
			return q.Where(fmt.Sprintf("attributes #>> ?::text[] %s ?", op), path, v), nil
		default:
			return nil, apperror.NewValidation("filters.value", "range filters need a number or string value")
		}

	case OpContains:
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, apperror.NewValidation("filters.value", "filter value is not serializable")
		}
		return q.Where("attributes #> ?::text[] @> ?::jsonb", path, string(value)), nil

	case OpExists:
		return q.Where("attributes #> ?::text[] IS NOT NULL", path), nil

	case OpIn:
		values, ok := f.Value.([]any)
		if !ok || len(values) == 0 {
			return nil, apperror.NewValidation("filters.value", "in filter needs a non-empty array value")
		}
		texts := make([]string, 0, len(values))
		for _, v := range values {
			switch tv := v.(type) {
			case string:
				texts = append(texts, tv)
			default:
				data, err := json.Marshal(v)
				if err != nil {
					return nil, apperror.NewValidation("filters.value", "filter value is not serializable")
				}
				texts = append(texts, string(data))
			}
		}
		return q.Where("attributes #>> ?::text[] IN (?)", path, bun.In(texts)), nil
	}

	return nil, apperror.NewValidation("filters.op", "unknown filter operator "+f.Op)
}
