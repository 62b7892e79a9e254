package query

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/ssargent/recordkit/pkg/schema"
	"github.com/ssargent/recordkit/pkg/value"
)

// ConditionSpec is the JSON form of a condition
type ConditionSpec struct {
	Field  string `json:"field" yaml:"field"`
	Op     string `json:"op" yaml:"op"`
	Values []any  `json:"values,omitempty" yaml:"values,omitempty"`
}

// Spec is the JSON form of a criteria. Conditions form one segment joined
// by the criteria operator, each nested spec adds another.
type Spec struct {
	Or         bool            `json:"or,omitempty" yaml:"or,omitempty"`
	Not        bool            `json:"not,omitempty" yaml:"not,omitempty"`
	Conditions []ConditionSpec `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Criteria   []Spec          `json:"criteria,omitempty" yaml:"criteria,omitempty"`
}

// Build resolves the spec against fields
func (s Spec) Build(fields *schema.FieldList) (*Criteria, error) {
	c := NewCriteria()
	if s.Or {
		c = NewOrCriteria()
	}
	if len(s.Conditions) > 0 {
		conds := make([]*Condition, len(s.Conditions))
		for i, cs := range s.Conditions {
			cond, err := cs.Build(fields)
			if err != nil {
				return nil, err
			}
			conds[i] = cond
		}
		c.AddConditions(!s.Or, conds...)
	}
	for _, nested := range s.Criteria {
		n, err := nested.build(fields)
		if err != nil {
			return nil, err
		}
		if nested.Not {
			c.AddNegated(n)
		} else {
			c.AddCriteria(n)
		}
	}
	if s.Not {
		return NewCriteria().AddNegated(c), nil
	}
	return c, nil
}

// build ignores Not, which the parent applies
func (s Spec) build(fields *schema.FieldList) (*Criteria, error) {
	s.Not = false
	return s.Build(fields)
}

// Build resolves the condition field and converts the operand values to
// the field kind
func (cs ConditionSpec) Build(fields *schema.FieldList) (*Condition, error) {
	field, ok := fields.Lookup(cs.Field)
	if !ok {
		return nil, errors.Wrapf(schema.ErrFieldNotFound, "%q", cs.Field)
	}
	op, err := ParseOperator(cs.Op)
	if err != nil {
		return nil, err
	}
	values := make([]*value.Value, len(cs.Values))
	for i, raw := range cs.Values {
		v, err := value.FromAny(field.Kind, raw)
		if err != nil {
			return nil, errors.WithMessagef(err, "condition on %q", cs.Field)
		}
		values[i] = v
	}
	return NewCondition(field, op, values...)
}

// ParseWhere reads a condition written as "field OP v1,v2". Values are
// parsed as the field kind; IS_NULL takes none.
//
//	age BETWEEN 18,65
//	name like_left_nocase ann
//	id >= 100
func ParseWhere(fields *schema.FieldList, expr string) (*Condition, error) {
	name, rest := cutToken(expr)
	opText, rest := cutToken(rest)
	if opText == "" {
		return nil, errors.Wrapf(ErrInvalidCondition, "expected \"field OP values\", got %q", expr)
	}
	field, ok := fields.Lookup(name)
	if !ok {
		return nil, errors.Wrapf(schema.ErrFieldNotFound, "%q", name)
	}
	op, err := ParseOperator(opText)
	if err != nil {
		return nil, err
	}

	var values []*value.Value
	if rest != "" {
		for _, text := range strings.Split(rest, ",") {
			v, err := value.Parse(field.Kind, strings.TrimSpace(text))
			if err != nil {
				return nil, errors.WithMessagef(err, "condition on %q", field.Key())
			}
			values = append(values, v)
		}
	}
	return NewCondition(field, op, values...)
}

// cutToken splits the first whitespace separated token off s
func cutToken(s string) (token, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// ParseCriteria joins every expression with AND, or with OR when or is set
func ParseCriteria(fields *schema.FieldList, exprs []string, or bool) (*Criteria, error) {
	conds := make([]*Condition, 0, len(exprs))
	for _, expr := range exprs {
		cond, err := ParseWhere(fields, expr)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	if len(conds) == 0 {
		return NewCriteria(), nil
	}
	return NewCriteria().AddConditions(!or, conds...), nil
}
