package query

import (
	"strings"

	"github.com/ssargent/recordkit/pkg/schema"
)

// Segment is either a list of conditions joined by one AND/OR operator or a
// nested criteria, optionally negated
type Segment struct {
	conditions []*Condition
	and        bool
	nested     *Criteria
	negated    bool
}

// Conditions returns the conditions of a condition segment
func (s *Segment) Conditions() []*Condition {
	return append([]*Condition{}, s.conditions...)
}

// And reports whether the conditions of the segment are joined by AND
func (s *Segment) And() bool {
	return s.and
}

// Nested returns the nested criteria and whether it is negated, or nil for
// a condition segment
func (s *Segment) Nested() (*Criteria, bool) {
	return s.nested, s.negated
}

// Check evaluates the segment. An empty AND segment holds, an empty OR
// segment does not.
func (s *Segment) Check(r *schema.Record) (bool, error) {
	if s.nested != nil {
		ok, err := s.nested.Check(r)
		if err != nil {
			return false, err
		}
		return ok != s.negated, nil
	}
	for _, c := range s.conditions {
		ok, err := c.CheckRecord(r)
		if err != nil {
			return false, err
		}
		if ok != s.and {
			return ok, nil
		}
	}
	return s.and, nil
}

func (s *Segment) String() string {
	if s.nested != nil {
		if s.negated {
			return "NOT (" + s.nested.String() + ")"
		}
		return "(" + s.nested.String() + ")"
	}
	parts := make([]string, len(s.conditions))
	for i, c := range s.conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, joiner(s.and))
}

// Criteria is a tree of condition segments folded left to right by its own
// AND/OR operator. An empty criteria matches every record.
type Criteria struct {
	segments []*Segment
	and      bool
	bound    *KeyBound
}

// NewCriteria returns an empty criteria joining its segments with AND
func NewCriteria() *Criteria {
	return &Criteria{and: true}
}

// NewOrCriteria returns an empty criteria joining its segments with OR
func NewOrCriteria() *Criteria {
	return &Criteria{}
}

// Where is shorthand for an AND criteria over conds
func Where(conds ...*Condition) *Criteria {
	return NewCriteria().AddConditions(true, conds...)
}

// Add appends cond to the last condition segment, starting a new AND
// segment when there is none
func (c *Criteria) Add(cond *Condition) *Criteria {
	if n := len(c.segments); n > 0 && c.segments[n-1].nested == nil {
		last := c.segments[n-1]
		last.conditions = append(last.conditions, cond)
		return c
	}
	c.segments = append(c.segments, &Segment{conditions: []*Condition{cond}, and: true})
	return c
}

// AddConditions appends a new segment joining conds with AND or OR
func (c *Criteria) AddConditions(and bool, conds ...*Condition) *Criteria {
	c.segments = append(c.segments, &Segment{conditions: append([]*Condition{}, conds...), and: and})
	return c
}

// AddCriteria appends nested as a segment
func (c *Criteria) AddCriteria(nested *Criteria) *Criteria {
	c.segments = append(c.segments, &Segment{nested: nested})
	return c
}

// AddNegated appends the complement of nested as a segment
func (c *Criteria) AddNegated(nested *Criteria) *Criteria {
	c.segments = append(c.segments, &Segment{nested: nested, negated: true})
	return c
}

// And returns a criteria holding when both a and b hold. Nil or empty
// arguments are skipped.
func And(a, b *Criteria) *Criteria {
	out := NewCriteria()
	for _, c := range []*Criteria{a, b} {
		if c != nil && !c.IsEmpty() {
			out.AddCriteria(c)
		}
	}
	return out
}

func (c *Criteria) IsEmpty() bool {
	return c == nil || len(c.segments) == 0
}

// IsAnd reports whether segments are joined by AND
func (c *Criteria) IsAnd() bool {
	return c.and
}

func (c *Criteria) Segments() []*Segment {
	return append([]*Segment{}, c.segments...)
}

// Check evaluates the criteria against r. AND stops at the first failing
// segment and OR at the first passing one.
func (c *Criteria) Check(r *schema.Record) (bool, error) {
	if c.IsEmpty() {
		return true, nil
	}
	for _, s := range c.segments {
		ok, err := s.Check(r)
		if err != nil {
			return false, err
		}
		if ok != c.and {
			return ok, nil
		}
	}
	return c.and, nil
}

// Bound returns the key bound every matching record must satisfy, if the
// criteria carries one. Bounds inside OR or negated segments are ignored.
func (c *Criteria) Bound() *KeyBound {
	if c == nil {
		return nil
	}
	if c.bound != nil {
		return c.bound
	}
	if !c.and && len(c.segments) > 1 {
		return nil
	}
	for _, s := range c.segments {
		if s.nested == nil || s.negated {
			continue
		}
		if b := s.nested.Bound(); b != nil {
			return b
		}
	}
	return nil
}

func (c *Criteria) String() string {
	if c.IsEmpty() {
		return "TRUE"
	}
	parts := make([]string, len(c.segments))
	for i, s := range c.segments {
		parts[i] = s.String()
		if s.nested == nil && len(c.segments) > 1 && len(s.conditions) > 1 {
			parts[i] = "(" + parts[i] + ")"
		}
	}
	return strings.Join(parts, joiner(c.and))
}

func joiner(and bool) string {
	if and {
		return " AND "
	}
	return " OR "
}

// Key renders the criteria unambiguously: criteria that render to the same
// key select the same records. String is for display and may collide.
func (c *Criteria) Key() string {
	var b strings.Builder
	c.writeKey(&b)
	return b.String()
}

func (c *Criteria) writeKey(b *strings.Builder) {
	b.WriteString(keyJoiner(c.and))
	b.WriteByte('[')
	for i, s := range c.segments {
		if i > 0 {
			b.WriteByte(';')
		}
		switch {
		case s.nested != nil && s.negated:
			b.WriteString("NOT")
			s.nested.writeKey(b)
		case s.nested != nil:
			s.nested.writeKey(b)
		default:
			b.WriteString(keyJoiner(s.and))
			b.WriteByte('(')
			for j, cond := range s.conditions {
				if j > 0 {
					b.WriteByte(';')
				}
				cond.writeKey(b)
			}
			b.WriteByte(')')
		}
	}
	b.WriteByte(']')
}

func keyJoiner(and bool) string {
	if and {
		return "AND"
	}
	return "OR"
}
