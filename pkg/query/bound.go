package query

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/ssargent/recordkit/pkg/schema"
)

// KeyBound is a lower bound on the sort key of records under an order
type KeyBound struct {
	Order     *schema.Order
	Key       *schema.OrderKey
	Inclusive bool
}

func (b *KeyBound) String() string {
	op := ">"
	if b.Inclusive {
		op = ">="
	}
	return fmt.Sprintf("key(%s) %s %s", b.Order, op, b.Key)
}

// AfterKey returns the criteria matching records whose key under order sorts
// after key, or at key when inclusive. For an order (a, b) it expands to
//
//	a > ka OR (a = ka AND b > kb) [OR (a = ka AND b = kb)]
//
// with > read as < on descending segments. The bound is kept on the result
// so a persistor can seek instead of scanning.
func AfterKey(order *schema.Order, key *schema.OrderKey, inclusive bool) (*Criteria, error) {
	if order.Len() != key.Len() {
		return nil, errors.Wrapf(schema.ErrArityMismatch, "order of %d segments against key of %d", order.Len(), key.Len())
	}

	c := NewOrCriteria()
	for i := 0; i < order.Len(); i++ {
		conds, err := prefixEqual(order, key, i)
		if err != nil {
			return nil, err
		}
		seg := order.Segment(i)
		op := GT
		if !seg.Ascending {
			op = LT
		}
		past, err := NewCondition(seg.Field, op, key.Segment(i).Value)
		if err != nil {
			return nil, err
		}
		c.AddConditions(true, append(conds, past)...)
	}
	if inclusive {
		conds, err := prefixEqual(order, key, order.Len())
		if err != nil {
			return nil, err
		}
		c.AddConditions(true, conds...)
	}
	c.bound = &KeyBound{Order: order, Key: key, Inclusive: inclusive}
	return c, nil
}

func prefixEqual(order *schema.Order, key *schema.OrderKey, n int) ([]*Condition, error) {
	conds := make([]*Condition, 0, n+1)
	for j := 0; j < n; j++ {
		cond, err := NewCondition(order.Segment(j).Field, EQ, key.Segment(j).Value)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}
