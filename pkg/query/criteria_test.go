package query

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/ssargent/recordkit/pkg/schema"
	"github.com/ssargent/recordkit/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peopleFields() *schema.FieldList {
	id := schema.NewField("id", value.KindLong)
	id.PrimaryKey = true
	return schema.MustFieldList(
		id,
		schema.NewField("name", value.KindString),
		schema.NewField("age", value.KindInteger),
	)
}

func newPerson(fields *schema.FieldList, id int64, name string, age int32) *schema.Record {
	return schema.NewRecord(fields).
		MustSet("id", value.NewLong(id)).
		MustSet("name", value.NewString(name)).
		MustSet("age", value.NewInteger(age))
}

func truth(fields *schema.FieldList, b bool) *Condition {
	id, _ := fields.Lookup("id")
	if b {
		return MustCondition(id, NotIsNull)
	}
	return MustCondition(id, IsNull)
}

func TestCriteria_Empty(t *testing.T) {
	fields := peopleFields()
	r := newPerson(fields, 1, "ann", 30)

	for _, c := range []*Criteria{NewCriteria(), NewOrCriteria(), nil} {
		ok, err := c.Check(r)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := NewCriteria().AddConditions(true).Check(r)
	require.NoError(t, err)
	assert.True(t, ok, "empty AND segment holds")

	ok, err = NewCriteria().AddConditions(false).Check(r)
	require.NoError(t, err)
	assert.False(t, ok, "empty OR segment fails")
}

// Every combination of passing and failing conditions must fold to "all"
// under AND and to "any" under OR, whatever the position of the passing one.
func TestCriteria_FoldMatchesAllAndAny(t *testing.T) {
	fields := peopleFields()
	r := newPerson(fields, 1, "ann", 30)

	for n := 1; n <= 4; n++ {
		for mask := 0; mask < 1<<n; mask++ {
			conds := make([]*Condition, n)
			all, anyTrue := true, false
			for i := range conds {
				b := mask&(1<<i) != 0
				conds[i] = truth(fields, b)
				all = all && b
				anyTrue = anyTrue || b
			}

			t.Run(fmt.Sprintf("n=%d mask=%b", n, mask), func(t *testing.T) {
				ok, err := NewCriteria().AddConditions(true, conds...).Check(r)
				require.NoError(t, err)
				assert.Equal(t, all, ok, "AND segment")

				ok, err = NewCriteria().AddConditions(false, conds...).Check(r)
				require.NoError(t, err)
				assert.Equal(t, anyTrue, ok, "OR segment")

				and, or := NewCriteria(), NewOrCriteria()
				for _, cond := range conds {
					and.AddConditions(true, cond)
					or.AddConditions(true, cond)
				}
				ok, err = and.Check(r)
				require.NoError(t, err)
				assert.Equal(t, all, ok, "AND criteria")

				ok, err = or.Check(r)
				require.NoError(t, err)
				assert.Equal(t, anyTrue, ok, "OR criteria")
			})
		}
	}
}

func TestCriteria_Nested(t *testing.T) {
	fields := peopleFields()
	name, _ := fields.Lookup("name")
	age, _ := fields.Lookup("age")

	adults := Where(MustCondition(age, GE, value.NewInteger(18)))
	annOrBob := NewCriteria().AddConditions(false,
		MustCondition(name, EQ, value.NewString("ann")),
		MustCondition(name, EQ, value.NewString("bob")),
	)
	c := NewCriteria().AddCriteria(adults).AddNegated(annOrBob)

	tests := []struct {
		record *schema.Record
		want   bool
	}{
		{newPerson(fields, 1, "ann", 30), false},
		{newPerson(fields, 2, "cid", 30), true},
		{newPerson(fields, 3, "cid", 12), false},
		{newPerson(fields, 4, "bob", 12), false},
	}
	for _, tt := range tests {
		ok, err := c.Check(tt.record)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "%s", tt.record)
	}
	assert.Equal(t, "(age GE 18) AND NOT (name EQ 'ann' OR name EQ 'bob')", c.String())
}

func TestCriteria_Add(t *testing.T) {
	fields := peopleFields()
	name, _ := fields.Lookup("name")
	age, _ := fields.Lookup("age")

	c := NewCriteria().
		Add(MustCondition(age, GT, value.NewInteger(20))).
		Add(MustCondition(name, LikeLeft, value.NewString("a")))
	require.Len(t, c.Segments(), 1)
	assert.Len(t, c.Segments()[0].Conditions(), 2)
	assert.True(t, c.Segments()[0].And())

	c.AddCriteria(NewCriteria())
	c.Add(MustCondition(age, LT, value.NewInteger(40)))
	assert.Len(t, c.Segments(), 3, "a nested segment is never extended")

	ok, err := c.Check(newPerson(fields, 1, "ann", 30))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Check(newPerson(fields, 1, "ann", 50))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCriteria_And(t *testing.T) {
	fields := peopleFields()
	age, _ := fields.Lookup("age")

	c := And(Where(MustCondition(age, GT, value.NewInteger(20))), nil)
	assert.Len(t, c.Segments(), 1)
	assert.True(t, And(nil, NewCriteria()).IsEmpty())
}

func TestCriteria_ErrorsPropagate(t *testing.T) {
	fields := schema.MustFieldList(schema.NewField("age", value.KindString))
	r := schema.NewRecord(fields).MustSet("age", value.NewString("old"))

	_, err := Where(MustCondition(ageField, GT, value.NewInteger(3))).Check(r)
	assert.True(t, errors.Is(err, value.ErrNotComparable))
}

func TestAfterKey(t *testing.T) {
	fields := peopleFields()
	id, _ := fields.Lookup("id")
	age, _ := fields.Lookup("age")
	order := schema.NewOrder(schema.Desc(age), schema.Asc(id))

	var records []*schema.Record
	for i := int64(0); i < 12; i++ {
		records = append(records, newPerson(fields, i, "p", int32(20+i%3)))
	}

	for _, pivot := range records {
		key, err := pivot.OrderKey(order)
		require.NoError(t, err)

		for _, inclusive := range []bool{false, true} {
			after, err := AfterKey(order, key, inclusive)
			require.NoError(t, err)
			require.NotNil(t, after.Bound())
			assert.Equal(t, inclusive, after.Bound().Inclusive)

			for _, r := range records {
				c, err := order.CompareRecords(r, pivot)
				require.NoError(t, err)
				want := c > 0 || (inclusive && c == 0)

				got, err := after.Check(r)
				require.NoError(t, err)
				assert.Equal(t, want, got, "%s after %s (inclusive=%v)", r, key, inclusive)
			}
		}
	}

	_, err := AfterKey(order, schema.NewOrderKey().Add(value.NewInteger(1), true), false)
	assert.True(t, errors.Is(err, schema.ErrArityMismatch))
}

func TestCriteria_Bound(t *testing.T) {
	fields := peopleFields()
	id, _ := fields.Lookup("id")
	order := schema.NewOrder(schema.Asc(id))
	after, err := AfterKey(order, schema.NewOrderKey().Add(value.NewLong(5), true), false)
	require.NoError(t, err)

	base := Where(MustCondition(id, NE, value.NewLong(7)))
	assert.Nil(t, base.Bound())
	assert.Same(t, after.Bound(), And(base, after).Bound())
	assert.Nil(t, NewCriteria().AddNegated(after).Bound())
	assert.Nil(t, NewOrCriteria().AddCriteria(base).AddCriteria(after).Bound())
}

func TestSpec_Build(t *testing.T) {
	fields := peopleFields()
	raw := `{
		"or": true,
		"conditions": [{"field": "name", "op": "like_left_nocase", "values": ["A"]}],
		"criteria": [
			{"conditions": [{"field": "age", "op": "BETWEEN", "values": [40, 50]}]},
			{"not": true, "conditions": [{"field": "id", "op": "NOT_IS_NULL"}]}
		]
	}`
	var spec Spec
	require.NoError(t, json.Unmarshal([]byte(raw), &spec))

	c, err := spec.Build(fields)
	require.NoError(t, err)
	require.Len(t, c.Segments(), 3)
	assert.False(t, c.IsAnd())

	tests := []struct {
		record *schema.Record
		want   bool
	}{
		{newPerson(fields, 1, "ann", 30), true},
		{newPerson(fields, 2, "bob", 45), true},
		{newPerson(fields, 3, "bob", 30), false},
	}
	for _, tt := range tests {
		ok, err := c.Check(tt.record)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "%s", tt.record)
	}

	_, err = Spec{Conditions: []ConditionSpec{{Field: "nope", Op: "EQ", Values: []any{1.0}}}}.Build(fields)
	assert.True(t, errors.Is(err, schema.ErrFieldNotFound))

	_, err = Spec{Conditions: []ConditionSpec{{Field: "age", Op: "EQ", Values: []any{true}}}}.Build(fields)
	assert.True(t, errors.Is(err, value.ErrWrongKind))
}

func TestCriteria_Key(t *testing.T) {
	fields := peopleFields()
	name, _ := fields.Lookup("name")
	age, _ := fields.Lookup("age")

	quoted := Where(MustCondition(name, EQ, value.NewString("a' OR name EQ 'b")))
	either := NewOrCriteria().AddConditions(false,
		MustCondition(name, EQ, value.NewString("a")),
		MustCondition(name, EQ, value.NewString("b")),
	)
	require.Equal(t, quoted.String(), either.String())
	assert.NotEqual(t, quoted.Key(), either.Key())

	nested := NewCriteria().AddNegated(Where(MustCondition(age, GT, value.NewInteger(3))))
	plain := Where(MustCondition(age, GT, value.NewInteger(3)))
	assert.NotEqual(t, nested.Key(), plain.Key())

	again := Where(MustCondition(age, GT, value.NewInteger(3)))
	assert.Equal(t, plain.Key(), again.Key())
}

func TestParseWhere(t *testing.T) {
	fields := peopleFields()

	tests := []struct {
		expr    string
		want    string
		wantErr error
	}{
		{expr: "age BETWEEN 18, 65", want: "age BETWEEN 18, 65"},
		{expr: "name like_left_nocase ann", want: "name LIKE_LEFT_NOCASE 'ann'"},
		{expr: "id >= 100", want: "id GE 100"},
		{expr: "id not_is_null", want: "id NOT_IS_NULL"},
		{expr: "id IN_LIST 1,2,3", want: "id IN_LIST 1, 2, 3"},
		{expr: "  age   BETWEEN  18,65 ", want: "age BETWEEN 18, 65"},
		{expr: "name\tEQ\tann lee", want: "name EQ 'ann lee'"},
		{expr: "weight EQ 3", wantErr: schema.ErrFieldNotFound},
		{expr: "age", wantErr: ErrInvalidCondition},
		{expr: "age EQ", wantErr: ErrInvalidCondition},
		{expr: "age ~ 3", wantErr: ErrInvalidCondition},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			cond, err := ParseWhere(fields, tt.expr)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cond.String())
		})
	}

	c, err := ParseCriteria(fields, []string{"age GT 20", "name EQ bob"}, true)
	require.NoError(t, err)
	ok, err := c.Check(newPerson(fields, 1, "bob", 10))
	require.NoError(t, err)
	assert.True(t, ok)
}
