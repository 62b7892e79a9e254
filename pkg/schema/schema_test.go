package schema

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/ssargent/recordkit/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personFields(t *testing.T) *FieldList {
	t.Helper()
	id := NewField("id", value.KindLong)
	id.PrimaryKey = true
	balance := NewField("balance", value.KindDecimal)
	balance.Scale = 2
	fields, err := NewFieldList(id, NewField("name", value.KindString), NewField("age", value.KindInteger), balance)
	require.NoError(t, err)
	return fields
}

func person(fields *FieldList, id int64, name string, age int32) *Record {
	return NewRecord(fields).
		MustSet("id", value.NewLong(id)).
		MustSet("name", value.NewString(name)).
		MustSet("age", value.NewInteger(age))
}

func TestFieldList(t *testing.T) {
	fields := personFields(t)

	assert.Equal(t, 4, fields.Len())
	assert.Equal(t, 2, fields.IndexOf("age"))
	assert.Equal(t, -1, fields.IndexOf("missing"))
	assert.Equal(t, []string{"id", "name", "age", "balance"}, fields.Aliases())

	pk := fields.PrimaryKey()
	require.Len(t, pk, 1)
	assert.Equal(t, "id", pk[0].Name)

	aliased := NewField("name", value.KindString)
	err := fields.Add(aliased)
	assert.True(t, errors.Is(err, ErrDuplicateField))

	aliased.Alias = "display_name"
	require.NoError(t, fields.Add(aliased))
	f, ok := fields.Lookup("display_name")
	require.True(t, ok)
	assert.Equal(t, "name", f.Name)
}

func TestField_Equality(t *testing.T) {
	a := NewField("name", value.KindString)
	b := NewField("name", value.KindString)
	b.Length = 20

	assert.True(t, a.Equal(b))
	assert.False(t, a.SameShape(b))

	b.Alias = "other"
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}

func TestRecord_Set(t *testing.T) {
	fields := personFields(t)
	r := NewRecord(fields)

	err := r.Set("age", value.NewString("old"))
	assert.True(t, errors.Is(err, value.ErrWrongKind))

	err = r.Set("nope", value.NewLong(1))
	assert.True(t, errors.Is(err, ErrFieldNotFound))

	require.NoError(t, r.Set("age", value.NewInteger(30)))
	v, ok := r.Value("age")
	require.True(t, ok)
	assert.True(t, v.Equal(value.NewInteger(30)))

	balance, _ := r.Value("balance")
	assert.Equal(t, int32(2), balance.Scale())

	require.NoError(t, r.Set("age", nil))
	v, _ = r.Value("age")
	assert.True(t, v.IsNull())
}

func TestRecord_SetRoundsDecimalToFieldScale(t *testing.T) {
	fields := personFields(t)

	built := NewRecord(fields)
	require.NoError(t, built.Set("balance", value.NewDecimal(decimal.RequireFromString("10.456"), value.UnsetScale)))
	decoded, err := DecodeRecord(fields, map[string]any{"balance": json.Number("10.456")})
	require.NoError(t, err)

	got, _ := built.Value("balance")
	want, _ := decoded.Value("balance")
	assert.Equal(t, int32(2), got.Scale())
	assert.Equal(t, "10.46", got.String())
	assert.Equal(t, want.String(), got.String())
	assert.True(t, want.Equal(got))
}

func TestRecord_CopyAndValidate(t *testing.T) {
	fields := personFields(t)
	r := person(fields, 1, "ann", 40)

	c := r.Copy()
	v, _ := c.Value("name")
	require.NoError(t, v.SetString("bob"))

	orig, _ := r.Value("name")
	s, _ := orig.AsString()
	assert.Equal(t, "ann", s)

	assert.NoError(t, r.Validate())
	assert.Error(t, NewRecord(fields).Validate())
}

func TestRecord_JSON(t *testing.T) {
	fields := personFields(t)
	r := person(fields, 7, "eve", 33)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 7, "name": "eve", "age": 33, "balance": null}`, string(data))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"id": 8, "balance": 10.005}`), &decoded))
	back, err := DecodeRecord(fields, decoded)
	require.NoError(t, err)

	balance, _ := back.Value("balance")
	d, _ := balance.AsDecimal()
	assert.True(t, d.Equal(decimal.RequireFromString("10.01")), "got %s", d)

	name, _ := back.Value("name")
	assert.True(t, name.IsNull())

	_, err = DecodeRecord(fields, map[string]any{"unknown": 1.0})
	assert.True(t, errors.Is(err, ErrFieldNotFound))
}

func TestOrderKey_Compare(t *testing.T) {
	t.Run("descending segment flips order", func(t *testing.T) {
		a := NewOrderKey(
			KeySegment{Value: value.NewLong(5), Ascending: true},
			KeySegment{Value: value.NewString("b"), Ascending: false},
		)
		b := NewOrderKey(
			KeySegment{Value: value.NewLong(5), Ascending: true},
			KeySegment{Value: value.NewString("a"), Ascending: false},
		)

		c, err := a.Compare(b)
		require.NoError(t, err)
		assert.Negative(t, c)

		c, err = b.Compare(a)
		require.NoError(t, err)
		assert.Positive(t, c)
	})

	t.Run("first segment decides", func(t *testing.T) {
		a := NewOrderKey().Add(value.NewLong(1), true).Add(value.NewString("z"), true)
		b := NewOrderKey().Add(value.NewLong(2), true).Add(value.NewString("a"), true)

		c, err := a.Compare(b)
		require.NoError(t, err)
		assert.Equal(t, -1, c)
	})

	t.Run("arity mismatch", func(t *testing.T) {
		a := NewOrderKey().Add(value.NewLong(1), true)
		b := NewOrderKey().Add(value.NewLong(1), true).Add(value.NewLong(2), true)

		_, err := a.Compare(b)
		assert.True(t, errors.Is(err, ErrArityMismatch))
	})
}

func TestOrder_KeyFor(t *testing.T) {
	fields := personFields(t)
	age, _ := fields.Lookup("age")
	name, _ := fields.Lookup("name")
	order := NewOrder(Desc(age), Asc(name))

	records := []*Record{
		person(fields, 1, "ann", 40),
		person(fields, 2, "bob", 40),
		person(fields, 3, "cid", 25),
		person(fields, 4, "ann", 25),
	}

	for _, a := range records {
		for _, b := range records {
			ka, err := a.OrderKey(order)
			require.NoError(t, err)
			kb, err := b.OrderKey(order)
			require.NoError(t, err)
			assert.Equal(t, order.Len(), ka.Len())

			byKey, err := ka.Compare(kb)
			require.NoError(t, err)
			byRecord, err := order.CompareRecords(a, b)
			require.NoError(t, err)
			assert.Equal(t, byRecord, byKey, "%s vs %s", a, b)
		}
	}

	c, _ := order.CompareRecords(records[0], records[2])
	assert.Negative(t, c, "older sorts first under descending age")

	other, err := NewFieldList(NewField("x", value.KindLong))
	require.NoError(t, err)
	_, err = order.KeyFor(NewRecord(other))
	assert.True(t, errors.Is(err, ErrFieldNotFound))
}

func TestOrder_Compare(t *testing.T) {
	fields := personFields(t)
	id, _ := fields.Lookup("id")
	name, _ := fields.Lookup("name")

	assert.True(t, NewOrder(Asc(id), Desc(name)).Equal(NewOrder(Asc(id), Desc(name))))
	assert.False(t, NewOrder(Asc(id)).Equal(NewOrder(Desc(id))))

	c, err := NewOrder(Asc(id)).Compare(NewOrder(Asc(name)))
	require.NoError(t, err)
	assert.Negative(t, c)

	_, err = NewOrder(Asc(id)).Compare(NewOrder(Asc(id), Asc(name)))
	assert.True(t, errors.Is(err, ErrArityMismatch))
}

func TestNewView(t *testing.T) {
	fields := personFields(t)
	table := NewTable("people", fields)

	view, err := table.View("people_by_id", nil)
	require.NoError(t, err)
	require.Equal(t, 1, view.OrderBy.Len())
	assert.Equal(t, "id", view.OrderBy.Segment(0).Field.Name)
	assert.Equal(t, "people", fields.Field(0).Parent)

	stray := NewField("stray", value.KindLong)
	_, err = NewView("bad", fields, NewOrder(Asc(stray)))
	assert.True(t, errors.Is(err, ErrFieldNotFound))

	noKey, err := NewFieldList(NewField("x", value.KindLong))
	require.NoError(t, err)
	_, err = NewView("unordered", noKey, nil)
	assert.Error(t, err)
}
