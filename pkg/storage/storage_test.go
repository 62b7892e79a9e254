package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/ssargent/recordkit/pkg/query"
	"github.com/ssargent/recordkit/pkg/recordset"
	"github.com/ssargent/recordkit/pkg/schema"
	"github.com/ssargent/recordkit/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersView(t *testing.T) *schema.View {
	t.Helper()
	id := schema.NewField("id", value.KindLong)
	id.PrimaryKey = true
	customer := schema.NewField("customer", value.KindString)
	total := schema.NewField("total", value.KindDecimal)
	total.Scale = 2
	fields := schema.MustFieldList(id, customer, total, schema.NewField("placed", value.KindTimestamp))
	view, err := schema.NewView("orders", fields, schema.NewOrder(schema.Desc(customer), schema.Asc(id)))
	require.NoError(t, err)
	return view
}

func order(view *schema.View, id int64, customer string) *schema.Record {
	return view.NewRecord().
		MustSet("id", value.NewLong(id)).
		MustSet("customer", value.NewString(customer)).
		MustSet("total", value.NewDecimal(decimal.New(id*125, -2), 2)).
		MustSet("placed", value.NewTimestamp(time.Date(2024, 1, 1, 0, 0, int(id), 0, time.UTC)))
}

func openDB(t *testing.T, dir string) *DB {
	t.Helper()
	db, err := Open(dir, Options{Sync: true})
	require.NoError(t, err)
	return db
}

var customers = []string{"acme", "globex", "initech", "umbrella"}

func loadOrders(t *testing.T, p *Persistor, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := p.Insert(context.Background(), order(p.View(), int64(i), customers[i%len(customers)]))
		require.NoError(t, err)
	}
}

func ids(t *testing.T, it recordset.RecordIterator) []int64 {
	t.Helper()
	records, err := recordset.Collect(it)
	require.NoError(t, err)
	var out []int64
	for _, r := range records {
		v, _ := r.Value("id")
		id, err := v.AsLong()
		require.NoError(t, err)
		out = append(out, id)
	}
	return out
}

func TestPersistor_CRUD(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir())
	defer db.Close()
	view := ordersView(t)
	p := db.Persistor(view)

	id, err := p.Insert(ctx, order(view, 7, "acme"))
	require.NoError(t, err)

	got, err := p.Get(ctx, id)
	require.NoError(t, err)
	total, _ := got.Value("total")
	assert.Equal(t, "8.75", total.String())
	placed, _ := got.Value("placed")
	ts, err := placed.AsTimestamp()
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 1, 1, 0, 0, 7, 0, time.UTC)))

	_, err = p.Insert(ctx, order(view, 7, "acme"))
	assert.True(t, errors.Is(err, ErrDuplicateKey))

	require.NoError(t, p.Update(ctx, id, order(view, 7, "globex")), "the old key is not a duplicate of itself")
	got, err = p.Get(ctx, id)
	require.NoError(t, err)
	customer, _ := got.Value("customer")
	assert.Equal(t, "globex", customer.String())

	n, err := p.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, p.Delete(ctx, id))
	_, err = p.Get(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(p.Delete(ctx, id), ErrNotFound))

	n, err = p.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPersistor_ViewsAreSeparate(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir())
	defer db.Close()

	a := db.Persistor(ordersView(t))
	other, err := schema.NewView("orders_archive", a.View().Fields, a.View().OrderBy)
	require.NoError(t, err)
	b := db.Persistor(other)

	loadOrders(t, a, 5)
	loadOrders(t, b, 3)

	n, err := a.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	n, err = b.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPersistor_Iterator(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir())
	defer db.Close()
	view := ordersView(t)
	p := db.Persistor(view)
	loadOrders(t, p, 12)

	// customer descending, id ascending
	all := []int64{3, 7, 11, 2, 6, 10, 1, 5, 9, 0, 4, 8}

	it, err := p.Iterator(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, all, ids(t, it))

	customer, _ := view.Fields.Lookup("customer")
	onlyInitech := query.Where(query.MustCondition(customer, query.EQ, value.NewString("initech")))
	it, err = p.Iterator(ctx, onlyInitech, view.OrderBy)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 6, 10}, ids(t, it))

	n, err := p.Count(ctx, onlyInitech)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	key, err := view.OrderBy.KeyFor(order(view, 6, "initech"))
	require.NoError(t, err)
	for _, inclusive := range []bool{false, true} {
		t.Run(fmt.Sprintf("bound inclusive=%v", inclusive), func(t *testing.T) {
			after, err := query.AfterKey(view.OrderBy, key, inclusive)
			require.NoError(t, err)
			it, err := p.Iterator(ctx, after, view.OrderBy)
			require.NoError(t, err)
			want := []int64{10, 1, 5, 9, 0, 4, 8}
			if inclusive {
				want = append([]int64{6}, want...)
			}
			assert.Equal(t, want, ids(t, it))
		})
	}

	id, _ := view.Fields.Lookup("id")
	it, err = p.Iterator(ctx, nil, schema.NewOrder(schema.Desc(id)))
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, ids(t, it))
}

func TestPersistor_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	view := ordersView(t)

	db := openDB(t, dir)
	loadOrders(t, db.Persistor(view), 30)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "closing twice is harmless")

	db = openDB(t, dir)
	defer db.Close()
	p := db.Persistor(view)

	rs, err := recordset.NewPageRecordSet(p, nil, recordset.Options{PageSize: 4, MaxPages: 3})
	require.NoError(t, err)
	size, err := rs.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), size)

	want := ids(t, mustIterator(t, p))
	for _, i := range []int64{0, 29, 13, 2, 17, 28, 0} {
		r, err := rs.Get(ctx, i)
		require.NoError(t, err)
		v, _ := r.Value("id")
		got, _ := v.AsLong()
		assert.Equal(t, want[i], got, "index %d", i)
	}
}

func TestPersistor_CanceledContext(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	p := db.Persistor(ordersView(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Insert(ctx, order(p.View(), 1, "acme"))
	assert.True(t, errors.Is(err, context.Canceled))
	_, err = p.Iterator(ctx, nil, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func mustIterator(t *testing.T, p *Persistor) recordset.RecordIterator {
	t.Helper()
	it, err := p.Iterator(context.Background(), nil, nil)
	require.NoError(t, err)
	return it
}

func TestUpperBound(t *testing.T) {
	assert.Equal(t, []byte("r\x01"), upperBound([]byte("r\x00")))
	assert.Equal(t, []byte("b"), upperBound([]byte("a\xff")))
	assert.Nil(t, upperBound([]byte{0xff, 0xff}))
}
