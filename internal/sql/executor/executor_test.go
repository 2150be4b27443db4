package executor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memrel/memrel/internal/dbmanager"
)

type customer struct {
	ID   int32  `db:"id,pk,auto"`
	Name string `db:"name,required"`
}

type order struct {
	ID         int32           `db:"id,pk,auto"`
	CustomerID int32           `db:"customer_id"`
	Total      decimal.Decimal `db:"total"`
}

type widget struct {
	ID       int32     `db:"id,pk,auto"`
	Blob     []byte    `db:"blob"`
	PlacedAt time.Time `db:"placed_at"`
}

func newShop(t *testing.T) *dbmanager.Database {
	t.Helper()
	m := dbmanager.New()
	db := m.CreateDatabase("shop")

	customers, err := dbmanager.CreateTable[customer](m, "shop", "customers", "customer")
	require.NoError(t, err)
	_, err = customers.Insert(customer{Name: "ada"})
	require.NoError(t, err)
	_, err = customers.Insert(customer{Name: "bea"})
	require.NoError(t, err)

	orders, err := dbmanager.CreateTable[order](m, "shop", "orders", "order")
	require.NoError(t, err)
	_, err = orders.Insert(order{CustomerID: 1, Total: decimal.RequireFromString("10.00")})
	require.NoError(t, err)
	_, err = orders.Insert(order{CustomerID: 1, Total: decimal.RequireFromString("5.50")})
	require.NoError(t, err)
	_, err = orders.Insert(order{CustomerID: 2, Total: decimal.RequireFromString("2.25")})
	require.NoError(t, err)

	return db
}

func TestExecutor_SelectStar(t *testing.T) {
	db := newShop(t)
	ex := NewExecutor(db)

	res, err := ex.ExecSQL("SELECT * FROM customers;")
	require.NoError(t, err)
	require.True(t, res.IsQuery)
	require.Equal(t, []string{"id", "name"}, res.Columns)
	require.Len(t, res.Rows, 2)
}

func TestExecutor_SelectWhere(t *testing.T) {
	db := newShop(t)
	ex := NewExecutor(db)

	res, err := ex.ExecSQL("SELECT name FROM customers WHERE id = 2;")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "bea", res.Rows[0][0])
}

func TestExecutor_SelectJoin(t *testing.T) {
	db := newShop(t)
	ex := NewExecutor(db)

	res, err := ex.ExecSQL(
		"SELECT c.name, o.total FROM orders o JOIN customers c ON o.customer_id = c.id ORDER BY o.total DESC;")
	require.NoError(t, err)
	require.Equal(t, []string{"name", "total"}, res.Columns)
	require.Len(t, res.Rows, 3)
	require.Equal(t, "ada", res.Rows[0][0])
}

func TestExecutor_SelectLeftJoinUnmatched(t *testing.T) {
	db := newShop(t)
	ex := NewExecutor(db)

	_, err := ex.ExecSQL("INSERT INTO customers (name) VALUES ('carl');")
	require.NoError(t, err)

	res, err := ex.ExecSQL(
		"SELECT c.name, o.total FROM customers c LEFT JOIN orders o ON c.id = o.customer_id WHERE c.name = 'carl';")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "carl", res.Rows[0][0])
	require.Nil(t, res.Rows[0][1])
}

func TestExecutor_SelectGroupByAggregate(t *testing.T) {
	db := newShop(t)
	ex := NewExecutor(db)

	res, err := ex.ExecSQL("SELECT customer_id, COUNT(*), SUM(total) FROM orders GROUP BY customer_id ORDER BY customer_id;")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.Equal(t, int32(1), res.Rows[0][0])
	require.Equal(t, int64(2), res.Rows[0][1])
}

func TestExecutor_Insert(t *testing.T) {
	db := newShop(t)
	ex := NewExecutor(db)

	res, err := ex.ExecSQL("INSERT INTO customers (name) VALUES ('drew');")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.AffectedRows)

	all, err := ex.ExecSQL("SELECT * FROM customers;")
	require.NoError(t, err)
	require.Len(t, all.Rows, 3)
}

func TestExecutor_Update(t *testing.T) {
	db := newShop(t)
	ex := NewExecutor(db)

	res, err := ex.ExecSQL("UPDATE customers SET name = 'adeline' WHERE id = 1;")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.AffectedRows)

	got, err := ex.ExecSQL("SELECT name FROM customers WHERE id = 1;")
	require.NoError(t, err)
	require.Equal(t, "adeline", got.Rows[0][0])
}

func TestExecutor_Delete(t *testing.T) {
	db := newShop(t)
	ex := NewExecutor(db)

	res, err := ex.ExecSQL("DELETE FROM orders WHERE customer_id = 1;")
	require.NoError(t, err)
	require.Equal(t, int64(2), res.AffectedRows)

	remaining, err := ex.ExecSQL("SELECT * FROM orders;")
	require.NoError(t, err)
	require.Len(t, remaining.Rows, 1)
}

func TestExecutor_UnknownColumnErrors(t *testing.T) {
	db := newShop(t)
	ex := NewExecutor(db)

	_, err := ex.ExecSQL("SELECT nope FROM customers;")
	require.Error(t, err)
}

func TestExecutor_UnknownTableErrors(t *testing.T) {
	db := newShop(t)
	ex := NewExecutor(db)

	_, err := ex.ExecSQL("SELECT * FROM nosuch;")
	require.Error(t, err)
}

func newWidgets(t *testing.T) (*dbmanager.Database, *Executor) {
	t.Helper()
	m := dbmanager.New()
	db := m.CreateDatabase("shop2")

	_, err := dbmanager.CreateTable[widget](m, "shop2", "widgets", "widget")
	require.NoError(t, err)

	return db, NewExecutor(db)
}

func TestExecutor_Insert_BytesLiteralIsBase64Decoded(t *testing.T) {
	_, ex := newWidgets(t)

	res, err := ex.ExecSQL("INSERT INTO widgets (blob, placed_at) VALUES ('aGVsbG8=', '2026-01-02T15:04:05Z');")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.AffectedRows)

	got, err := ex.ExecSQL("SELECT blob FROM widgets WHERE id = 1;")
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	blob, ok := got.Rows[0][0].([]byte)
	require.True(t, ok, "want []byte, got %T", got.Rows[0][0])
	require.Equal(t, "hello", string(blob))
}

func TestExecutor_Insert_BytesLiteralInvalidBase64Errors(t *testing.T) {
	_, ex := newWidgets(t)

	_, err := ex.ExecSQL("INSERT INTO widgets (blob, placed_at) VALUES ('not-base64!!', '2026-01-02T15:04:05Z');")
	require.Error(t, err)
}

func TestExecutor_Insert_DateTimeLiteralWithoutOffsetAssumesUTC(t *testing.T) {
	_, ex := newWidgets(t)

	res, err := ex.ExecSQL("INSERT INTO widgets (blob, placed_at) VALUES ('aGVsbG8=', '2026-01-02T15:04:05');")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.AffectedRows)

	got, err := ex.ExecSQL("SELECT placed_at FROM widgets WHERE id = 1;")
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	ts, ok := got.Rows[0][0].(time.Time)
	require.True(t, ok, "want time.Time, got %T", got.Rows[0][0])
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), ts.UTC())
	assert.Equal(t, time.UTC, ts.Location())
}

func TestExecutor_Insert_DateTimeLiteralWithOffset(t *testing.T) {
	_, ex := newWidgets(t)

	res, err := ex.ExecSQL("INSERT INTO widgets (blob, placed_at) VALUES ('aGVsbG8=', '2026-01-02T10:04:05-05:00');")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.AffectedRows)

	got, err := ex.ExecSQL("SELECT placed_at FROM widgets WHERE id = 1;")
	require.NoError(t, err)
	ts := got.Rows[0][0].(time.Time)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), ts.UTC())
}
