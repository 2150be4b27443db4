package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memrel/memrel/internal/catalog"
	"github.com/memrel/memrel/internal/kernelerr"
)

type account struct {
	ID   int32  `db:"id,pk,auto"`
	Name string `db:"name,required"`
}

type txn struct {
	ID        int32 `db:"id,pk,auto"`
	AccountID int32 `db:"account_id,required,fk=account"`
	Amount    int32 `db:"amount"`
}

func newAccounts(t *testing.T, cat *catalog.Catalog) *Table[account] {
	t.Helper()
	tbl, err := New[account]("accounts", "account", cat, false, nil)
	require.NoError(t, err)
	return tbl
}

func newTxns(t *testing.T, cat *catalog.Catalog) *Table[txn] {
	t.Helper()
	tbl, err := New[txn]("txns", "txn", cat, false, nil)
	require.NoError(t, err)
	return tbl
}

func TestTable_InsertAssignsAutoIncrementAndClonesOnRead(t *testing.T) {
	cat := catalog.New()
	accounts := newAccounts(t, cat)

	a, err := accounts.Insert(account{Name: "alice"})
	require.NoError(t, err)
	require.Equal(t, int32(1), a.ID)

	b, err := accounts.Insert(account{Name: "bob"})
	require.NoError(t, err)
	require.Equal(t, int32(2), b.ID)

	got, ok := accounts.FindByPrimaryKey(int32(1))
	require.True(t, ok)
	require.Equal(t, "alice", got.Name)

	// Mutating the returned copy must not affect table state.
	got.Name = "mutated"
	again, ok := accounts.FindByPrimaryKey(int32(1))
	require.True(t, ok)
	require.Equal(t, "alice", again.Name)
}

func TestTable_PresetPrimaryKeyThenAutoContinuesPastIt(t *testing.T) {
	cat := catalog.New()
	accounts := newAccounts(t, cat)

	preset, err := accounts.Insert(account{ID: 10, Name: "preset"})
	require.NoError(t, err)
	require.Equal(t, int32(10), preset.ID)

	next, err := accounts.Insert(account{Name: "auto"})
	require.NoError(t, err)
	require.Equal(t, int32(11), next.ID)
}

func TestTable_InsertRangeIsAllOrNothing(t *testing.T) {
	cat := catalog.New()
	accounts := newAccounts(t, cat)

	_, err := accounts.Insert(account{ID: 1, Name: "first"})
	require.NoError(t, err)

	_, err = accounts.InsertRange([]account{
		{Name: "second"},
		{ID: 1, Name: "duplicate-of-existing"},
		{Name: "never-committed"},
	})
	require.Error(t, err)

	require.Len(t, accounts.AsSequence(), 1)
}

func TestTable_RequiredFieldRejected(t *testing.T) {
	cat := catalog.New()
	accounts := newAccounts(t, cat)

	_, err := accounts.Insert(account{Name: ""})
	require.Error(t, err)
	kind, ok := kernelerr.Of(err)
	require.True(t, ok)
	require.Equal(t, kernelerr.RequiredMissing, kind)
}

func TestTable_ForeignKeyViolation(t *testing.T) {
	cat := catalog.New()
	_ = newAccounts(t, cat)
	txns := newTxns(t, cat)

	_, err := txns.Insert(txn{AccountID: 999, Amount: 5})
	require.Error(t, err)
	kind, ok := kernelerr.Of(err)
	require.True(t, ok)
	require.Equal(t, kernelerr.ForeignKeyViolation, kind)
}

func TestTable_DeleteBlockedWhileReferenced(t *testing.T) {
	cat := catalog.New()
	accounts := newAccounts(t, cat)
	txns := newTxns(t, cat)

	a, err := accounts.Insert(account{Name: "alice"})
	require.NoError(t, err)
	_, err = txns.Insert(txn{AccountID: a.ID, Amount: 100})
	require.NoError(t, err)

	err = accounts.DeleteByPrimaryKey(a.ID)
	require.Error(t, err)
	kind, ok := kernelerr.Of(err)
	require.True(t, ok)
	require.Equal(t, kernelerr.ReferentialIntegrity, kind)

	_, err = txns.Delete(func(tr txn) bool { return tr.AccountID == a.ID })
	require.NoError(t, err)

	err = accounts.DeleteByPrimaryKey(a.ID)
	require.NoError(t, err)

	_, ok = accounts.FindByPrimaryKey(a.ID)
	require.False(t, ok)
}

func TestTable_UpdateRevalidatesAndRejectsPrimaryKeyChangeWhileReferenced(t *testing.T) {
	cat := catalog.New()
	accounts := newAccounts(t, cat)
	txns := newTxns(t, cat)

	a, err := accounts.Insert(account{Name: "alice"})
	require.NoError(t, err)
	_, err = txns.Insert(txn{AccountID: a.ID, Amount: 1})
	require.NoError(t, err)

	_, err = accounts.Update(func(ac account) bool { return ac.ID == a.ID }, func(ac *account) {
		ac.ID = 500
	})
	require.Error(t, err)
	kind, ok := kernelerr.Of(err)
	require.True(t, ok)
	require.Equal(t, kernelerr.ReferentialIntegrity, kind)

	n, err := accounts.Update(func(ac account) bool { return ac.ID == a.ID }, func(ac *account) {
		ac.Name = "alice-renamed"
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, ok := accounts.FindByPrimaryKey(a.ID)
	require.True(t, ok)
	require.Equal(t, "alice-renamed", got.Name)
}

func TestTable_ClearResetsAutoIncrement(t *testing.T) {
	cat := catalog.New()
	accounts := newAccounts(t, cat)

	_, err := accounts.Insert(account{Name: "alice"})
	require.NoError(t, err)
	accounts.Clear()

	a, err := accounts.Insert(account{Name: "bob"})
	require.NoError(t, err)
	require.Equal(t, int32(1), a.ID)
}

func TestTable_AnyTableMapPath(t *testing.T) {
	cat := catalog.New()
	accounts := newAccounts(t, cat)
	var any_ AnyTable = accounts

	inserted, err := any_.InsertMap(map[string]any{"name": "carol"})
	require.NoError(t, err)
	require.Equal(t, int32(1), inserted["id"])

	rows := any_.AllRows()
	require.Len(t, rows, 1)
	require.Equal(t, "carol", rows[0]["name"])

	changed, err := any_.UpdateMap(func(m map[string]any) bool {
		return m["id"] == int32(1)
	}, func(m map[string]any) {
		m["name"] = "carol-updated"
	})
	require.NoError(t, err)
	require.Equal(t, 1, changed)

	got, ok := any_.FindByPrimaryKeyMap(int32(1))
	require.True(t, ok)
	require.Equal(t, "carol-updated", got["name"])
}
