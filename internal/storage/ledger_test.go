package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerDefaults(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(Begin(NewMemory()))

	bal, err := l.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)

	supply, err := l.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultTotalSupply, supply)

	done, err := l.Initialized(ctx)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestTxBuffersUntilCommit(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	tx := Begin(mem)
	l := NewLedger(tx)

	require.NoError(t, l.SetBalance(ctx, "alice", 7))
	bal, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), bal, "tx reads its own writes")

	_, ok, err := mem.Get(ctx, BalanceKey("alice"))
	require.NoError(t, err)
	assert.False(t, ok, "backend untouched before commit")

	require.NoError(t, tx.Commit(ctx))
	_, ok, err = mem.Get(ctx, BalanceKey("alice"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
	require.ErrorIs(t, tx.Put(ctx, "k", nil), ErrTxDone)
}

func TestTxDiscard(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	tx := Begin(mem)
	require.NoError(t, NewLedger(tx).SetInitialized(ctx, true))
	assert.Equal(t, 1, tx.Pending())
	tx.Discard()
	tx.Discard()

	done, err := NewLedger(Begin(mem)).Initialized(ctx)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestTxLastWriteWins(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	tx := Begin(mem)
	l := NewLedger(tx)
	require.NoError(t, l.SetBalance(ctx, "a", 1))
	require.NoError(t, l.SetBalance(ctx, "a", 2))
	assert.Equal(t, 1, tx.Pending())
	require.NoError(t, tx.Commit(ctx))

	bal, err := NewLedger(Begin(mem)).Balance(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), bal)
}

func TestGenesis(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	require.ErrorIs(t, Genesis(ctx, mem, 0), ErrZeroSupply)
	require.NoError(t, Genesis(ctx, mem, 1000))
	require.NoError(t, Genesis(ctx, mem, 1000))
	require.ErrorIs(t, Genesis(ctx, mem, 2000), ErrSupplyFixed)

	supply, err := NewLedger(Begin(mem)).TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), supply)
}

func TestCorruptValues(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Commit(ctx, nil, []Write{
		{Key: BalanceKey("alice"), Value: []byte{1, 2, 3}},
		{Key: keyInitialized, Value: []byte{9}},
	}))
	l := NewLedger(Begin(mem))

	_, err := l.Balance(ctx, "alice")
	assert.True(t, errors.Is(err, ErrCorrupt))
	_, err = l.Initialized(ctx)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestBalanceKeyRoundTrip(t *testing.T) {
	key := BalanceKey("5GrwvaEF")
	assert.NotEqual(t, BalanceKey("5GrwvaEG"), key)

	acct, ok := AccountFromKey(key)
	require.True(t, ok)
	assert.Equal(t, AccountID("5GrwvaEF"), acct)

	_, ok = AccountFromKey(keyTotalSupply)
	assert.False(t, ok)
	_, ok = AccountFromKey(key[:len(key)-1] + "X")
	assert.False(t, ok)
}

func TestMemoryBalances(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, Genesis(ctx, mem, 10))
	tx := Begin(mem)
	l := NewLedger(tx)
	require.NoError(t, l.SetBalance(ctx, "a", 4))
	require.NoError(t, l.SetBalance(ctx, "b", 6))
	require.NoError(t, tx.Commit(ctx))

	got, err := mem.Balances()
	require.NoError(t, err)
	assert.Equal(t, map[AccountID]uint64{"a": 4, "b": 6}, got)
}

// issue 模擬一次發行：讀取旗標，未發行才寫入餘額與旗標。
func issue(t *testing.T, tx *Tx, to AccountID) {
	t.Helper()
	ctx := context.Background()
	l := NewLedger(tx)
	done, err := l.Initialized(ctx)
	require.NoError(t, err)
	require.False(t, done)
	supply, err := l.TotalSupply(ctx)
	require.NoError(t, err)
	require.NoError(t, l.SetBalance(ctx, to, supply))
	require.NoError(t, l.SetInitialized(ctx, true))
}

func TestConcurrentTxConflict(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, Genesis(ctx, mem, 100))

	first, second := Begin(mem), Begin(mem)
	issue(t, first, "alice")
	issue(t, second, "mallory")

	require.NoError(t, first.Commit(ctx))
	require.ErrorIs(t, second.Commit(ctx), ErrConflict)

	got, err := mem.Balances()
	require.NoError(t, err)
	assert.Equal(t, map[AccountID]uint64{"alice": 100}, got)
}

func TestTxRecordsReadSet(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Commit(ctx, nil, []Write{{Key: "a", Value: []byte{1}}}))

	tx := Begin(mem)
	_, _, err := tx.Get(ctx, "a")
	require.NoError(t, err)
	_, _, err = tx.Get(ctx, "missing")
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, "w", []byte{2}))
	_, _, err = tx.Get(ctx, "w")
	require.NoError(t, err)

	assert.Equal(t, []Read{
		{Key: "a", Value: []byte{1}, Exists: true},
		{Key: "missing", Value: nil, Exists: false},
	}, tx.Reads())

	// 他人改寫後，交易內重複讀取仍看到第一次的值
	require.NoError(t, mem.Commit(ctx, nil, []Write{{Key: "a", Value: []byte{9}}}))
	v, ok, err := tx.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1}, v)
	require.ErrorIs(t, tx.Commit(ctx), ErrConflict)
}

func TestReadOnlyTxNeverConflicts(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	tx := Begin(mem)
	_, err := NewLedger(tx).Balance(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, mem.Commit(ctx, nil, []Write{{Key: BalanceKey("alice"), Value: EncodeU64(3)}}))
	require.NoError(t, tx.Commit(ctx))
}

func TestGenesisRacesConflict(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, Genesis(ctx, mem, 10))
	err := mem.Commit(ctx, []Read{{Key: keyTotalSupply}}, []Write{{Key: keyTotalSupply, Value: EncodeU64(20)}})
	require.ErrorIs(t, err, ErrConflict)
}
