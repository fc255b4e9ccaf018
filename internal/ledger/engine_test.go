// internal/ledger/engine_test.go
//
// 狀態轉移引擎測試：單次發行、轉帳、餘額不足、自我轉帳、零金額、
// 溢位中止與總量守恆。全部以記憶體基底執行。

package ledger

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/storage"
)

const (
	alice AccountID = "alice"
	bob   AccountID = "bob"
	carol AccountID = "carol"
)

// fixture 以單一 Tx 模擬宿主交易；commit 前的讀寫都在暫存區。
type fixture struct {
	mem    *storage.Memory
	tx     *storage.Tx
	events Events
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{mem: storage.NewMemory()}
	f.tx = storage.Begin(f.mem)
	f.engine = NewEngine(storage.NewLedger(f.tx), &f.events)
	return f
}

func (f *fixture) balance(t *testing.T, a AccountID) uint64 {
	t.Helper()
	b, err := f.engine.Balance(context.Background(), a)
	require.NoError(t, err)
	return b
}

func TestConcreteScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.Initialize(ctx, Signed(alice)))
	assert.Equal(t, uint64(21_000_000), f.balance(t, alice))
	assert.Equal(t, Events{Initialized(alice)}, f.events)

	require.NoError(t, f.engine.Transfer(ctx, Signed(alice), bob, 1000))
	assert.Equal(t, uint64(20_999_000), f.balance(t, alice))
	assert.Equal(t, uint64(1000), f.balance(t, bob))
	assert.Equal(t, Transferred(alice, bob, 1000), f.events[1])

	err := f.engine.Transfer(ctx, Signed(bob), alice, 2000)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(20_999_000), f.balance(t, alice))
	assert.Equal(t, uint64(1000), f.balance(t, bob))
	assert.Len(t, f.events, 2, "failed transfer emits nothing")
}

func TestInitializeOnlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.Initialize(ctx, Signed(alice)))
	pending := f.tx.Pending()

	err := f.engine.Initialize(ctx, Signed(bob))
	require.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.Equal(t, pending, f.tx.Pending(), "no writes on guard failure")
	assert.Equal(t, uint64(21_000_000), f.balance(t, alice))
	assert.Zero(t, f.balance(t, bob))
	assert.Len(t, f.events, 1)

	done, err := f.engine.Initialized(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestInitializeUsesGenesisSupply(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	require.NoError(t, storage.Genesis(ctx, mem, 500))
	e := NewEngine(storage.NewLedger(storage.Begin(mem)), nil)

	require.NoError(t, e.Initialize(ctx, Signed(carol)))
	bal, err := e.Balance(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)
	supply, err := e.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), supply)
}

func TestUnsignedOriginRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.ErrorIs(t, f.engine.Initialize(ctx, Origin{}), ErrBadOrigin)
	require.ErrorIs(t, f.engine.Initialize(ctx, Signed("")), ErrBadOrigin)
	require.ErrorIs(t, f.engine.Transfer(ctx, Origin{}, bob, 0), ErrBadOrigin)
	assert.Zero(t, f.tx.Pending())
	assert.Empty(t, f.events)
}

func TestTransferEmptyRecipient(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.Transfer(context.Background(), Signed(alice), "", 0), ErrBadAccount)
	assert.Zero(t, f.tx.Pending())
}

func TestInsufficientFundsLeavesBalances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.engine.Initialize(ctx, Signed(alice)))
	require.NoError(t, f.engine.Transfer(ctx, Signed(alice), bob, 10))
	pending := f.tx.Pending()

	require.ErrorIs(t, f.engine.Transfer(ctx, Signed(bob), carol, 11), ErrInsufficientFunds)
	require.ErrorIs(t, f.engine.Transfer(ctx, Signed(carol), bob, 1), ErrInsufficientFunds)
	assert.Equal(t, pending, f.tx.Pending())
	assert.Equal(t, uint64(10), f.balance(t, bob))
	assert.Zero(t, f.balance(t, carol))
}

func TestSelfTransferIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.engine.Initialize(ctx, Signed(alice)))
	require.NoError(t, f.engine.Transfer(ctx, Signed(alice), bob, 300))

	for _, amt := range []uint64{0, 1, 150, 300} {
		require.NoError(t, f.engine.Transfer(ctx, Signed(bob), bob, amt))
		assert.Equal(t, uint64(300), f.balance(t, bob), "amount %d", amt)
	}
	require.ErrorIs(t, f.engine.Transfer(ctx, Signed(bob), bob, 301), ErrInsufficientFunds)
	assert.Equal(t, uint64(300), f.balance(t, bob))
	assert.Equal(t, Transferred(bob, bob, 300), f.events[len(f.events)-1])
}

func TestZeroAmountAlwaysSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 未發行、雙方餘額皆為 0
	require.NoError(t, f.engine.Transfer(ctx, Signed(bob), carol, 0))
	assert.Zero(t, f.balance(t, bob))
	assert.Zero(t, f.balance(t, carol))
	require.Len(t, f.events, 1)
	assert.Equal(t, Event{Kind: KindTransfer, From: bob, To: carol, Amount: 0}, f.events[0])
}

func TestRecipientOverflowPanicsWithoutWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := storage.NewLedger(f.tx)
	require.NoError(t, l.SetBalance(ctx, alice, 5))
	require.NoError(t, l.SetBalance(ctx, bob, math.MaxUint64))
	pending := f.tx.Pending()

	var got any
	func() {
		defer func() { got = recover() }()
		_ = f.engine.Transfer(ctx, Signed(alice), bob, 1)
	}()

	v, ok := got.(*ConservationViolation)
	require.True(t, ok, "want *ConservationViolation, got %T", got)
	assert.Equal(t, bob, v.Account)
	assert.Equal(t, uint64(math.MaxUint64), v.Balance)
	assert.Equal(t, uint64(1), v.Amount)
	assert.Contains(t, v.Error(), "conservation violation")

	assert.Equal(t, pending, f.tx.Pending())
	assert.Equal(t, uint64(5), f.balance(t, alice))
	assert.Empty(t, f.events)
}

// TestConservation 隨機轉帳序列後，所有帳戶餘額總和恆等於總供給。
func TestConservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.engine.Initialize(ctx, Signed(alice)))

	accounts := []AccountID{alice, bob, carol, "dave", "erin"}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		from := accounts[rng.IntN(len(accounts))]
		to := accounts[rng.IntN(len(accounts))]
		bal := f.balance(t, from)
		amt := rng.Uint64N(bal + 2) // 偶爾超額
		err := f.engine.Transfer(ctx, Signed(from), to, amt)
		if amt > bal {
			require.ErrorIs(t, err, ErrInsufficientFunds)
		} else {
			require.NoError(t, err)
		}
	}
	require.NoError(t, f.tx.Commit(ctx))

	balances, err := f.mem.Balances()
	require.NoError(t, err)
	var sum uint64
	for _, b := range balances {
		sum += b
	}
	assert.Equal(t, storage.DefaultTotalSupply, sum)
}

func TestCheckedArithmetic(t *testing.T) {
	v, ok := checkedSub(5, 5)
	assert.True(t, ok)
	assert.Zero(t, v)
	_, ok = checkedSub(0, 1)
	assert.False(t, ok)

	v, ok = checkedAdd(math.MaxUint64-1, 1)
	assert.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), v)
	_, ok = checkedAdd(math.MaxUint64, 1)
	assert.False(t, ok)
}
