package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wenxuji/internal/core"
	"wenxuji/internal/storage"
	"wenxuji/internal/storage/memory"
)

const testKey = "wenxuji_transactions"

// flakyKV wraps the memory KV and fails writes on demand.
type flakyKV struct {
	*memory.Store
	mu       sync.Mutex
	failSet  bool
	failGet  bool
	setCalls int
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return nil, errors.New("disk on fire")
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.setCalls++
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return errors.New("quota exceeded")
	}
	return f.Store.Set(ctx, key, value)
}

func newTx(id string, amount int64, typ core.TransactionType, cat string, date core.Date, createdAt int64) core.Transaction {
	return core.Transaction{
		ID:         id,
		Amount:     decimal.NewFromInt(amount),
		Type:       typ,
		CategoryID: cat,
		Date:       date,
		CreatedAt:  createdAt,
	}
}

func openStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	s, err := Open(context.Background(), kv, testKey, core.DefaultRegistry())
	require.NoError(t, err)
	return s
}

func TestOpenEmpty(t *testing.T) {
	s := openStore(t, memory.New())
	assert.Empty(t, s.Snapshot())
	assert.Equal(t, 0, s.Len())
}

func TestAppendPutsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, memory.New())

	_, err := s.Append(ctx, newTx("a", 45, core.Expense, "food", core.NewDate(2024, 5, 1), 1000))
	require.NoError(t, err)
	_, err = s.Append(ctx, newTx("b", 20000, core.Income, "salary", core.NewDate(2024, 5, 2), 2000))
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].ID)
	assert.Equal(t, "a", snap[1].ID)

	totals := core.ComputeTotals(snap)
	assert.Equal(t, "20000", totals.Income.String())
	assert.Equal(t, "45", totals.Expense.String())
	assert.Equal(t, "19955", totals.Balance.String())
}

func TestAppendRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{Store: memory.New()}
	s := openStore(t, kv)

	cases := []core.Transaction{
		newTx("x", -5, core.Expense, "food", core.NewDate(2024, 5, 1), 1),
		newTx("x", 5, core.Expense, "salary", core.NewDate(2024, 5, 1), 1),
		newTx("x", 5, core.Expense, "nope", core.NewDate(2024, 5, 1), 1),
		newTx("", 5, core.Expense, "food", core.NewDate(2024, 5, 1), 1),
	}
	for i, tc := range cases {
		_, err := s.Append(ctx, tc)
		assert.True(t, core.IsValidation(err), "case %d: %v", i, err)
	}
	assert.Empty(t, s.Snapshot())
	assert.Equal(t, 0, kv.setCalls)
}

func TestAppendDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, memory.New())
	_, err := s.Append(ctx, newTx("a", 1, core.Expense, "food", core.NewDate(2024, 5, 1), 1))
	require.NoError(t, err)
	_, err = s.Append(ctx, newTx("a", 2, core.Expense, "food", core.NewDate(2024, 5, 1), 2))
	assert.ErrorIs(t, err, core.ErrDuplicateID)
	assert.Equal(t, 1, s.Len())
}

func TestAppendRaisesCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, memory.New())
	_, err := s.Append(ctx, newTx("a", 1, core.Expense, "food", core.NewDate(2024, 5, 1), 5000))
	require.NoError(t, err)

	got, err := s.Append(ctx, newTx("b", 1, core.Expense, "food", core.NewDate(2024, 5, 1), 5000))
	require.NoError(t, err)
	assert.Equal(t, int64(5001), got.CreatedAt)
	assert.Equal(t, int64(5001), s.Snapshot()[0].CreatedAt)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := openStore(t, kv)

	in := core.Transaction{
		ID:          "6f1c2f9e-0c55-4a39-8d3b-1b0c6c6d2a11",
		Amount:      decimal.RequireFromString("12.34"),
		Type:        core.Expense,
		CategoryID:  "transport",
		Description: "地铁 两次",
		Date:        core.NewDate(2024, 2, 29),
		CreatedAt:   1714550400123,
	}
	_, err := s.Append(ctx, newTx("older", 1, core.Income, "bonus", core.NewDate(2024, 1, 1), 1))
	require.NoError(t, err)
	_, err = s.Append(ctx, in)
	require.NoError(t, err)

	reopened := openStore(t, kv)
	snap := reopened.Snapshot()
	require.Len(t, snap, 2)
	out := snap[0]
	assert.Equal(t, in.ID, out.ID)
	assert.True(t, in.Amount.Equal(out.Amount))
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.CategoryID, out.CategoryID)
	assert.Equal(t, in.Description, out.Description)
	assert.True(t, in.Date.Equal(out.Date))
	assert.Equal(t, in.CreatedAt, out.CreatedAt)
}

func TestPersistedShape(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := openStore(t, kv)
	_, err := s.Append(ctx, newTx("a", 45, core.Expense, "food", core.NewDate(2024, 5, 1), 7))
	require.NoError(t, err)

	raw, err := kv.Get(ctx, testKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","amount":45,"type":"expense","category":"food","description":"","date":"2024-05-01","createdAt":7}]`, string(raw))
}

func TestSnapshotIsCopyAndIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, memory.New())
	_, err := s.Append(ctx, newTx("a", 1, core.Expense, "food", core.NewDate(2024, 5, 1), 1))
	require.NoError(t, err)

	first := s.Snapshot()
	second := s.Snapshot()
	assert.Equal(t, first, second)

	first[0].ID = "mutated"
	assert.Equal(t, "a", s.Snapshot()[0].ID)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{Store: memory.New()}
	s := openStore(t, kv)
	for i, id := range []string{"a", "b", "c"} {
		_, err := s.Append(ctx, newTx(id, 1, core.Expense, "food", core.NewDate(2024, 5, 1), int64(i+1)))
		require.NoError(t, err)
	}

	removed, err := s.Remove(ctx, "b")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"c", "a"}, ids(s.Snapshot()))

	calls := kv.setCalls
	removed, err = s.Remove(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, calls, kv.setCalls, "no-op remove must not write")

	reopened := openStore(t, kv)
	assert.Equal(t, []string{"c", "a"}, ids(reopened.Snapshot()))
}

func TestFailedWriteRollsBack(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{Store: memory.New()}
	s := openStore(t, kv)
	_, err := s.Append(ctx, newTx("a", 1, core.Expense, "food", core.NewDate(2024, 5, 1), 1))
	require.NoError(t, err)

	kv.failSet = true
	_, err = s.Append(ctx, newTx("b", 1, core.Expense, "food", core.NewDate(2024, 5, 1), 2))
	require.Error(t, err)
	assert.False(t, core.IsValidation(err))
	assert.Equal(t, []string{"a"}, ids(s.Snapshot()))

	removed, err := s.Remove(ctx, "a")
	require.Error(t, err)
	assert.False(t, removed)
	assert.Equal(t, []string{"a"}, ids(s.Snapshot()))

	kv.failSet = false
	reopened := openStore(t, kv)
	assert.Equal(t, ids(s.Snapshot()), ids(reopened.Snapshot()))
}

func TestCorruptSlotStartsEmptyAndBacksUp(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	require.NoError(t, kv.Set(ctx, testKey, []byte(`{not json`)))

	s := openStore(t, kv)
	assert.Empty(t, s.Snapshot())

	backup, err := kv.Get(ctx, testKey+CorruptSuffix)
	require.NoError(t, err)
	assert.Equal(t, `{not json`, string(backup))

	// the next write replaces the corrupt slot
	_, err = s.Append(ctx, newTx("a", 1, core.Expense, "food", core.NewDate(2024, 5, 1), 1))
	require.NoError(t, err)
	assert.Len(t, openStore(t, kv).Snapshot(), 1)
}

func TestFailingReadIsAnError(t *testing.T) {
	kv := &flakyKV{Store: memory.New(), failGet: true}
	_, err := Open(context.Background(), kv, testKey, core.DefaultRegistry())
	assert.Error(t, err)
}

func TestLegacyRecordsAreNormalized(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	legacy := []map[string]any{
		{"id": "1714600000000", "amount": 30, "type": "expense", "category": "餐饮", "description": "午饭", "date": "2024-05-02", "createdAt": 1714600000000},
		{"id": "1714500000000", "amount": 500, "type": "income", "category": "其他", "description": "红包", "date": "2024-05-01T08:00:00.000Z", "createdAt": 1714500000000},
		{"id": "1714400000000", "amount": 12, "type": "expense", "category": "不存在的分类", "description": "", "date": "2024-04-30", "createdAt": 1714400000000},
		{"id": "bad-amount", "amount": 0, "type": "expense", "category": "餐饮", "date": "2024-04-30"},
		{"id": "bad-type", "amount": 1, "type": "transfer", "category": "餐饮", "date": "2024-04-30"},
		{"id": "bad-date", "amount": 1, "type": "expense", "category": "餐饮", "date": "soon"},
	}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, testKey, raw))

	s := openStore(t, kv)
	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "food", snap[0].CategoryID)
	assert.Equal(t, core.OtherIncomeID, snap[1].CategoryID)
	assert.Equal(t, "2024-05-01", snap[1].Date.String())
	assert.Equal(t, core.OtherExpenseID, snap[2].CategoryID)

	breakdown := core.ComputeCategoryBreakdown(snap)
	require.Len(t, breakdown, 2)
	assert.Equal(t, "food", breakdown[0].CategoryID)
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, memory.New())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(ctx, newTx(string(rune('a'+i)), 1, core.Expense, "food", core.NewDate(2024, 5, 1), 1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	require.Len(t, snap, 20)
	for i := 1; i < len(snap); i++ {
		assert.Greater(t, snap[i-1].CreatedAt, snap[i].CreatedAt)
	}
}

func ids(records []core.Transaction) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
