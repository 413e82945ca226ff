package orderbookv1

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Helper function to create an entry with a specific time and sequence
func createEntry(id string, size string, at time.Duration, sequence int64) *Entry {
	return &Entry{
		OrderID:   id,
		UserID:    "user-" + id,
		Side:      marketv1.Sell,
		Price:     d("100"),
		Remaining: d(size),
		Sequence:  sequence,
		CreatedAt: base.Add(at),
	}
}

func TestNewLimit(t *testing.T) {
	limit := NewLimit(d("100"))

	assert.NotNil(t, limit)
	assert.True(t, limit.Price.Equal(d("100")))
	assert.True(t, limit.TotalVolume.IsZero())
	assert.Empty(t, limit.Entries)
	assert.True(t, limit.IsEmpty())
}

func TestLimit_AddEntry(t *testing.T) {
	t.Run("Add valid entry", func(t *testing.T) {
		limit := NewLimit(d("100"))
		e := createEntry("a", "10", 0, 1)

		require.NoError(t, limit.AddEntry(e))
		assert.Equal(t, 1, limit.OrderCount())
		assert.True(t, limit.TotalVolume.Equal(d("10")))
		assert.Equal(t, limit, e.Limit)
	})

	t.Run("Add nil entry", func(t *testing.T) {
		assert.ErrorIs(t, NewLimit(d("100")).AddEntry(nil), ErrNilEntry)
	})

	t.Run("Add entry with zero size", func(t *testing.T) {
		assert.ErrorIs(t, NewLimit(d("100")).AddEntry(createEntry("a", "0", 0, 1)), ErrInvalidSize)
	})

	t.Run("Restored entries keep time priority", func(t *testing.T) {
		limit := NewLimit(d("100"))
		late := createEntry("late", "1", 2*time.Second, 3)
		early := createEntry("early", "2", time.Second, 2)
		tieB := createEntry("tie-b", "3", 0, 5)
		tieA := createEntry("tie-a", "4", 0, 4)

		for _, e := range []*Entry{late, early, tieB, tieA} {
			require.NoError(t, limit.AddEntry(e))
		}

		entries := limit.GetEntries()
		require.Len(t, entries, 4)
		assert.Equal(t, []string{"tie-a", "tie-b", "early", "late"},
			[]string{entries[0].OrderID, entries[1].OrderID, entries[2].OrderID, entries[3].OrderID})
		assert.True(t, limit.TotalVolume.Equal(d("10")))
		assert.NoError(t, limit.Validate())
	})
}

func TestLimit_RemoveEntry(t *testing.T) {
	limit := NewLimit(d("100"))
	e1 := createEntry("a", "10", 0, 1)
	e2 := createEntry("b", "5", time.Second, 2)
	require.NoError(t, limit.AddEntry(e1))
	require.NoError(t, limit.AddEntry(e2))

	require.NoError(t, limit.RemoveEntry(e1))
	assert.Nil(t, e1.Limit)
	assert.Equal(t, 1, limit.OrderCount())
	assert.True(t, limit.TotalVolume.Equal(d("5")))

	assert.ErrorIs(t, limit.RemoveEntry(e1), ErrOrderNotFound)
	assert.ErrorIs(t, limit.RemoveEntry(nil), ErrNilEntry)
}

func TestLimit_Reduce(t *testing.T) {
	limit := NewLimit(d("100"))
	e := createEntry("a", "10", 0, 1)
	require.NoError(t, limit.AddEntry(e))

	require.NoError(t, limit.Reduce(e, d("4")))
	assert.True(t, e.Remaining.Equal(d("6")))
	assert.True(t, limit.TotalVolume.Equal(d("6")))

	assert.ErrorIs(t, limit.Reduce(e, d("7")), ErrInvalidSize)

	require.NoError(t, limit.Reduce(e, d("6")))
	assert.True(t, limit.IsEmpty())
	assert.Nil(t, e.Limit)
	assert.True(t, limit.TotalVolume.IsZero())
	assert.NoError(t, limit.Validate())
}

func TestLimit_Validate(t *testing.T) {
	limit := NewLimit(d("100"))
	require.NoError(t, limit.AddEntry(createEntry("a", "10", 0, 1)))
	assert.NoError(t, limit.Validate())

	limit.TotalVolume = d("11")
	assert.Error(t, limit.Validate())

	assert.ErrorIs(t, NewLimit(decimal.Zero).Validate(), ErrInvalidPrice)
}

func TestEntryFromOrder(t *testing.T) {
	o, err := orderv1.New(orderv1.NewParams{
		ID: "o1", UserID: "u1", Side: marketv1.Buy, Kind: orderv1.Limit(d("650")),
		Pair: marketv1.Pair{Base: marketv1.EUR, Quote: marketv1.AOA}, Quantity: d("3"), Now: base,
	})
	require.NoError(t, err)
	o.Sequence = 9

	e, ok := EntryFromOrder(o)
	require.True(t, ok)
	assert.True(t, e.IsBid())
	assert.True(t, e.Price.Equal(d("650")))
	assert.Equal(t, int64(9), e.Sequence)

	o.Kind = orderv1.Market()
	_, ok = EntryFromOrder(o)
	assert.False(t, ok)
}

func TestMatch_Sides(t *testing.T) {
	m := Match{TakerOrderID: "t", MakerOrderID: "m", TakerSide: marketv1.Buy}
	assert.Equal(t, "t", m.BuyOrderID())
	assert.Equal(t, "m", m.SellOrderID())

	m.TakerSide = marketv1.Sell
	assert.Equal(t, "m", m.BuyOrderID())
	assert.Equal(t, "t", m.SellOrderID())
}
