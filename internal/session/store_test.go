package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	t.Parallel()

	t.Run("missing key returns zero session", func(t *testing.T) {
		t.Parallel()
		s := NewStore(DefaultTTL)
		require.Equal(t, Session{}, s.Get("tg:1"))
	})

	t.Run("put then get", func(t *testing.T) {
		t.Parallel()
		s := NewStore(DefaultTTL)
		s.Put("tg:1", Session{LastExpenseID: 42, Listing: []int{1, 2, 3}})

		got := s.Get("tg:1")
		require.Equal(t, 42, got.LastExpenseID)
		require.Equal(t, []int{1, 2, 3}, got.Listing)
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()
		s := NewStore(DefaultTTL)
		s.SetLastExpense("tg:1", 7)
		s.SetLastExpense("wa:+2348012345678", 9)

		require.Equal(t, 7, s.Get("tg:1").LastExpenseID)
		require.Equal(t, 9, s.Get("wa:+2348012345678").LastExpenseID)
	})

	t.Run("expired session reads as zero", func(t *testing.T) {
		t.Parallel()
		s := NewStore(time.Millisecond)
		s.SetLastExpense("tg:1", 7)
		time.Sleep(5 * time.Millisecond)
		require.Equal(t, Session{}, s.Get("tg:1"))
	})

	t.Run("clear last expense keeps listing", func(t *testing.T) {
		t.Parallel()
		s := NewStore(DefaultTTL)
		s.Put("tg:1", Session{LastExpenseID: 42, Listing: []int{5, 6}})
		s.ClearLastExpense("tg:1")

		got := s.Get("tg:1")
		require.Equal(t, 0, got.LastExpenseID)
		require.Equal(t, []int{5, 6}, got.Listing)
	})

	t.Run("set listing keeps last expense", func(t *testing.T) {
		t.Parallel()
		s := NewStore(DefaultTTL)
		s.SetLastExpense("tg:1", 42)
		s.SetListing("tg:1", []int{10, 11})

		got := s.Get("tg:1")
		require.Equal(t, 42, got.LastExpenseID)
		require.Equal(t, []int{10, 11}, got.Listing)
	})
}
