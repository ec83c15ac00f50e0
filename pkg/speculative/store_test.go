package speculative

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type item struct {
	ID     int
	Status string
}

func newStore() *Store[int, item] {
	s := New(func(v item) int { return v.ID })
	s.Replace([]item{{1, "New"}, {2, "New"}})
	return s
}

func setStatus(status string) func(item) item {
	return func(v item) item {
		v.Status = status
		return v
	}
}

func TestApplyCommitRollback(t *testing.T) {
	t.Run("commit takes the server value", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.Apply("op1", 1, setStatus("Deferred")))
		got, _ := s.Get(1)
		assert.Equal(t, "Deferred", got.Status)
		assert.Equal(t, 1, s.Pending())

		require.NoError(t, s.Commit("op1", item{1, "Deferred"}))
		got, _ = s.Get(1)
		assert.Equal(t, "Deferred", got.Status)
		assert.Zero(t, s.Pending())
	})

	t.Run("rollback restores the confirmed value", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.Apply("op1", 1, setStatus("Deferred")))
		require.NoError(t, s.Rollback("op1"))
		got, _ := s.Get(1)
		assert.Equal(t, "New", got.Status)
		assert.ErrorIs(t, s.Rollback("op1"), ErrUnknownOperation)
	})

	t.Run("refresh during operation is not lost on rollback", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.Apply("op1", 1, setStatus("Deferred")))
		s.Replace([]item{{1, "Pending Review"}, {2, "New"}, {3, "New"}})

		got, _ := s.Get(1)
		assert.Equal(t, "Deferred", got.Status, "pending op stays on top of fresh data")
		require.NoError(t, s.Rollback("op1"))
		got, _ = s.Get(1)
		assert.Equal(t, "Pending Review", got.Status)
		assert.Len(t, s.List(), 3)
	})

	t.Run("errors", func(t *testing.T) {
		s := newStore()
		assert.ErrorIs(t, s.Apply("op1", 9, setStatus("x")), ErrUnknownKey)
		require.NoError(t, s.Apply("op1", 1, setStatus("x")))
		assert.ErrorIs(t, s.Apply("op1", 2, setStatus("y")), ErrDuplicateOp)
		assert.ErrorIs(t, s.Commit("nope", item{1, "x"}), ErrUnknownOperation)
	})

	t.Run("delete drops pending ops", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.Apply("op1", 2, setStatus("Cancelled")))
		s.Delete(2)
		_, ok := s.Get(2)
		assert.False(t, ok)
		assert.Zero(t, s.Pending())
		assert.Equal(t, []item{{1, "New"}}, s.List())
	})
}

func TestConcurrentOperations(t *testing.T) {
	s := New(func(v item) int { return v.ID })
	var all []item
	for i := 0; i < 50; i++ {
		all = append(all, item{i, "New"})
	}
	s.Replace(all)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opID := fmt.Sprintf("op-%d", i)
			if err := s.Apply(opID, i, setStatus("Deferred")); err != nil {
				t.Error(err)
				return
			}
			if i%2 == 0 {
				_ = s.Commit(opID, item{i, "Deferred"})
			} else {
				_ = s.Rollback(opID)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, s.Pending())
	for _, v := range s.List() {
		want := "New"
		if v.ID%2 == 0 {
			want = "Deferred"
		}
		assert.Equal(t, want, v.Status, "item %d", v.ID)
	}
}
