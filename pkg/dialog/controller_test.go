package dialog

import (
	"testing"

	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	var seen []Kind
	s := NewStack(func(d Dialog) {
		if d == nil {
			seen = append(seen, "")
			return
		}
		seen = append(seen, d.Kind())
	})

	_, ok := s.Current()
	assert.False(t, ok)

	s.Open(TaskDrawer{Task: dto.Task{ID: 7}})
	report := &dto.ConflictReport{TaskID: 7, Surplus: decimal.NewFromInt(200)}
	s.Open(PrepaidConflict{Report: report, NewPrepaid: decimal.NewFromInt(200)})
	s.Open(PrepaidConflict{Report: report, NewPrepaid: decimal.NewFromInt(100)})
	assert.Equal(t, 2, s.Depth(), "same dialog for the same task is replaced")

	cur, ok := s.Current()
	require.True(t, ok)
	conflict, ok := cur.(PrepaidConflict)
	require.True(t, ok)
	assert.True(t, conflict.NewPrepaid.Equal(decimal.NewFromInt(100)))

	s.Close()
	cur, _ = s.Current()
	assert.Equal(t, KindTaskDrawer, cur.Kind())

	s.Open(TaskDrawer{Task: dto.Task{ID: 8}})
	s.CloseTask(7)
	assert.Equal(t, 1, s.Depth())
	cur, _ = s.Current()
	assert.Equal(t, uint(8), cur.TaskID())

	s.Close()
	s.Close()
	assert.Equal(t, []Kind{KindTaskDrawer, KindPrepaidConflict, KindPrepaidConflict, KindTaskDrawer, KindTaskDrawer, KindTaskDrawer, "", ""}, seen)
}

func TestVariants(t *testing.T) {
	v := &dto.RestoreValidation{Consequences: dto.RestoreConsequences{Task: dto.TaskRef{ID: 3}}}
	dialogs := []Dialog{
		TaskDrawer{Task: dto.Task{ID: 3}},
		PrepaidConflict{Report: &dto.ConflictReport{TaskID: 3}},
		AmountConflict{Report: &dto.ConflictReport{TaskID: 3}},
		CancelTask{Analysis: &dto.CancellationAnalysis{TaskID: 3}},
		RestoreConfirm{Validation: v},
	}
	kinds := map[Kind]bool{}
	for _, d := range dialogs {
		assert.Equal(t, uint(3), d.TaskID())
		kinds[d.Kind()] = true
	}
	assert.Len(t, kinds, 5)
}
