package lifecycle

import (
	"testing"

	"agency-crm/pkg/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from   dto.TaskStatus
		action Action
		want   dto.TaskStatus
	}{
		{dto.StatusNew, ActionDefer, dto.StatusDeferred},
		{dto.StatusDeferred, ActionResume, dto.StatusNew},
		{dto.StatusNew, ActionSubmit, dto.StatusPendingReview},
		{dto.StatusDeferred, ActionSubmit, dto.StatusPendingReview},
		{dto.StatusPendingReview, ActionApprove, dto.StatusCompleted},
		{dto.StatusPendingReview, ActionReject, dto.StatusNew},
		{dto.StatusNew, ActionCancel, dto.StatusCancelled},
		{dto.StatusDeferred, ActionCancel, dto.StatusCancelled},
		{dto.StatusPendingReview, ActionCancel, dto.StatusCancelled},
		{dto.StatusCompleted, ActionRestore, dto.StatusNew},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := Next(tt.from, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	rejected := []struct {
		from   dto.TaskStatus
		action Action
	}{
		{dto.StatusDeferred, ActionDefer},
		{dto.StatusNew, ActionApprove},
		{dto.StatusCompleted, ActionCancel},
		{dto.StatusCancelled, ActionResume},
		{dto.StatusNew, ActionRestore},
		{dto.StatusNew, Action("archive")},
	}
	for _, tt := range rejected {
		_, err := Next(tt.from, tt.action)
		assert.ErrorIs(t, err, ErrTransition, "%s/%s", tt.from, tt.action)
	}
}

func TestAllowed(t *testing.T) {
	assert.Equal(t, []Action{ActionDefer, ActionSubmit, ActionCancel}, Allowed(dto.StatusNew))
	assert.Equal(t, []Action{ActionRestore}, Allowed(dto.StatusCompleted))
	assert.Empty(t, Allowed(dto.StatusCancelled))
	assert.True(t, IsTerminal(dto.StatusCancelled))
}
