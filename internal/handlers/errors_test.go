package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"agency-crm/internal/apperr"
	"agency-crm/pkg/decision"
	"agency-crm/pkg/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBody(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   dto.ErrorKind
	}{
		{"not found", apperr.NotFound("task", 5), http.StatusNotFound, dto.KindNotFound},
		{"conflict", apperr.Conflict(dto.ConflictTypePrepaid, map[string]string{"surplus": "200.00"}), http.StatusConflict, dto.KindConflictDetected},
		{"stale", apperr.Concurrent("task", 5, "version changed"), http.StatusPreconditionFailed, dto.KindConcurrentModification},
		{"rejected", fmt.Errorf("approve: %w", apperr.Rejected("no")), http.StatusUnprocessableEntity, dto.KindValidationRejected},
		{"missing decisions", &decision.MissingError{Payments: []uint{3}}, http.StatusUnprocessableEntity, dto.KindPartialDecisionMissing},
		{"bad decision", fmt.Errorf("%w: unknown action", decision.ErrInvalidDecision), http.StatusBadRequest, dto.KindBadRequest},
		{"unexpected", fmt.Errorf("disk full"), http.StatusInternalServerError, dto.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorBody(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}

	t.Run("conflict carries report and type", func(t *testing.T) {
		_, body := errorBody(apperr.Conflict(dto.ConflictTypeAmount, map[string]string{"surplus": "50.00"}))
		assert.Equal(t, dto.ConflictTypeAmount, body.ConflictType)
		var data map[string]string
		require.NoError(t, json.Unmarshal(body.Data, &data))
		assert.Equal(t, "50.00", data["surplus"])
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		_, body := errorBody(fmt.Errorf("pq: password authentication failed"))
		assert.NotContains(t, body.Error, "password")
	})

	t.Run("stale record is named", func(t *testing.T) {
		_, body := errorBody(apperr.Concurrent("payment", 9, "payment 9 is gone"))
		require.NotNil(t, body.Record)
		assert.Equal(t, dto.RecordRef{Type: "payment", ID: 9}, *body.Record)
	})
}
