package lifecycle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTableComplete(t *testing.T) {
	assert.Len(t, statusTable, len(Statuses()))
	for _, st := range Statuses() {
		assert.True(t, st.Valid(), st)
		assert.NotEqual(t, "Unknown", st.Label(false))
	}
}

func TestNextFollowsLifecycle(t *testing.T) {
	tests := []struct {
		from   Status
		action Action
		actor  Actor
		want   Status
	}{
		{StatusPending, ActionCancel, ActorBuyer, StatusCancelled},
		{StatusPending, ActionCancel, ActorSeller, StatusCancelled},
		{StatusPending, ActionDeliver, ActorSeller, StatusDelivered},
		{StatusDelivered, ActionReturn, ActorBuyer, StatusReturned},
		{StatusReturned, ActionRefund, ActorSeller, StatusRefunded},
		{StatusReturned, ActionRejectRefund, ActorSeller, StatusRefundRejected},
		{StatusCancelled, ActionRefund, ActorSeller, StatusRefunded},
		{StatusCancelled, ActionRejectRefund, ActorSeller, StatusRefundRejected},
	}

	for _, tt := range tests {
		got, err := Next(tt.from, tt.action, tt.actor)
		require.NoError(t, err, "%s %s by %s", tt.from, tt.action, tt.actor)
		assert.Equal(t, tt.want, got)
		assert.True(t, CanTransition(tt.from, tt.want))
	}
}

func TestNextRejectsUnlistedEdges(t *testing.T) {
	actions := []Action{ActionCancel, ActionDeliver, ActionReturn, ActionRefund, ActionRejectRefund}
	actors := []Actor{ActorBuyer, ActorSeller}

	for _, from := range Statuses() {
		for _, action := range actions {
			if _, listed := transitions[edge{from, action}]; listed {
				continue
			}
			for _, actor := range actors {
				got, err := Next(from, action, actor)
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s %s", from, action)
				assert.Equal(t, from, got, "status must be unchanged")
			}
		}
	}
}

func TestNothingReentersPending(t *testing.T) {
	for _, st := range Statuses() {
		assert.False(t, CanTransition(st, StatusPending), st)
	}
}

func TestNextRejectsWrongActor(t *testing.T) {
	_, err := Next(StatusPending, ActionDeliver, ActorBuyer)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = Next(StatusDelivered, ActionReturn, ActorSeller)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = Next(StatusReturned, ActionRefund, ActorBuyer)
	assert.ErrorIs(t, err, ErrForbidden)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ActorBuyer, terr.Actor)
}

func TestTerminalStatusesOfferNoActions(t *testing.T) {
	for _, st := range []Status{StatusRefunded, StatusRefundRejected} {
		assert.True(t, st.IsTerminal())
		assert.Empty(t, Actions(st, ActorBuyer))
		assert.Empty(t, Actions(st, ActorSeller))
	}
}

func TestActions(t *testing.T) {
	assert.Equal(t, []Action{ActionCancel}, Actions(StatusPending, ActorBuyer))
	assert.Equal(t, []Action{ActionDeliver, ActionCancel}, Actions(StatusPending, ActorSeller))
	assert.Equal(t, []Action{ActionReturn}, Actions(StatusDelivered, ActorBuyer))
	assert.Empty(t, Actions(StatusDelivered, ActorSeller))
	assert.Equal(t, []Action{ActionRefund, ActionRejectRefund}, Actions(StatusReturned, ActorSeller))
	assert.Equal(t, []Action{ActionRefund, ActionRejectRefund}, Actions(StatusCancelled, ActorSeller))
}

func TestSources(t *testing.T) {
	assert.Equal(t, []Status{StatusCancelled, StatusReturned}, Sources(ActionRefund))
	assert.Equal(t, []Status{StatusPending}, Sources(ActionCancel))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Cancelled by Seller", StatusReturned.Label(true))
	assert.Equal(t, "Return/Cancel Requested", StatusReturned.Label(false))
	assert.Equal(t, "Cancelled by Seller", StatusCancelled.Label(true))
	assert.Equal(t, "Refund Rejected", StatusRefundRejected.Label(false))
	assert.Equal(t, "Unknown", Status("lost").Label(false))
}

func TestStatusJSON(t *testing.T) {
	var v struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"refund_rejected"}`), &v))
	assert.Equal(t, StatusRefundRejected, v.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"shipped"}`), &v))

	var s Status
	require.NoError(t, s.Scan([]byte("delivered")))
	assert.Equal(t, StatusDelivered, s)
}

func TestClassifyReason(t *testing.T) {
	tests := []struct {
		reason string
		want   ReasonCategory
	}{
		{"This item is FAKE", ReasonFake},
		{"looks counterfeit to me", ReasonFake},
		{"Not as described", ReasonNotAsDescribed},
		{"color is different", ReasonNotAsDescribed},
		{"changed my mind", ReasonUncategorized},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyReason(tt.reason), tt.reason)
	}

	assert.Equal(t, ReasonOther, ReasonUncategorized.StoredCategory())
	assert.True(t, ReasonDamaged.IsIntegrityIssue())
	assert.False(t, ReasonOther.IsIntegrityIssue())
}
