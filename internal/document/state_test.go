package document

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycleTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusCreated, true},
		{StatusCreated, StatusParticipantsSet, true},
		{StatusParticipantsSet, StatusSent, true},
		{StatusSent, StatusInProgress, true},
		{StatusSent, StatusCompleted, true},
		{StatusSent, StatusDeclined, true},
		{StatusSent, StatusCanceled, true},
		{StatusSent, StatusExpired, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusExpired, true},

		// skipping a preparation step is not allowed
		{StatusDraft, StatusSent, false},
		{StatusCreated, StatusSent, false},
		{StatusDraft, StatusParticipantsSet, false},
		// no going back
		{StatusSent, StatusCreated, false},
		{StatusInProgress, StatusSent, false},
		// terminal states accept nothing
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusDeclined, StatusCompleted, false},
		{StatusCanceled, StatusSent, false},
		{StatusExpired, StatusInProgress, false},
		// unknown states have no edges
		{Status("bogus"), StatusSent, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusDeclined, StatusCanceled, StatusExpired} {
		require.True(t, s.Terminal(), "%s", s)
	}
	for _, s := range []Status{StatusDraft, StatusCreated, StatusParticipantsSet, StatusSent, StatusInProgress} {
		require.False(t, s.Terminal(), "%s", s)
	}
	require.False(t, Status("bogus").Terminal())
}

func TestInvalidStateErrorMessage(t *testing.T) {
	e := &InvalidStateError{Op: "send", From: StatusDraft}
	require.Contains(t, e.Error(), "send")
	require.Contains(t, e.Error(), "draft")

	e = &InvalidStateError{Op: "status update", From: StatusCompleted, To: StatusInProgress}
	require.Contains(t, e.Error(), "completed")
	require.Contains(t, e.Error(), "in_progress")
}

func TestSigningFlowValid(t *testing.T) {
	require.True(t, FlowStandard.Valid())
	require.True(t, FlowEmbeddedSMS.Valid())
	require.True(t, FlowSimplifiedAuth.Valid())
	require.False(t, SigningFlow("postal_mail").Valid())
	require.False(t, SigningFlow("").Valid())
}
