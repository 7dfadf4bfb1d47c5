package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Braavos-Developer/diner-design/internal/domain"
)

func TestOneOpenCallPerTable(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	first, err := e.calls.Create(ctx, CreateCallInput{TableNumber: 5, Reason: domain.CallWater})
	require.NoError(t, err)
	assert.Equal(t, domain.CallPending, first.Status)

	// A second open call for table 5 is rejected, even for another reason.
	_, err = e.calls.Create(ctx, CreateCallInput{TableNumber: 5, Reason: domain.CallBill})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Other tables are unaffected.
	_, err = e.calls.Create(ctx, CreateCallInput{TableNumber: 6, Reason: domain.CallWater})
	require.NoError(t, err)

	resolved := domain.CallResolved
	_, err = e.calls.Update(ctx, first.ID, UpdateCallInput{Status: &resolved})
	require.NoError(t, err)

	// Once resolved, table 5 may call again.
	_, err = e.calls.Create(ctx, CreateCallInput{TableNumber: 5, Reason: domain.CallAssistance})
	require.NoError(t, err)
}

func TestAttendingStillBlocksNewCalls(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	call, err := e.calls.Create(ctx, CreateCallInput{TableNumber: 3, Reason: domain.CallAssistance})
	require.NoError(t, err)

	attending := domain.CallAttending
	_, err = e.calls.Update(ctx, call.ID, UpdateCallInput{Status: &attending})
	require.NoError(t, err)

	_, err = e.calls.Create(ctx, CreateCallInput{TableNumber: 3, Reason: domain.CallWater})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCallTimestampsAreSetOnceAndOrdered(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	call, err := e.calls.Create(ctx, CreateCallInput{TableNumber: 7, Reason: domain.CallBill, Priority: domain.PriorityHigh})
	require.NoError(t, err)
	assert.Nil(t, call.AcceptedAt)
	assert.Nil(t, call.ResolvedAt)

	attending := domain.CallAttending
	accepted, err := e.calls.Update(ctx, call.ID, UpdateCallInput{Status: &attending})
	require.NoError(t, err)
	require.NotNil(t, accepted.AcceptedAt)
	assert.False(t, accepted.AcceptedAt.Before(call.CreatedAt))
	acceptedAt := *accepted.AcceptedAt

	// Re-sending the same status moves nothing.
	again, err := e.calls.Update(ctx, call.ID, UpdateCallInput{Status: &attending})
	require.NoError(t, err)
	assert.True(t, acceptedAt.Equal(*again.AcceptedAt))

	resolved := domain.CallResolved
	done, err := e.calls.Update(ctx, call.ID, UpdateCallInput{Status: &resolved})
	require.NoError(t, err)
	require.NotNil(t, done.ResolvedAt)
	assert.False(t, done.ResolvedAt.Before(*done.AcceptedAt))
}

func TestResolvedCallsStayResolved(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	call, err := e.calls.Create(ctx, CreateCallInput{TableNumber: 2, Reason: domain.CallComplaint})
	require.NoError(t, err)

	resolved := domain.CallResolved
	_, err = e.calls.Update(ctx, call.ID, UpdateCallInput{Status: &resolved})
	require.NoError(t, err)

	attending := domain.CallAttending
	_, err = e.calls.Update(ctx, call.ID, UpdateCallInput{Status: &attending})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCallValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	_, err := e.calls.Create(ctx, CreateCallInput{TableNumber: 0, Reason: domain.CallWater})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = e.calls.Create(ctx, CreateCallInput{TableNumber: 1, Reason: "karaoke"})
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestCallNotFound(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	resolved := domain.CallResolved
	_, err := e.calls.Update(ctx, "call-0-missing", UpdateCallInput{Status: &resolved})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = e.calls.Delete(ctx, "call-0-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCallMessageAndPriorityUpdates(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	call, err := e.calls.Create(ctx, CreateCallInput{TableNumber: 9, Reason: domain.CallAssistance, Message: "spilled drink"})
	require.NoError(t, err)

	urgent := domain.PriorityUrgent
	updated, err := e.calls.Update(ctx, call.ID, UpdateCallInput{Priority: &urgent, Message: strPtr("spilled wine on guest")})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityUrgent, updated.Priority)
	assert.Equal(t, "spilled wine on guest", updated.Message)
	assert.Equal(t, domain.CallPending, updated.Status)
}
