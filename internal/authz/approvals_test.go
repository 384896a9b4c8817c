package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
)

func TestApprovalLifecycle(t *testing.T) {
	e, trail := newTestEngine()

	var decisions []bool
	id := e.RequestApproval("agent-1", "analyst", domain.ActionAutonomous,
		map[string]interface{}{"ticket": "TCK-1"},
		func(approved bool) { decisions = append(decisions, approved) })
	require.NotEmpty(t, id)

	req, ok := e.GetPending(id)
	require.True(t, ok)
	assert.Equal(t, domain.ApprovalPending, req.Status)
	assert.Equal(t, 1, e.PendingCount())

	require.True(t, e.Approve(id, "operator-7"))

	// Колбэк вызван синхронно и ровно один раз
	assert.Equal(t, []bool{true}, decisions)

	// Заявка снята с очереди
	_, ok = e.GetPending(id)
	assert.False(t, ok)
	assert.Equal(t, 0, e.PendingCount())

	// Решение попало в аудит с approver_id
	entries := trail.List("agent-1", domain.ActionAutonomous, 0)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Approved)
	assert.Equal(t, "operator-7", entries[0].ApproverID)
}

func TestDenyPassesFalseAndReason(t *testing.T) {
	e, trail := newTestEngine()

	var got []bool
	id := e.RequestApproval("agent-1", "analyst", domain.ActionDataModify, nil,
		func(approved bool) { got = append(got, approved) })

	require.True(t, e.Deny(id, "operator-7", "too risky"))
	assert.Equal(t, []bool{false}, got)

	entries := trail.List("agent-1", "", 0)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Approved)
	assert.Equal(t, "too risky", entries[0].Details["reason"])
}

func TestDoubleDecisionImpossible(t *testing.T) {
	e, _ := newTestEngine()

	calls := 0
	id := e.RequestApproval("agent-1", "analyst", domain.ActionAutonomous, nil,
		func(bool) { calls++ })

	require.True(t, e.Approve(id, "op-1"))
	assert.False(t, e.Approve(id, "op-2"))
	assert.False(t, e.Deny(id, "op-2", ""))
	assert.Equal(t, 1, calls)
}

func TestDecisionOnUnknownRequest(t *testing.T) {
	e, trail := newTestEngine()
	assert.False(t, e.Approve("ghost", "op-1"))
	assert.Equal(t, 0, trail.Len())
}

func TestNilCallbackIsFine(t *testing.T) {
	e, _ := newTestEngine()
	id := e.RequestApproval("agent-1", "user", domain.ActionQuery, nil, nil)
	assert.NotPanics(t, func() {
		require.True(t, e.Approve(id, "op-1"))
	})
}

func TestListPending(t *testing.T) {
	e, _ := newTestEngine()
	e.RequestApproval("a", "analyst", domain.ActionAutonomous, nil, nil)
	e.RequestApproval("b", "analyst", domain.ActionAutonomous, nil, nil)

	assert.Len(t, e.ListPending(), 2)
	assert.NotNil(t, e.ListPending())
}
