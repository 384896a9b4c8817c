package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"go.uber.org/zap"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturePublisher) PublishStatus(agentID, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, agentID+":"+status)
}

func newTestRegistry() *Registry {
	return New(zap.NewNop(), nil)
}

func TestRegisterAssignsIDAndDefaults(t *testing.T) {
	reg := newTestRegistry()

	id := reg.Register(domain.Agent{Name: "triage", Role: "analyst", Capabilities: []string{"kb.search", "kb.search"}})
	require.NotEmpty(t, id)

	agent, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.AgentStatusIdle, agent.Status)
	// Дубликаты способностей схлопываются при регистрации
	assert.Equal(t, []string{"kb.search"}, agent.Capabilities)
	assert.False(t, agent.CreatedAt.IsZero())
}

func TestGetReturnsCopy(t *testing.T) {
	reg := newTestRegistry()
	id := reg.Register(domain.Agent{Name: "a", Capabilities: []string{"x"}})

	agent, _ := reg.Get(id)
	agent.Capabilities[0] = "mutated"
	agent.Name = "mutated"

	fresh, _ := reg.Get(id)
	assert.Equal(t, "x", fresh.Capabilities[0])
	assert.Equal(t, "a", fresh.Name)
}

func TestGetUnknownAgent(t *testing.T) {
	reg := newTestRegistry()
	_, ok := reg.Get("no-such-id")
	assert.False(t, ok)
}

func TestRemoveCascadesGroups(t *testing.T) {
	reg := newTestRegistry()
	id := reg.Register(domain.Agent{Name: "a"})
	require.True(t, reg.CreateGroup("escalation", id))

	require.True(t, reg.Remove(id))
	assert.False(t, reg.Remove(id))
	assert.Empty(t, reg.ListInGroup("escalation"))
}

func TestUpdateStatusPublishes(t *testing.T) {
	pub := &capturePublisher{}
	reg := New(zap.NewNop(), pub)
	id := reg.Register(domain.Agent{Name: "a"})

	require.True(t, reg.UpdateStatus(id, domain.AgentStatusBusy))
	agent, _ := reg.Get(id)
	assert.Equal(t, domain.AgentStatusBusy, agent.Status)
	assert.Equal(t, []string{id + ":busy"}, pub.events)

	assert.False(t, reg.UpdateStatus("ghost", domain.AgentStatusBusy))
	assert.Len(t, pub.events, 1)
}

func TestApplyStatusDoesNotPublish(t *testing.T) {
	pub := &capturePublisher{}
	reg := New(zap.NewNop(), pub)
	id := reg.Register(domain.Agent{Name: "a"})

	// Путь слушателя Pub/Sub: применить локально, не ретранслировать
	require.True(t, reg.ApplyStatus(id, domain.AgentStatusOffline))
	assert.Empty(t, pub.events)
}

func TestListByRoleAndCapability(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(domain.Agent{Name: "t1", Role: "analyst", Capabilities: []string{"kb.search"}})
	reg.Register(domain.Agent{Name: "t2", Role: "analyst", Capabilities: []string{"erp.update"}})
	reg.Register(domain.Agent{Name: "ops", Role: "admin", Capabilities: []string{"kb.search"}})

	assert.Len(t, reg.ListAll(), 3)
	assert.Len(t, reg.ListByRole("analyst"), 2)
	assert.Len(t, reg.ListByCapability("kb.search"), 2)
	assert.Empty(t, reg.ListByRole("ghost"))
}

func TestGroupMembership(t *testing.T) {
	reg := newTestRegistry()
	a := reg.Register(domain.Agent{Name: "a"})
	b := reg.Register(domain.Agent{Name: "b"})

	require.True(t, reg.CreateGroup("tier-2", a, "unknown-id"))
	assert.False(t, reg.CreateGroup("tier-2"), "duplicate group id")

	// Неизвестный агент в initial-списке просто пропускается
	require.Len(t, reg.ListInGroup("tier-2"), 1)

	require.True(t, reg.AddToGroup("tier-2", b))
	assert.True(t, reg.AddToGroup("tier-2", b), "повторное добавление идемпотентно")
	assert.Len(t, reg.ListInGroup("tier-2"), 2)

	assert.False(t, reg.AddToGroup("ghost-group", a))
	assert.False(t, reg.AddToGroup("tier-2", "ghost-agent"))

	require.True(t, reg.RemoveFromGroup("tier-2", a))
	assert.Len(t, reg.ListInGroup("tier-2"), 1)
}

func TestStats(t *testing.T) {
	reg := newTestRegistry()
	a := reg.Register(domain.Agent{Name: "a"})
	reg.Register(domain.Agent{Name: "b"})
	reg.UpdateStatus(a, domain.AgentStatusBusy)
	reg.CreateGroup("g1")

	stats := reg.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.AgentStatusBusy])
	assert.Equal(t, 1, stats.ByStatus[domain.AgentStatusIdle])
	assert.Equal(t, 1, stats.Groups)
}
