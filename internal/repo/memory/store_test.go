package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/repo"
)

func newNode(instanceID, nodeID string, status domain.NodeStatus) *domain.InstanceNode {
	return &domain.InstanceNode{
		ID:           domain.InstanceNodeID(instanceID, nodeID),
		InstanceID:   instanceID,
		NodeID:       nodeID,
		DefinitionID: "step",
		Status:       status,
	}
}

func TestStore_DefinitionsAndBlueprints(t *testing.T) {
	ctx := context.Background()
	s := New()

	def := &domain.WorkNodeDefinition{ID: "step", Command: "echo", Args: []string{"hi"}}
	require.NoError(t, s.CreateDefinition(ctx, def))
	assert.ErrorIs(t, s.CreateDefinition(ctx, def), repo.ErrAlreadyExists)

	got, err := s.GetDefinition(ctx, "step")
	require.NoError(t, err)
	got.Args[0] = "changed"

	again, err := s.GetDefinition(ctx, "step")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Args[0], "stored definition must not be aliased")

	_, err = s.GetDefinition(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	now := time.Now()
	require.NoError(t, s.CreateBlueprint(ctx, &domain.Blueprint{ID: "old", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.CreateBlueprint(ctx, &domain.Blueprint{ID: "new", CreatedAt: now}))

	bps, err := s.ListBlueprints(ctx)
	require.NoError(t, err)
	require.Len(t, bps, 2)
	assert.Equal(t, "new", bps[0].ID)
	assert.Equal(t, "old", bps[1].ID)

	_, err = s.GetBlueprint(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestStore_UpdateNodeVersion(t *testing.T) {
	ctx := context.Background()
	s := New()

	inst := &domain.ActionInstance{ID: "i1", BlueprintID: "bp", Status: domain.InstanceStatusReady}
	nodes := []*domain.InstanceNode{
		newNode("i1", "a", domain.NodeStatusReady),
		newNode("i1", "b", domain.NodeStatusUnready),
	}
	require.NoError(t, s.CreateInstance(ctx, inst, nodes))

	first, err := s.GetNode(ctx, "i1.a")
	require.NoError(t, err)
	second, err := s.GetNode(ctx, "i1.a")
	require.NoError(t, err)

	first.MarkRunning()
	require.NoError(t, s.UpdateNode(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	// Вторая копия прочитана до обновления
	second.MarkFailed("late")
	assert.ErrorIs(t, s.UpdateNode(ctx, second), repo.ErrConflict)

	stored, err := s.GetNode(ctx, "i1.a")
	require.NoError(t, err)
	assert.Equal(t, domain.NodeStatusRunning, stored.Status)

	assert.ErrorIs(t, s.UpdateNode(ctx, newNode("i1", "zzz", domain.NodeStatusReady)), repo.ErrNotFound)
}

func TestStore_UpdateInstanceVersion(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateInstance(ctx, &domain.ActionInstance{ID: "i1", Status: domain.InstanceStatusReady}, nil))

	a, err := s.GetInstance(ctx, "i1")
	require.NoError(t, err)
	b, err := s.GetInstance(ctx, "i1")
	require.NoError(t, err)

	a.MarkRunning()
	require.NoError(t, s.UpdateInstance(ctx, a))

	b.CancelRequested = true
	assert.ErrorIs(t, s.UpdateInstance(ctx, b), repo.ErrConflict)
}

func TestStore_ListNodesKeepsGraphOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	nodes := []*domain.InstanceNode{
		newNode("i1", "z", domain.NodeStatusReady),
		newNode("i1", "a", domain.NodeStatusUnready),
		newNode("i1", "m", domain.NodeStatusUnready),
	}
	require.NoError(t, s.CreateInstance(ctx, &domain.ActionInstance{ID: "i1"}, nodes))

	got, err := s.ListNodes(ctx, "i1")
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, n := range got {
		ids = append(ids, n.NodeID)
	}
	assert.Equal(t, []string{"z", "a", "m"}, ids)
}

func TestStore_ListStaleNodes(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Now()
	old := now.Add(-time.Minute)
	older := now.Add(-2 * time.Minute)
	fresh := now.Add(time.Second)

	stale1 := newNode("i1", "a", domain.NodeStatusRunning)
	stale1.LastHeartbeatAt = &old
	stale2 := newNode("i1", "b", domain.NodeStatusRunning)
	stale2.LastHeartbeatAt = &older
	alive := newNode("i1", "c", domain.NodeStatusRunning)
	alive.LastHeartbeatAt = &fresh
	done := newNode("i1", "d", domain.NodeStatusCompleted)
	done.LastHeartbeatAt = &older

	require.NoError(t, s.CreateInstance(ctx, &domain.ActionInstance{ID: "i1"},
		[]*domain.InstanceNode{stale1, stale2, alive, done}))

	got, err := s.ListStaleNodes(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].NodeID)
	assert.Equal(t, "a", got[1].NodeID)

	got, err = s.ListStaleNodes(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_ListInstancesFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Now()
	for i, spec := range []struct {
		id, bp string
		status domain.InstanceStatus
	}{
		{"i1", "bp1", domain.InstanceStatusReady},
		{"i2", "bp1", domain.InstanceStatusCompleted},
		{"i3", "bp2", domain.InstanceStatusCompleted},
	} {
		inst := &domain.ActionInstance{
			ID:          spec.id,
			BlueprintID: spec.bp,
			Status:      spec.status,
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.CreateInstance(ctx, inst, nil))
	}

	tests := []struct {
		name   string
		filter repo.InstanceFilter
		want   []string
	}{
		{"all newest first", repo.InstanceFilter{}, []string{"i3", "i2", "i1"}},
		{"by blueprint", repo.InstanceFilter{BlueprintID: "bp1"}, []string{"i2", "i1"}},
		{"by status", repo.InstanceFilter{Status: domain.InstanceStatusCompleted}, []string{"i3", "i2"}},
		{"limit", repo.InstanceFilter{Limit: 1}, []string{"i3"}},
		{"offset past end", repo.InstanceFilter{Offset: 5}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListInstances(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, inst := range got {
				ids = append(ids, inst.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
