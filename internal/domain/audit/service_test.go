package audit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
)

type memoryRepo struct {
	entries []Entry
}

func (m *memoryRepo) Create(_ context.Context, e *Entry) error {
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memoryRepo) ListByEntity(_ context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error) {
	out := make([]Entry, 0)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if e := m.entries[i]; e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, threshold int) (*Service, *memoryRepo) {
	t.Helper()
	codec, err := NewCodec(threshold)
	require.NoError(t, err)
	repo := &memoryRepo{}
	return NewService(repo, codec), repo
}

func TestAfterCommit_RecordsWithdrawal(t *testing.T) {
	svc, repo := newTestService(t, 0)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1", Email: "u1@example.com"})
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext(ctx, "req-9"))

	w := &allocation.Withdrawal{
		ID:        id.New(),
		Reference: "WD-2024-00001",
		Result: allocation.Result{
			Requested: types.NewQuantity(3),
			Fulfilled: types.NewQuantity(3),
			Lines:     []allocation.Take{{LotID: id.New(), Quantity: types.NewQuantity(3)}},
		},
		Attempts: 1,
	}
	require.NoError(t, svc.AfterCommit(ctx, w))

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	assert.Equal(t, EntityLotAllocation, e.EntityType)
	assert.Equal(t, w.ID, e.EntityID)
	assert.Equal(t, ActionWithdraw, e.Action)
	assert.Equal(t, "u-1", e.UserID)
	assert.Equal(t, "u1@example.com", e.UserEmail)
	assert.Equal(t, CompressionNone, e.CompressionAlgo)
	assert.JSONEq(t, `{"request_id":"req-9"}`, string(e.Metadata))

	var changes map[string]any
	require.NoError(t, json.Unmarshal(e.Changes, &changes))
	assert.Equal(t, "WD-2024-00001", changes["reference"])
}

func TestHistory_DecompressesLargeChanges(t *testing.T) {
	svc, repo := newTestService(t, 64)
	ctx := context.Background()
	entityID := id.New()

	big := map[string]string{"note": strings.Repeat("lot ", 200)}
	require.NoError(t, svc.LogChange(ctx, EntityLot, entityID, ActionReceive, big))
	require.NoError(t, svc.LogChange(ctx, EntityLot, entityID, ActionUpdate, map[string]int{"qty": 1}))

	stored := repo.entries[0]
	assert.Equal(t, CompressionZstd, stored.CompressionAlgo)
	assert.Nil(t, stored.Changes)
	assert.NotEmpty(t, stored.ChangesCompressed)

	history, err := svc.History(ctx, EntityLot, entityID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ActionUpdate, history[0].Action)

	var restored map[string]string
	require.NoError(t, json.Unmarshal(history[1].Changes, &restored))
	assert.Equal(t, big, restored)
	assert.Nil(t, history[1].ChangesCompressed)
}

func TestDiff(t *testing.T) {
	changes := Diff(
		map[string]any{"name": "Flour", "unit": "kg", "min": 5},
		map[string]any{"name": "Flour", "unit": "g", "code": "MAT-1"},
	)

	assert.Equal(t, map[string]any{
		"unit": map[string]any{"old": "kg", "new": "g"},
		"code": map[string]any{"old": nil, "new": "MAT-1"},
		"min":  map[string]any{"old": 5, "new": nil},
	}, changes)
}

func TestLogUpdate_SkipsUnchanged(t *testing.T) {
	svc, repo := newTestService(t, 0)
	ctx := context.Background()
	materialID := id.New()
	state := map[string]any{"name": "Flour", "minStock": "5.0000"}

	require.NoError(t, svc.LogUpdate(ctx, EntityMaterial, materialID, state, state))
	assert.Empty(t, repo.entries)

	require.NoError(t, svc.LogUpdate(ctx, EntityMaterial, materialID, state,
		map[string]any{"name": "Flour", "minStock": "8.0000"}))
	require.Len(t, repo.entries, 1)
	assert.Equal(t, ActionUpdate, repo.entries[0].Action)
	assert.JSONEq(t, `{"minStock":{"old":"5.0000","new":"8.0000"}}`, string(repo.entries[0].Changes))
}
