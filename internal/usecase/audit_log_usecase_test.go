package usecase_test

import (
	"context"
	"testing"
	"time"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"
	"fashionshop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_ListsStockAndOrderChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("Wool Coat", "120.00", 2)

	_, err := f.inventory.Restock(ctx, usecase.Admin(1), p.ID, usecase.RestockInput{Quantity: 3, Reason: "new season"})
	require.NoError(t, err)

	buyer := f.user("audit.buyer@example.com")
	o := f.placeFor(t, buyer, f.savedAddress(t, buyer), line(p.ID, 1))
	_, err = f.admin.Advance(ctx, usecase.Admin(2), o.ID, usecase.AdvanceOrderInput{})
	require.NoError(t, err)

	all, err := f.audits.List(ctx, usecase.Admin(1), repo.AuditLogFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, all.Total)
	require.Len(t, all.Items, 2)
	// 新しい順
	assert.Equal(t, model.AuditActionUpdateOrderStatus, all.Items[0].Action)
	assert.Equal(t, o.ID, all.Items[0].ResourceID)
	assert.Equal(t, model.AuditActionUpdateStock, all.Items[1].Action)

	byProduct, err := f.audits.List(ctx, usecase.Admin(1), repo.AuditLogFilter{
		Page: 1, Limit: 10, ResourceType: model.AuditResourceProduct, ResourceID: &p.ID,
	})
	require.NoError(t, err)
	require.Len(t, byProduct.Items, 1)
	assert.EqualValues(t, 1, byProduct.Items[0].ActorUserID)

	actor := int64(2)
	byActor, err := f.audits.List(ctx, usecase.Admin(1), repo.AuditLogFilter{Page: 1, Limit: 10, ActorUserID: &actor})
	require.NoError(t, err)
	require.Len(t, byActor.Items, 1)
	assert.Contains(t, byActor.Items[0].AfterJSON, string(model.OrderStatusConfirmed))

	second, err := f.audits.List(ctx, usecase.Admin(1), repo.AuditLogFilter{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.Total)
	require.Len(t, second.Items, 1)
	assert.Equal(t, model.AuditActionUpdateStock, second.Items[0].Action)

	future := time.Now().Add(time.Hour)
	none, err := f.audits.List(ctx, usecase.Admin(1), repo.AuditLogFilter{Page: 1, Limit: 10, From: &future})
	require.NoError(t, err)
	assert.Zero(t, none.Total)
	assert.Empty(t, none.Items)
}

func TestAuditLog_ListRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	earlier := now.Add(-time.Hour)

	_, err := f.audits.List(ctx, f.user("not.admin@example.com"), repo.AuditLogFilter{Page: 1, Limit: 10})
	assertKind(t, err, usecase.ErrForbidden)

	cases := []repo.AuditLogFilter{
		{Page: 0, Limit: 10},
		{Page: 1, Limit: 500},
		{Page: 1, Limit: 10, Action: "DROP_TABLE"},
		{Page: 1, Limit: 10, ResourceType: "user"},
		{Page: 1, Limit: 10, From: &now, To: &earlier},
	}
	for _, c := range cases {
		_, err := f.audits.List(ctx, usecase.Admin(1), c)
		assertKind(t, err, usecase.ErrValidation)
	}
}
