package usecase_test

import (
	"context"
	"errors"
	"testing"

	"fashionshop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStockNotification_SubscribeRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("watch@example.com")
	soldOut := f.product("Trench", "150.00", 0)
	inStock := f.product("Tee", "15.00", 4)

	out, err := f.stock.Subscribe(ctx, id, usecase.SubscribeInput{ProductID: soldOut.ID})
	require.NoError(t, err)
	assert.True(t, out.IsActive)

	_, err = f.stock.Subscribe(ctx, id, usecase.SubscribeInput{ProductID: soldOut.ID})
	assertKind(t, err, usecase.ErrDuplicateSubscription)

	_, err = f.stock.Subscribe(ctx, id, usecase.SubscribeInput{ProductID: inStock.ID})
	assertKind(t, err, usecase.ErrProductInStock)

	_, err = f.stock.Subscribe(ctx, id, usecase.SubscribeInput{ProductID: 9999})
	assertKind(t, err, usecase.ErrProductNotFound)

	// ゲストはメールで識別（大文字小文字は区別しない）
	_, err = f.stock.Subscribe(ctx, usecase.Guest(), usecase.SubscribeInput{ProductID: soldOut.ID, Email: "Fan@Example.com"})
	require.NoError(t, err)
	_, err = f.stock.Subscribe(ctx, usecase.Guest(), usecase.SubscribeInput{ProductID: soldOut.ID, Email: " fan@example.com "})
	assertKind(t, err, usecase.ErrDuplicateSubscription)

	_, err = f.stock.Subscribe(ctx, usecase.Guest(), usecase.SubscribeInput{ProductID: soldOut.ID})
	assertKind(t, err, usecase.ErrValidation)
	_, err = f.stock.Subscribe(ctx, usecase.Guest(), usecase.SubscribeInput{ProductID: soldOut.ID, Email: "nope"})
	assertKind(t, err, usecase.ErrValidation)

	mine, err := f.stock.ListMine(ctx, id)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, soldOut.ID, mine[0].ProductID)
}

func TestStockNotification_Unsubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("leave@example.com")
	p := f.product("Trench", "150.00", 0)

	_, err := f.stock.Subscribe(ctx, id, usecase.SubscribeInput{ProductID: p.ID})
	require.NoError(t, err)

	require.NoError(t, f.stock.Unsubscribe(ctx, id, p.ID))
	assertKind(t, f.stock.Unsubscribe(ctx, id, p.ID), usecase.ErrNotFound)
	assertKind(t, f.stock.Unsubscribe(ctx, usecase.Guest(), p.ID), usecase.ErrUnauthorized)

	// 解除後は再登録できる
	_, err = f.stock.Subscribe(ctx, id, usecase.SubscribeInput{ProductID: p.ID})
	require.NoError(t, err)
}

func TestStockNotification_NotifyDeactivatesOnlySent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("member@example.com")
	p := f.product("Trench", "150.00", 0)

	_, err := f.stock.Subscribe(ctx, id, usecase.SubscribeInput{ProductID: p.ID})
	require.NoError(t, err)
	_, err = f.stock.Subscribe(ctx, usecase.Guest(), usecase.SubscribeInput{ProductID: p.ID, Email: "guest2@example.com"})
	require.NoError(t, err)

	_, err = f.inventory.Restock(ctx, usecase.Admin(1), p.ID, usecase.RestockInput{Quantity: 3})
	require.NoError(t, err)

	f.sender.On("SendBackInStock", mock.Anything, "member@example.com", p.ID).Return(nil).Once()
	f.sender.On("SendBackInStock", mock.Anything, "guest2@example.com", p.ID).Return(errors.New("smtp down")).Once()

	sent, err := f.stock.NotifyRestocked(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	f.sender.AssertExpectations(t)

	for _, n := range f.store.Notifications() {
		if n.UserID != nil {
			assert.False(t, n.IsActive)
			assert.NotNil(t, n.NotifiedAt)
		} else {
			// 送れなかった購読は次回に再送する
			assert.True(t, n.IsActive)
			assert.Nil(t, n.NotifiedAt)
		}
	}
}

func TestStockNotification_NotifySkipsWhenStillSoldOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("Trench", "150.00", 0)

	_, err := f.stock.Subscribe(ctx, usecase.Guest(), usecase.SubscribeInput{ProductID: p.ID, Email: "wait@example.com"})
	require.NoError(t, err)

	sent, err := f.stock.NotifyRestocked(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, sent)
	f.sender.AssertNotCalled(t, "SendBackInStock", mock.Anything, mock.Anything, mock.Anything)

	sent, err = f.stock.NotifyRestocked(ctx, 9999)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestStockNotification_NilSenderKeepsSubscriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product("Trench", "150.00", 0)
	r := f.store.Repos()
	uc := usecase.NewStockNotificationUsecase(r.StockNotifications(), r.Products(), f.store.Users(), nil)

	_, err := uc.Subscribe(ctx, usecase.Guest(), usecase.SubscribeInput{ProductID: p.ID, Email: "quiet@example.com"})
	require.NoError(t, err)
	_, err = f.inventory.Restock(ctx, usecase.Admin(1), p.ID, usecase.RestockInput{Quantity: 1})
	require.NoError(t, err)

	sent, err := uc.NotifyRestocked(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, sent)
	require.Len(t, f.store.Notifications(), 1)
	assert.True(t, f.store.Notifications()[0].IsActive)
}
