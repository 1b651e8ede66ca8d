package usecase_test

import (
	"context"
	"sync"
	"testing"

	"fashionshop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddMergesSameVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("cart1@example.com")
	p := f.product("Hoodie", "40.00", 10)

	_, err := f.carts.AddToCart(ctx, id, usecase.AddCartInput{ProductID: p.ID, Size: "M", Color: "grey", Quantity: 1})
	require.NoError(t, err)
	cart, err := f.carts.AddToCart(ctx, id, usecase.AddCartInput{ProductID: p.ID, Size: " M ", Color: "grey", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(3), cart.Items[0].Quantity)

	cart, err = f.carts.AddToCart(ctx, id, usecase.AddCartInput{ProductID: p.ID, Size: "L", Color: "grey", Quantity: 1})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
	assert.True(t, dec("160.00").Equal(cart.Total))
}

func TestCart_StockCheckSumsAllVariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("cart2@example.com")
	p := f.product("Hoodie", "40.00", 3)

	_, err := f.carts.AddToCart(ctx, id, usecase.AddCartInput{ProductID: p.ID, Size: "M", Color: "grey", Quantity: 2})
	require.NoError(t, err)

	_, err = f.carts.AddToCart(ctx, id, usecase.AddCartInput{ProductID: p.ID, Size: "L", Color: "black", Quantity: 2})
	ise, ok := usecase.AsInsufficientStock(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, int64(3), ise.Available)
	assert.Equal(t, int64(4), ise.Requested)
}

func TestCart_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("cart3@example.com")
	p := f.product("Hoodie", "40.00", 3)

	_, err := f.carts.AddToCart(ctx, usecase.Guest(), usecase.AddCartInput{ProductID: p.ID, Size: "M", Color: "grey", Quantity: 1})
	assertKind(t, err, usecase.ErrUnauthorized)

	_, err = f.carts.AddToCart(ctx, id, usecase.AddCartInput{ProductID: p.ID, Size: "M", Color: "grey", Quantity: 0})
	assertKind(t, err, usecase.ErrValidation)

	_, err = f.carts.AddToCart(ctx, id, usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
	assertKind(t, err, usecase.ErrValidation)

	_, err = f.carts.AddToCart(ctx, id, usecase.AddCartInput{ProductID: 9999, Size: "M", Color: "grey", Quantity: 1})
	assertKind(t, err, usecase.ErrProductNotFound)
}

func TestCart_UpdateAndDeleteRequireOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user("alice.cart@example.com")
	bob := f.user("bob.cart@example.com")
	p := f.product("Hoodie", "40.00", 5)

	cart, err := f.carts.AddToCart(ctx, alice, usecase.AddCartInput{ProductID: p.ID, Size: "M", Color: "grey", Quantity: 1})
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	_, err = f.carts.UpdateCartItem(ctx, bob, itemID, usecase.UpdateCartItemInput{Quantity: 2})
	assertKind(t, err, usecase.ErrNotFound)
	_, err = f.carts.DeleteCartItem(ctx, bob, itemID)
	assertKind(t, err, usecase.ErrNotFound)

	_, err = f.carts.UpdateCartItem(ctx, alice, itemID, usecase.UpdateCartItemInput{Quantity: 6})
	_, ok := usecase.AsInsufficientStock(err)
	assert.True(t, ok)

	cart, err = f.carts.UpdateCartItem(ctx, alice, itemID, usecase.UpdateCartItemInput{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(4), cart.Items[0].Quantity)

	cart, err = f.carts.DeleteCartItem(ctx, alice, itemID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCart_ArchiveAndRestoreCopiesItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("hist@example.com")
	p := f.product("Hoodie", "40.00", 5)
	q := f.product("Beanie", "15.00", 5)

	_, err := f.carts.AddToCart(ctx, id, usecase.AddCartInput{ProductID: p.ID, Size: "M", Color: "grey", Quantity: 2})
	require.NoError(t, err)

	h, err := f.carts.Archive(ctx, id, " winter ")
	require.NoError(t, err)
	assert.Equal(t, "winter", h.Name)
	archived := f.store.CartItems(h.CartID)
	require.Len(t, archived, 1)

	// 新しいカートは空
	cart, err := f.carts.GetCart(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	_, err = f.carts.AddToCart(ctx, id, usecase.AddCartInput{ProductID: q.ID, Size: "OS", Color: "red", Quantity: 1})
	require.NoError(t, err)

	// 値上げ後に復元しても保存時の価格のまま
	require.NoError(t, f.products.AdminUpdateProduct(ctx, usecase.Admin(1), p.ID, usecase.AdminProductInput{Name: "Hoodie", Price: dec("55.00"), IsActive: true}))

	restored, err := f.carts.Restore(ctx, id, h.ID)
	require.NoError(t, err)
	require.Len(t, restored.Items, 1)
	assert.Equal(t, p.ID, restored.Items[0].ProductID)
	assert.True(t, dec("40.00").Equal(restored.Items[0].Price))
	assert.NotEqual(t, h.CartID, restored.CartID)

	// ACTIVEは常に1つ
	active := 0
	for _, c := range f.store.Carts(id.UserID) {
		if !c.IsArchived {
			active++
			assert.Equal(t, restored.CartID, c.ID)
		}
	}
	assert.Equal(t, 1, active)

	// 保存済みカートはそのまま残り、何度でも復元できる
	again, err := f.carts.Restore(ctx, id, h.ID)
	require.NoError(t, err)
	assert.NotEqual(t, restored.CartID, again.CartID)
	assert.NotEqual(t, h.CartID, again.CartID)
	assert.Equal(t, cartLines(restored), cartLines(again))
	assert.NotEqual(t, restored.Items[0].ID, again.Items[0].ID)

	assert.Equal(t, archived, f.store.CartItems(h.CartID))
	assert.Len(t, f.store.CartItems(restored.CartID), 1, "previous active cart is archived, not emptied")
	assert.Len(t, f.store.Carts(id.UserID), 4)
}

// IDを除いた明細の中身
func cartLines(c usecase.CartResponse) []usecase.CartItemResponse {
	out := make([]usecase.CartItemResponse, 0, len(c.Items))
	for _, it := range c.Items {
		it.ID = 0
		out = append(out, it)
	}
	return out
}

func TestCart_ArchiveEmptyCartFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("emptyhist@example.com")

	_, err := f.carts.GetCart(ctx, id)
	require.NoError(t, err)

	_, err = f.carts.Archive(ctx, id, "nothing")
	assertKind(t, err, usecase.ErrValidation)

	_, err = f.carts.Archive(ctx, id, "  ")
	assertKind(t, err, usecase.ErrValidation)
}

func TestCart_RestoreForeignHistoryIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user("a.hist@example.com")
	bob := f.user("b.hist@example.com")
	p := f.product("Hoodie", "40.00", 5)

	_, err := f.carts.AddToCart(ctx, alice, usecase.AddCartInput{ProductID: p.ID, Size: "M", Color: "grey", Quantity: 1})
	require.NoError(t, err)
	h, err := f.carts.Archive(ctx, alice, "mine")
	require.NoError(t, err)

	_, err = f.carts.Restore(ctx, bob, h.ID)
	assertKind(t, err, usecase.ErrNotFound)

	list, err := f.carts.ListHistory(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCart_ConcurrentGetCartKeepsSingleActive(t *testing.T) {
	f := newFixture(t)
	id := f.user("race.cart@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.carts.GetCart(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.store.Carts(id.UserID), 1)
}
