package usecase_test

import (
	"context"
	"testing"

	"fashionshop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults(t *testing.T, f *fixture, id usecase.Identity) []int64 {
	t.Helper()
	list, err := f.addresses.List(context.Background(), id)
	require.NoError(t, err)
	var out []int64
	for _, a := range list {
		if a.IsDefault {
			out = append(out, a.ID)
		}
	}
	return out
}

func TestAddress_FirstAddressBecomesDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("addr1@example.com")

	first, err := f.addresses.Create(ctx, id, usecase.AddressUpsertRequest{AddressInput: addressInput()})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "DELIVERY", string(first.Type))

	second, err := f.addresses.Create(ctx, id, usecase.AddressUpsertRequest{AddressInput: addressInput()})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	assert.Equal(t, []int64{first.ID}, defaults(t, f, id))
}

func TestAddress_NewDefaultReplacesOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("addr2@example.com")

	first, err := f.addresses.Create(ctx, id, usecase.AddressUpsertRequest{AddressInput: addressInput()})
	require.NoError(t, err)
	second, err := f.addresses.Create(ctx, id, usecase.AddressUpsertRequest{AddressInput: addressInput(), IsDefault: true})
	require.NoError(t, err)

	assert.Equal(t, []int64{second.ID}, defaults(t, f, id))

	// 一覧はデフォルトが先頭
	list, err := f.addresses.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	require.NoError(t, f.addresses.SetDefault(ctx, id, first.ID))
	assert.Equal(t, []int64{first.ID}, defaults(t, f, id))
}

func TestAddress_UpdateDefaultStaysDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("addr3@example.com")

	a, err := f.addresses.Create(ctx, id, usecase.AddressUpsertRequest{AddressInput: addressInput()})
	require.NoError(t, err)

	in := addressInput()
	in.City = "Izmir"
	updated, err := f.addresses.Update(ctx, id, a.ID, usecase.AddressUpsertRequest{AddressInput: in, IsDefault: false})
	require.NoError(t, err)
	assert.Equal(t, "Izmir", updated.City)
	assert.True(t, updated.IsDefault)
}

func TestAddress_DeleteDefaultPromotesOldest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("addr4@example.com")

	a1, err := f.addresses.Create(ctx, id, usecase.AddressUpsertRequest{AddressInput: addressInput()})
	require.NoError(t, err)
	a2, err := f.addresses.Create(ctx, id, usecase.AddressUpsertRequest{AddressInput: addressInput()})
	require.NoError(t, err)
	a3, err := f.addresses.Create(ctx, id, usecase.AddressUpsertRequest{AddressInput: addressInput(), IsDefault: true})
	require.NoError(t, err)

	require.NoError(t, f.addresses.Delete(ctx, id, a3.ID))
	assert.Equal(t, []int64{a1.ID}, defaults(t, f, id))

	// デフォルト以外の削除では変わらない
	require.NoError(t, f.addresses.Delete(ctx, id, a2.ID))
	assert.Equal(t, []int64{a1.ID}, defaults(t, f, id))

	require.NoError(t, f.addresses.Delete(ctx, id, a1.ID))
	assert.Empty(t, defaults(t, f, id))
}

func TestAddress_ForeignAddressIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user("alice.addr@example.com")
	bob := f.user("bob.addr@example.com")

	a, err := f.addresses.Create(ctx, alice, usecase.AddressUpsertRequest{AddressInput: addressInput()})
	require.NoError(t, err)

	_, err = f.addresses.Update(ctx, bob, a.ID, usecase.AddressUpsertRequest{AddressInput: addressInput()})
	assertKind(t, err, usecase.ErrNotFound)
	assertKind(t, f.addresses.Delete(ctx, bob, a.ID), usecase.ErrNotFound)
	assertKind(t, f.addresses.SetDefault(ctx, bob, a.ID), usecase.ErrNotFound)

	// handlerでステータスに変換できる形で返す
	ue, ok := usecase.AsError(f.addresses.Delete(ctx, bob, a.ID))
	require.True(t, ok)
	assert.Equal(t, usecase.ErrNotFound, ue.Kind)
	_, ok = usecase.AsError(f.addresses.Delete(ctx, bob, 0))
	assert.True(t, ok)

	assert.Len(t, f.store.Addresses(), 1)
}

func TestAddress_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user("addr5@example.com")

	_, err := f.addresses.Create(ctx, usecase.Guest(), usecase.AddressUpsertRequest{AddressInput: addressInput()})
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)

	noPhone := addressInput()
	noPhone.Phone = " "
	badEmail := addressInput()
	badEmail.Email = "not-an-email"
	badType := addressInput()
	badType.Type = "billing"

	for name, in := range map[string]usecase.AddressInput{
		"phone required":       noPhone,
		"invalid email":        badEmail,
		"invalid address type": badType,
	} {
		_, err := f.addresses.Create(ctx, id, usecase.AddressUpsertRequest{AddressInput: in})
		assertKind(t, err, usecase.ErrValidation)
		assertErrContains(t, err, name)
	}

	_, err = f.addresses.Update(ctx, id, 0, usecase.AddressUpsertRequest{AddressInput: addressInput()})
	assert.ErrorIs(t, err, usecase.ErrValidation)
}
