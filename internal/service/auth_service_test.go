package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginBuyerCreatesThenReuses(t *testing.T) {
	e := newEnv(t, quietPublisher())
	ctx := context.Background()

	token, user, err := e.auth.LoginBuyer(ctx, LoginRequest{Email: " carol@example.com "}, ClientInfo{IPAddress: "10.0.0.1", DeviceInfo: "curl"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "carol", user.Username)
	assert.Equal(t, "carol@example.com", user.Email)

	_, again, err := e.auth.LoginBuyer(ctx, LoginRequest{Username: "carol", Email: "carol@example.com"}, ClientInfo{IPAddress: "10.0.0.2"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	profile, logs, err := e.auth.BuyerSession(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", profile.Username)
	require.Len(t, logs, 2)
	assert.Equal(t, "10.0.0.2", logs[0].IPAddress)
	assert.Equal(t, "curl", logs[1].DeviceInfo)
}

func TestLoginRequiresEmail(t *testing.T) {
	e := newEnv(t, quietPublisher())

	_, _, err := e.auth.LoginBuyer(context.Background(), LoginRequest{Username: "carol"}, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = e.auth.LoginSeller(context.Background(), LoginRequest{Email: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTokensStayInTheirNamespace(t *testing.T) {
	e := newEnv(t, quietPublisher())
	ctx := context.Background()

	buyerToken, user, err := e.auth.LoginBuyer(ctx, LoginRequest{Email: "dave@example.com"}, ClientInfo{})
	require.NoError(t, err)
	sellerToken, seller, err := e.auth.LoginSeller(ctx, LoginRequest{Username: "acme", Email: "ops@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, e.seller.ID, seller.ID)

	got, err := e.auth.ValidateBuyerToken(ctx, buyerToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	gotSeller, err := e.auth.ValidateSellerToken(ctx, sellerToken)
	require.NoError(t, err)
	assert.Equal(t, seller.ID, gotSeller.ID)

	_, err = e.auth.ValidateBuyerToken(ctx, sellerToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.auth.ValidateSellerToken(ctx, buyerToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.auth.ValidateBuyerToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	other := NewAuthService(e.repo, "another-secret", 0)
	_, err = other.ValidateBuyerToken(ctx, buyerToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
