package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAuth(t *testing.T) *Auth {
	t.Helper()
	return New(Config{
		Username:           "admin",
		Password:           "correct-horse-battery-staple",
		Secret:             "test-secret",
		TokenTTL:           time.Minute,
		MaxLoginAttempts:   3,
		LoginWindowSeconds: 60,
	}, zap.NewNop())
}

func TestAuth_AuthenticateRoundTrip(t *testing.T) {
	a := testAuth(t)

	token, err := a.Authenticate("admin", "correct-horse-battery-staple", "1.2.3.4")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := a.validate(token)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Sub)
}

func TestAuth_WrongPasswordRejected(t *testing.T) {
	a := testAuth(t)
	_, err := a.Authenticate("admin", "wrong-password", "1.2.3.4")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuth_TokenFromDifferentSecretRejected(t *testing.T) {
	a := testAuth(t)
	token, err := a.Authenticate("admin", "correct-horse-battery-staple", "1.2.3.4")
	require.NoError(t, err)

	other := New(Config{Username: "admin", Password: "x", Secret: "different-secret"}, zap.NewNop())
	_, err = other.validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuth_ExpiredTokenRejected(t *testing.T) {
	a := New(Config{
		Username: "admin",
		Password: "correct-horse-battery-staple",
		Secret:   "test-secret",
		TokenTTL: -time.Second, // already expired at issuance
	}, zap.NewNop())

	token, err := a.Authenticate("admin", "correct-horse-battery-staple", "1.2.3.4")
	require.NoError(t, err)

	_, err = a.validate(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuth_RateLimiterBlocksAfterMaxFailures(t *testing.T) {
	a := testAuth(t)
	for i := 0; i < 3; i++ {
		_, err := a.Authenticate("admin", "wrong", "9.9.9.9")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := a.Authenticate("admin", "correct-horse-battery-staple", "9.9.9.9")
	require.ErrorIs(t, err, ErrRateLimited, "the correct password should still be rate limited after repeated failures from the same IP")

	// A different IP is unaffected.
	token, err := a.Authenticate("admin", "correct-horse-battery-staple", "8.8.8.8")
	require.NoError(t, err)
	require.NotEmpty(t, token)
}

func TestAuth_SuccessfulLoginResetsFailureCount(t *testing.T) {
	a := testAuth(t)
	_, err := a.Authenticate("admin", "wrong", "5.5.5.5")
	require.Error(t, err)

	_, err = a.Authenticate("admin", "correct-horse-battery-staple", "5.5.5.5")
	require.NoError(t, err)

	// Two more failures shouldn't trip the limiter (max is 3, count reset to 0).
	for i := 0; i < 2; i++ {
		_, err := a.Authenticate("admin", "wrong", "5.5.5.5")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = a.Authenticate("admin", "correct-horse-battery-staple", "5.5.5.5")
	require.NoError(t, err)
}

func TestAuth_ConcurrentTokenValidation(t *testing.T) {
	a := testAuth(t)
	token, err := a.Authenticate("admin", "correct-horse-battery-staple", "1.2.3.4")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.validate(token)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
}
