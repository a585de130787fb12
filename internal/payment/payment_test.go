package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/config"
)

func newTestPaystack(t *testing.T, h http.HandlerFunc) *Paystack {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p := NewPaystack(config.Payment{BaseURL: srv.URL, SecretKey: "sk_test", Timeout: time.Second}, zap.NewNop())
	p.retryWait = time.Millisecond
	return p
}

func TestPaystackInitializeSendsMinorUnitsAndIdempotencyKey(t *testing.T) {
	var got initializePayload
	p := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "ORD-1-2", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://checkout/abc","access_code":"abc","reference":"ORD-1-2"}}`))
	})

	auth, err := p.Initialize(context.Background(), InitializeRequest{
		Email:       "a@b.c",
		AmountMinor: 2000,
		Currency:    "GHS",
		Reference:   "ORD-1-2",
		Metadata:    Metadata{OrderID: "o1", UserID: "u1", PaymentMethod: "momo"},
		Channels:    []string{ChannelMobileMoney},
		MobileMoney: &MobileMoney{Phone: "0241234567", Provider: "mtn"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout/abc", auth.AuthorizationURL)
	assert.Equal(t, int64(2000), got.Amount)
	assert.Equal(t, "mtn", got.MobileMoney.Provider)
	assert.Equal(t, "o1", got.Metadata.OrderID)
}

func TestPaystackRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"data":{"status":"success","reference":"R1","amount":500,"metadata":{"orderId":"o9"}}}`))
	})

	v, err := p.Verify(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, v.Successful())
	assert.Equal(t, "o9", v.Metadata.OrderID)
}

func TestPaystackDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	})

	_, err := p.Initialize(context.Background(), InitializeRequest{Reference: "R", AmountMinor: 1})
	assert.True(t, errors.Is(err, ErrInitializeFailed))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPaystackGivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	p := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := p.Verify(context.Background(), "R")
	assert.True(t, errors.Is(err, ErrVerifyFailed))
	assert.Equal(t, int32(maxAttempts), calls.Load())
}

func TestPaystackUnknownReferencesDoNotTripBreaker(t *testing.T) {
	p := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/transaction/verify/") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"data":{"authorization_url":"https://checkout/x","reference":"ORD-9"}}`))
	})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := p.Verify(ctx, "junk")
		require.ErrorIs(t, err, ErrVerifyFailed)
		require.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, gobreaker.StateClosed, p.verifyCB.State())

	auth, err := p.Initialize(ctx, InitializeRequest{Reference: "ORD-9", AmountMinor: 100})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout/x", auth.AuthorizationURL)
}

func TestPaystackRejectedBodyDoesNotTripBreaker(t *testing.T) {
	p := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"message":"Duplicate Transaction Reference"}`))
	})

	for i := 0; i < 6; i++ {
		_, err := p.Initialize(context.Background(), InitializeRequest{Reference: "R", AmountMinor: 1})
		require.ErrorIs(t, err, ErrInitializeFailed)
	}
	assert.Equal(t, gobreaker.StateClosed, p.initCB.State())
}

func TestPaystackVerifyOutageLeavesInitializeOpen(t *testing.T) {
	p := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/transaction/verify/") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"data":{"authorization_url":"https://checkout/y","reference":"ORD-7"}}`))
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = p.Verify(ctx, "R")
	}
	assert.Equal(t, gobreaker.StateOpen, p.verifyCB.State())

	_, err := p.Verify(ctx, "R")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	_, err = p.Initialize(ctx, InitializeRequest{Reference: "ORD-7", AmountMinor: 100})
	require.NoError(t, err)
}

func TestPaystackVerifyToleratesStringMetadata(t *testing.T) {
	p := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"data":{"status":"abandoned","reference":"R2","metadata":""}}`))
	})

	v, err := p.Verify(context.Background(), "R2")
	require.NoError(t, err)
	assert.False(t, v.Successful())
	assert.Empty(t, v.Metadata.OrderID)
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"R"}}`)
	sig := Sign("secret", body)

	assert.NoError(t, verifySignature("secret", body, sig))
	assert.ErrorIs(t, verifySignature("secret", append(body, ' '), sig), ErrInvalidSignature)
	assert.ErrorIs(t, verifySignature("other", body, sig), ErrInvalidSignature)
	assert.ErrorIs(t, verifySignature("secret", body, ""), ErrInvalidSignature)
	assert.ErrorIs(t, verifySignature("secret", body, "zz-not-hex"), ErrInvalidSignature)
}

func TestSandboxVerifiesOnlyInitializedReferences(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox("secret", "http://localhost:9091")

	auth, err := s.Initialize(ctx, InitializeRequest{Reference: "ORD-5-5", AmountMinor: 100, Metadata: Metadata{OrderID: "o5"}})
	require.NoError(t, err)
	assert.Contains(t, auth.AuthorizationURL, "ORD-5-5")

	v, err := s.Verify(ctx, "ORD-5-5")
	require.NoError(t, err)
	assert.True(t, v.Successful())
	assert.Equal(t, "o5", v.Metadata.OrderID)

	v, err = s.Verify(ctx, "ORD-unknown")
	require.NoError(t, err)
	assert.False(t, v.Successful())
}

func TestNewSelectsProvider(t *testing.T) {
	p, err := New(config.Payment{Provider: "sandbox"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "sandbox", p.Name())

	_, err = New(config.Payment{Provider: "paystack"}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(config.Payment{Provider: "stripe"}, zap.NewNop())
	assert.Error(t, err)
}
