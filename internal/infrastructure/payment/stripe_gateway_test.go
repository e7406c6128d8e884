package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/form"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// mockBackend implements stripe.Backend for testing
type mockBackend struct {
	handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)
	calls   []string
}

func (m *mockBackend) Call(method, path, key string, params stripe.ParamsContainer, v stripe.LastResponseSetter) error {
	m.calls = append(m.calls, method+" "+path)
	data, err := m.handler(method, path, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (m *mockBackend) CallStreaming(method, path, key string, params stripe.ParamsContainer, v stripe.StreamingLastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallRaw(method, path, key string, body *form.Values, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallMultipart(method, path, key, boundary string, body *bytes.Buffer, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) SetMaxNetworkRetries(maxNetworkRetries int64) {}

func newStripeTestGateway(handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)) (*StripeGateway, *mockBackend) {
	mock := &mockBackend{handler: handler}
	return NewStripeGatewayWithBackend("sk_test_123", mock, zap.NewNop()), mock
}

func chargeRequest(reference string) finance.ChargeRequest {
	return finance.ChargeRequest{
		Amount:         valueobject.MustParseMoney("30.47", valueobject.CNY),
		Method:         finance.PaymentMethod{Type: finance.PaymentMethodCard, Reference: reference},
		IdempotencyKey: "3f0c6d8e-pay",
		Description:    "INV-20260504-0001",
		Metadata:       map[string]string{"payment_id": "3f0c6d8e-pay"},
	}
}

func refundRequest() finance.RefundRequest {
	return finance.RefundRequest{
		TransactionID:  "pi_123",
		Amount:         valueobject.MustParseMoney("5.00", valueobject.CNY),
		IdempotencyKey: "9a1b-refund",
		Reason:         "service outage",
	}
}

func TestStripeConfig_Validate(t *testing.T) {
	assert.Error(t, StripeConfig{}.Validate())
	assert.Error(t, StripeConfig{SecretKey: "pk_test_123"}.Validate())
	assert.NoError(t, StripeConfig{SecretKey: "sk_test_123"}.Validate())
	assert.NoError(t, StripeConfig{SecretKey: "rk_live_123"}.Validate())
}

func TestStripeGateway_Charge(t *testing.T) {
	t.Run("succeeded intent is approved", func(t *testing.T) {
		var sent *stripe.PaymentIntentParams
		gw, mock := newStripeTestGateway(func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			if method == http.MethodPost && path == "/v1/payment_intents" {
				sent = params.(*stripe.PaymentIntentParams)
				return json.Marshal(&stripe.PaymentIntent{ID: "pi_123", Status: stripe.PaymentIntentStatusSucceeded})
			}
			return nil, fmt.Errorf("unexpected call: %s %s", method, path)
		})

		res, err := gw.Charge(context.Background(), chargeRequest("pm_card_visa"))
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "pi_123", res.TransactionID)
		assert.Equal(t, []string{"POST /v1/payment_intents"}, mock.calls)

		require.NotNil(t, sent)
		assert.Equal(t, int64(3047), *sent.Amount)
		assert.Equal(t, "cny", *sent.Currency)
		assert.Equal(t, "pm_card_visa", *sent.PaymentMethod)
		assert.True(t, *sent.Confirm)
		assert.Equal(t, "charge-3f0c6d8e-pay", *sent.IdempotencyKey)
		assert.Equal(t, "3f0c6d8e-pay", sent.Metadata["payment_id"])
		assert.Equal(t, "3f0c6d8e-pay", sent.Metadata["charge_key"])
	})

	t.Run("card error is a decline", func(t *testing.T) {
		gw, _ := newStripeTestGateway(func(string, string, stripe.ParamsContainer) ([]byte, error) {
			return nil, &stripe.Error{
				Type:           stripe.ErrorTypeCard,
				Code:           stripe.ErrorCodeCardDeclined,
				DeclineCode:    stripe.DeclineCodeInsufficientFunds,
				Msg:            "Your card has insufficient funds.",
				HTTPStatusCode: http.StatusPaymentRequired,
			}
		})

		res, err := gw.Charge(context.Background(), chargeRequest("pm_card_visa"))
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.FailureReason, "insufficient funds")
	})

	t.Run("intent needing a new method is a decline", func(t *testing.T) {
		gw, _ := newStripeTestGateway(func(string, string, stripe.ParamsContainer) ([]byte, error) {
			return json.Marshal(&stripe.PaymentIntent{
				ID:               "pi_456",
				Status:           stripe.PaymentIntentStatusRequiresPaymentMethod,
				LastPaymentError: &stripe.Error{Msg: "Your card was declined."},
			})
		})

		res, err := gw.Charge(context.Background(), chargeRequest("pm_card_visa"))
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "Your card was declined.", res.FailureReason)
	})

	t.Run("processing intent has unknown outcome", func(t *testing.T) {
		gw, _ := newStripeTestGateway(func(string, string, stripe.ParamsContainer) ([]byte, error) {
			return json.Marshal(&stripe.PaymentIntent{ID: "pi_789", Status: stripe.PaymentIntentStatusProcessing})
		})

		_, err := gw.Charge(context.Background(), chargeRequest("pm_card_visa"))
		ge, ok := finance.AsGatewayError(err)
		require.True(t, ok)
		assert.True(t, ge.UnknownOutcome)
	})

	t.Run("server error has unknown outcome", func(t *testing.T) {
		gw, _ := newStripeTestGateway(func(string, string, stripe.ParamsContainer) ([]byte, error) {
			return nil, &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "internal", HTTPStatusCode: http.StatusInternalServerError}
		})

		_, err := gw.Charge(context.Background(), chargeRequest("pm_card_visa"))
		ge, ok := finance.AsGatewayError(err)
		require.True(t, ok)
		assert.True(t, ge.UnknownOutcome)
	})

	t.Run("invalid request is a definite failure", func(t *testing.T) {
		gw, _ := newStripeTestGateway(func(string, string, stripe.ParamsContainer) ([]byte, error) {
			return nil, &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "No such PaymentMethod", HTTPStatusCode: http.StatusBadRequest}
		})

		_, err := gw.Charge(context.Background(), chargeRequest("pm_missing"))
		ge, ok := finance.AsGatewayError(err)
		require.True(t, ok)
		assert.False(t, ge.UnknownOutcome)
		assert.Equal(t, "No such PaymentMethod", ge.Reason)
	})

	t.Run("network error has unknown outcome", func(t *testing.T) {
		gw, _ := newStripeTestGateway(func(string, string, stripe.ParamsContainer) ([]byte, error) {
			return nil, errors.New("connection reset by peer")
		})

		_, err := gw.Charge(context.Background(), chargeRequest("pm_card_visa"))
		ge, ok := finance.AsGatewayError(err)
		require.True(t, ok)
		assert.True(t, ge.UnknownOutcome)
	})

	t.Run("invalid request never leaves the process", func(t *testing.T) {
		gw, mock := newStripeTestGateway(func(string, string, stripe.ParamsContainer) ([]byte, error) {
			return nil, errors.New("should not be called")
		})
		req := chargeRequest("pm_card_visa")
		req.IdempotencyKey = ""

		_, err := gw.Charge(context.Background(), req)
		assert.ErrorIs(t, err, finance.ErrGatewayMissingIdempotencyKey)
		assert.Empty(t, mock.calls)
	})
}

func TestStripeGateway_Refund(t *testing.T) {
	t.Run("pending refund is accepted", func(t *testing.T) {
		var sent *stripe.RefundParams
		gw, _ := newStripeTestGateway(func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			if method == http.MethodPost && path == "/v1/refunds" {
				sent = params.(*stripe.RefundParams)
				return json.Marshal(&stripe.Refund{ID: "re_123", Status: stripe.RefundStatusPending})
			}
			return nil, fmt.Errorf("unexpected call: %s %s", method, path)
		})

		res, err := gw.Refund(context.Background(), refundRequest())
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "re_123", res.TransactionID)
		require.NotNil(t, sent)
		assert.Equal(t, "pi_123", *sent.PaymentIntent)
		assert.Equal(t, int64(500), *sent.Amount)
		assert.Equal(t, "refund-9a1b-refund", *sent.IdempotencyKey)
	})

	t.Run("failed refund is a decline", func(t *testing.T) {
		gw, _ := newStripeTestGateway(func(string, string, stripe.ParamsContainer) ([]byte, error) {
			return json.Marshal(&stripe.Refund{ID: "re_456", Status: stripe.RefundStatusFailed, FailureReason: "expired_or_canceled_card"})
		})

		res, err := gw.Refund(context.Background(), refundRequest())
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "expired_or_canceled_card", res.FailureReason)
	})
}
