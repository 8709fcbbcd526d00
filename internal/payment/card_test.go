package payment

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/xenking/rig-checkout/internal/domain/order"
)

type mockIntents struct {
	created  []*stripe.PaymentIntentParams
	newErr   error
	intent   *stripe.PaymentIntent
	getErr   error
	gotGetID string
}

func (m *mockIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	m.created = append(m.created, params)
	if m.newErr != nil {
		return nil, m.newErr
	}
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}, nil
}

func (m *mockIntents) Get(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	m.gotGetID = id
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.intent, nil
}

func TestCard_Submit(t *testing.T) {
	repo := newMockOrderRepo()
	intents := &mockIntents{}
	c := newCard(intents, testLedger(repo), repo)

	sub, err := c.Submit(context.Background(), Request{Draft: testDraft(t), IdempotencyKey: "key-1"})
	require.NoError(t, err)

	assert.Equal(t, NextAwaitConfirmation, sub.Next)
	assert.Equal(t, "pi_123_secret", sub.ClientSecret)
	assert.Equal(t, "pi_123", sub.PaymentRef)
	assert.Contains(t, sub.OrderNumber, "PCB-250615-")

	require.Len(t, intents.created, 1)
	params := intents.created[0]
	assert.Equal(t, int64(75150), *params.Amount)
	assert.Equal(t, "gbp", *params.Currency)
	assert.Equal(t, "key-1", *params.IdempotencyKey)
	assert.Equal(t, sub.OrderID, params.Metadata["order_id"])
	assert.Equal(t, sub.OrderNumber, params.Metadata["order_number"])

	o := repo.only(t)
	assert.Equal(t, order.StatusAwaitingPayment, o.Status)
	assert.Equal(t, "pi_123", o.PaymentRef)
	assert.Equal(t, order.MethodCard, o.Method)
}

func TestCard_SubmitRetryReusesOrder(t *testing.T) {
	repo := newMockOrderRepo()
	intents := &mockIntents{}
	c := newCard(intents, testLedger(repo), repo)
	d := testDraft(t)

	first, err := c.Submit(context.Background(), Request{Draft: d, IdempotencyKey: "key-1"})
	require.NoError(t, err)
	second, err := c.Submit(context.Background(), Request{Draft: d, IdempotencyKey: "key-1"})
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, 1, repo.creates)
	require.Len(t, intents.created, 2)
	assert.Equal(t, intents.created[0].Metadata, intents.created[1].Metadata)
}

func TestCard_SubmitRejected(t *testing.T) {
	repo := newMockOrderRepo()
	intents := &mockIntents{newErr: &stripe.Error{Msg: "Your card was declined."}}
	c := newCard(intents, testLedger(repo), repo)

	_, err := c.Submit(context.Background(), Request{Draft: testDraft(t), IdempotencyKey: "key-1"})
	var re *RejectedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "Your card was declined.", re.Message)
	assert.Empty(t, repo.byID)
}

func TestCard_SubmitTransportError(t *testing.T) {
	repo := newMockOrderRepo()
	c := newCard(&mockIntents{newErr: errors.New("dial tcp: timeout")}, testLedger(repo), repo)

	_, err := c.Submit(context.Background(), Request{Draft: testDraft(t), IdempotencyKey: "key-1"})
	require.Error(t, err)
	assert.Equal(t, GenericFailureMessage, UserMessage(err))
}

func TestCard_Confirm(t *testing.T) {
	tests := []struct {
		name       string
		intent     *stripe.PaymentIntent
		ref        string
		wantErr    string
		wantStatus order.Status
	}{
		{
			name:       "succeeded",
			intent:     &stripe.PaymentIntent{ID: "pi_123", Status: stripe.PaymentIntentStatusSucceeded},
			ref:        "pi_123",
			wantStatus: order.StatusPaid,
		},
		{
			name:       "processing counts as paid",
			intent:     &stripe.PaymentIntent{ID: "pi_123", Status: stripe.PaymentIntentStatusProcessing},
			ref:        "pi_123",
			wantStatus: order.StatusPaid,
		},
		{
			name: "requires payment method surfaces processor message",
			intent: &stripe.PaymentIntent{
				ID:               "pi_123",
				Status:           stripe.PaymentIntentStatusRequiresPaymentMethod,
				LastPaymentError: &stripe.Error{Msg: "Insufficient funds."},
			},
			ref:        "pi_123",
			wantErr:    "Insufficient funds.",
			wantStatus: order.StatusAwaitingPayment,
		},
		{
			name:       "mismatched intent",
			intent:     &stripe.PaymentIntent{ID: "pi_999", Status: stripe.PaymentIntentStatusSucceeded},
			ref:        "pi_999",
			wantErr:    "This payment does not belong to your order.",
			wantStatus: order.StatusAwaitingPayment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockOrderRepo()
			intents := &mockIntents{intent: tt.intent}
			c := newCard(intents, testLedger(repo), repo)

			sub, err := c.Submit(context.Background(), Request{Draft: testDraft(t), IdempotencyKey: "key-1"})
			require.NoError(t, err)

			err = c.Confirm(context.Background(), sub, tt.ref)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, UserMessage(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "pi_123", intents.gotGetID)
			}
			assert.Equal(t, tt.wantStatus, repo.only(t).Status)
		})
	}
}

func TestCard_ConfirmPaidEvenIfStatusUpdateFails(t *testing.T) {
	repo := newMockOrderRepo()
	intents := &mockIntents{intent: &stripe.PaymentIntent{ID: "pi_123", Status: stripe.PaymentIntentStatusSucceeded}}
	c := newCard(intents, testLedger(repo), repo)

	sub, err := c.Submit(context.Background(), Request{Draft: testDraft(t), IdempotencyKey: "key-1"})
	require.NoError(t, err)

	repo.statusErr = errors.New("db down")
	require.NoError(t, c.Confirm(context.Background(), sub, "pi_123"))
}
