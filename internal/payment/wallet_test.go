package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rig-checkout/internal/domain/buildservice"
	"github.com/xenking/rig-checkout/internal/domain/cart"
	"github.com/xenking/rig-checkout/internal/domain/order"
	"github.com/xenking/rig-checkout/internal/domain/shipping"
)

type paypalStub struct {
	status    int
	body      string
	requestID string
	auth      string
	payload   map[string]any
}

func (s *paypalStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		s.requestID = r.Header.Get(paypalRequestIDHeader)
		s.auth = r.Header.Get("Authorization")
		s.payload = map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&s.payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		_, _ = io.WriteString(w, s.body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestWallet(t *testing.T, stub *paypalStub, repo order.Repository) *Wallet {
	t.Helper()
	srv := stub.server(t)
	w, err := NewWallet(context.Background(), WalletConfig{
		BaseURL:      srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		ReturnURL:    "https://shop.example/checkout/return",
		CancelURL:    "https://shop.example/checkout",
		BrandName:    "Rig",
	}, testLedger(repo))
	require.NoError(t, err)
	return w
}

func TestWallet_Submit(t *testing.T) {
	stub := &paypalStub{
		status: http.StatusCreated,
		body: `{"id":"PP-1","status":"CREATED","links":[
			{"href":"https://api.paypal.example/v2/checkout/orders/PP-1","rel":"self","method":"GET"},
			{"href":"https://www.paypal.example/checkoutnow?token=PP-1","rel":"approve","method":"GET"}
		]}`,
	}
	repo := newMockOrderRepo()
	w := newTestWallet(t, stub, repo)

	sub, err := w.Submit(context.Background(), Request{Draft: testDraft(t), IdempotencyKey: "key-1"})
	require.NoError(t, err)

	assert.Equal(t, NextRedirect, sub.Next)
	assert.Equal(t, "https://www.paypal.example/checkoutnow?token=PP-1", sub.RedirectURL)
	assert.Equal(t, "PP-1", sub.PaymentRef)
	assert.Equal(t, "key-1", stub.requestID)
	assert.Equal(t, "Bearer tok", stub.auth)

	assert.Equal(t, "CAPTURE", stub.payload["intent"])
	units := stub.payload["purchase_units"].([]any)
	require.Len(t, units, 1)
	unit := units[0].(map[string]any)
	amount := unit["amount"].(map[string]any)
	assert.Equal(t, "751.50", amount["value"])
	breakdown := amount["breakdown"].(map[string]any)
	assert.Equal(t, "835.00", breakdown["item_total"].(map[string]any)["value"])
	assert.Equal(t, "83.50", breakdown["discount"].(map[string]any)["value"])
	assert.Equal(t, "0.00", breakdown["shipping"].(map[string]any)["value"])
	assert.Len(t, unit["items"].([]any), 7)
	addr := unit["shipping"].(map[string]any)["address"].(map[string]any)
	assert.Equal(t, "GB", addr["country_code"])
	assert.Equal(t, "SW1A 1AA", addr["postal_code"])

	o := repo.only(t)
	assert.Equal(t, order.MethodWallet, o.Method)
	assert.Equal(t, order.StatusAwaitingPayment, o.Status)
	assert.Equal(t, "PP-1", o.PaymentRef)
}

func TestEncodePayPalOrder_ItemsAddUpToItemTotal(t *testing.T) {
	normalized := cart.Normalize(context.Background(), []cart.RawItem{
		{ID: "cpu", Category: "processor", Price: "33.33", Quantity: "3"},
		{ID: "mb", Category: "motherboard", Price: "129.995", Quantity: "1"},
		{ID: "ram", Category: "memory", Price: "19.99", Quantity: "7"},
		{ID: "ssd", Category: "storage", Price: "0.10", Quantity: "9"},
		{ID: "psu", Category: "psu", Price: "54.5", Quantity: "1"},
		{ID: "case", Category: "case", Price: "61.015", Quantity: "2"},
		{ID: "case-2", Category: "case", Price: "61.01", Quantity: "2"},
	})
	require.Len(t, normalized.Rejected, 2)

	tier, ok := buildservice.Lookup("performance")
	require.True(t, ok)
	d, err := order.Assemble(order.Input{
		Items:        normalized.Items,
		BuildService: &tier,
		Shipping:     shipping.MustLookup("standard"),
		Address: order.Address{
			Name:     "Ada Lovelace",
			Email:    "ada@example.co.uk",
			Phone:    "07700900123",
			Line1:    "12 Analytical Row",
			City:     "London",
			Postcode: "SW1A 1AA",
		},
	})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(encodePayPalOrder(d, "id", "PCB-1", applicationContext{}), &payload))
	unit := payload["purchase_units"].([]any)[0].(map[string]any)
	itemTotal := unit["amount"].(map[string]any)["breakdown"].(map[string]any)["item_total"].(map[string]any)["value"].(string)

	sum := decimal.Zero
	for _, raw := range unit["items"].([]any) {
		item := raw.(map[string]any)
		qty, err := strconv.Atoi(item["quantity"].(string))
		require.NoError(t, err)
		price := decimal.RequireFromString(item["unit_amount"].(map[string]any)["value"].(string))
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	assert.Equal(t, itemTotal, sum.StringFixed(2))
	assert.Equal(t, d.Breakdown.Subtotal.StringFixed(2), itemTotal)
}

func TestWallet_SubmitRejected(t *testing.T) {
	stub := &paypalStub{
		status: http.StatusUnprocessableEntity,
		body: `{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed.",
			"details":[{"issue":"ITEM_TOTAL_MISMATCH","description":"Should equal sum of items."}]}`,
	}
	repo := newMockOrderRepo()
	w := newTestWallet(t, stub, repo)

	_, err := w.Submit(context.Background(), Request{Draft: testDraft(t), IdempotencyKey: "key-1"})
	var re *RejectedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "Should equal sum of items.", re.Message)
	assert.Empty(t, repo.byID)
}

func TestWallet_SubmitWithoutApproveLink(t *testing.T) {
	stub := &paypalStub{status: http.StatusCreated, body: `{"id":"PP-2","status":"CREATED","links":[]}`}
	repo := newMockOrderRepo()
	w := newTestWallet(t, stub, repo)

	_, err := w.Submit(context.Background(), Request{Draft: testDraft(t), IdempotencyKey: "key-1"})
	require.Error(t, err)
	assert.Equal(t, GenericFailureMessage, UserMessage(err))
	assert.Empty(t, repo.byID)
}

func TestPayPalErrorMessage(t *testing.T) {
	assert.Equal(t, "Bad thing.", paypalErrorMessage([]byte(`{"message":"Bad thing."}`)))
	assert.Equal(t, GenericFailureMessage, paypalErrorMessage([]byte(`<html>`)))
	assert.Equal(t, GenericFailureMessage, paypalErrorMessage(nil))
}
