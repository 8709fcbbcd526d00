package payment

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/xenking/rig-checkout/internal/domain/order"
)

const (
	paypalRequestIDHeader = "PayPal-Request-Id"
	paypalTimeout         = 15 * time.Second
	maxResponseBody       = 64 << 10
)

// WalletConfig configures the PayPal wallet strategy.
type WalletConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ReturnURL    string
	CancelURL    string
	BrandName    string
	// HTTPClient is used instead of an OAuth2 client when set.
	HTTPClient *http.Client
}

// Wallet sends the customer to PayPal to approve the payment. The outcome is
// observed when they come back, outside this flow.
type Wallet struct {
	http      *http.Client
	baseURL   string
	returnURL string
	cancelURL string
	brand     string
	ledger    *Ledger
}

// NewWallet creates a Wallet strategy. Access tokens are fetched with the
// client credentials grant and cached by the returned client.
func NewWallet(ctx context.Context, cfg WalletConfig, ledger *Ledger) (*Wallet, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("paypal: base url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, errors.New("paypal: client credentials are required")
		}
		base := &http.Client{
			Timeout:   paypalTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     baseURL + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		httpClient = cc.Client(ctx)
	}

	return &Wallet{
		http:      httpClient,
		baseURL:   baseURL,
		returnURL: cfg.ReturnURL,
		cancelURL: cfg.CancelURL,
		brand:     cfg.BrandName,
		ledger:    ledger,
	}, nil
}

// Method implements Strategy.
func (w *Wallet) Method() order.Method { return order.MethodWallet }

// Submit creates a PayPal order for the draft and records it as awaiting
// payment. The submission carries the approval URL.
func (w *Wallet) Submit(ctx context.Context, req Request) (*Submission, error) {
	id, number, err := w.ledger.reserve(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	body := encodePayPalOrder(req.Draft, id, number, w.applicationContext())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build paypal request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(paypalRequestIDHeader, req.IdempotencyKey)

	resp, err := w.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "paypal create order")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.Wrap(err, "read paypal response")
	}
	if resp.StatusCode >= 400 {
		return nil, &RejectedError{
			Message: paypalErrorMessage(data),
			Err:     errors.Errorf("paypal status %d", resp.StatusCode),
		}
	}

	created, err := decodePayPalOrder(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode paypal order")
	}
	approve := created.link("approve")
	if approve == "" {
		approve = created.link("payer-action")
	}
	if approve == "" {
		return nil, &RejectedError{
			Message: GenericFailureMessage,
			Err:     errors.Errorf("paypal order %s has no approval link", created.ID),
		}
	}

	o := order.NewOrder(id, number, order.MethodWallet, order.StatusAwaitingPayment, req.Draft, req.IdempotencyKey)
	o.PaymentRef = created.ID
	saved, err := w.ledger.record(ctx, o)
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Created PayPal order",
		zap.String("order_id", saved.ID),
		zap.String("paypal_order", created.ID),
	)

	return &Submission{
		OrderID:     saved.ID,
		OrderNumber: saved.Number,
		PaymentRef:  created.ID,
		Next:        NextRedirect,
		RedirectURL: approve,
	}, nil
}

type applicationContext struct {
	Brand     string
	ReturnURL string
	CancelURL string
}

func (w *Wallet) applicationContext() applicationContext {
	return applicationContext{Brand: w.brand, ReturnURL: w.returnURL, CancelURL: w.cancelURL}
}

func writeMoney(e *jx.Encoder, currency string, v decimal.Decimal) {
	e.ObjStart()
	e.FieldStart("currency_code")
	e.Str(currency)
	e.FieldStart("value")
	e.Str(v.StringFixed(2))
	e.ObjEnd()
}

func writeStr(e *jx.Encoder, field, v string) {
	if v == "" {
		return
	}
	e.FieldStart(field)
	e.Str(v)
}

// encodePayPalOrder renders the draft in the Orders v2 create schema.
func encodePayPalOrder(d *order.Draft, id, number string, ac applicationContext) []byte {
	cur := d.Currency
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("intent")
	e.Str("CAPTURE")

	e.FieldStart("purchase_units")
	e.ArrStart()
	e.ObjStart()
	e.FieldStart("reference_id")
	e.Str(id)
	e.FieldStart("invoice_id")
	e.Str(number)

	e.FieldStart("amount")
	e.ObjStart()
	e.FieldStart("currency_code")
	e.Str(cur)
	e.FieldStart("value")
	e.Str(d.Total.StringFixed(2))
	e.FieldStart("breakdown")
	e.ObjStart()
	e.FieldStart("item_total")
	writeMoney(&e, cur, d.Breakdown.Subtotal)
	e.FieldStart("shipping")
	writeMoney(&e, cur, d.Breakdown.Shipping)
	e.FieldStart("discount")
	writeMoney(&e, cur, d.Breakdown.Discount)
	e.ObjEnd()
	e.ObjEnd()

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range d.Items {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(truncate(it.Name, 127))
		e.FieldStart("sku")
		e.Str(truncate(it.ID, 127))
		e.FieldStart("quantity")
		e.Str(strconv.Itoa(it.Quantity))
		e.FieldStart("unit_amount")
		writeMoney(&e, cur, it.UnitPrice.Round(2))
		e.FieldStart("category")
		if it.Category == order.BuildServiceCategory {
			e.Str("DIGITAL_GOODS")
		} else {
			e.Str("PHYSICAL_GOODS")
		}
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("shipping")
	e.ObjStart()
	e.FieldStart("name")
	e.ObjStart()
	e.FieldStart("full_name")
	e.Str(d.Address.Name)
	e.ObjEnd()
	e.FieldStart("address")
	e.ObjStart()
	writeStr(&e, "address_line_1", d.Address.Line1)
	writeStr(&e, "address_line_2", d.Address.Line2)
	writeStr(&e, "admin_area_2", d.Address.City)
	writeStr(&e, "admin_area_1", d.Address.County)
	writeStr(&e, "postal_code", d.Address.Postcode)
	writeStr(&e, "country_code", d.Address.Country)
	e.ObjEnd()
	e.ObjEnd()

	e.ObjEnd()
	e.ArrEnd()

	e.FieldStart("application_context")
	e.ObjStart()
	writeStr(&e, "brand_name", ac.Brand)
	writeStr(&e, "return_url", ac.ReturnURL)
	writeStr(&e, "cancel_url", ac.CancelURL)
	e.FieldStart("user_action")
	e.Str("PAY_NOW")
	e.FieldStart("shipping_preference")
	e.Str("SET_PROVIDED_ADDRESS")
	e.ObjEnd()

	e.ObjEnd()
	return e.Bytes()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type paypalLink struct {
	Href string
	Rel  string
}

type paypalOrder struct {
	ID     string
	Status string
	Links  []paypalLink
}

func (o paypalOrder) link(rel string) string {
	for _, l := range o.Links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}

func decodePayPalOrder(data []byte) (paypalOrder, error) {
	var o paypalOrder
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Str()
		case "status":
			o.Status, err = d.Str()
		case "links":
			err = d.Arr(func(d *jx.Decoder) error {
				var l paypalLink
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "href":
						l.Href, err = d.Str()
					case "rel":
						l.Rel, err = d.Str()
					default:
						return d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				o.Links = append(o.Links, l)
				return nil
			})
		default:
			return d.Skip()
		}
		return err
	})
	return o, err
}

// paypalErrorMessage extracts the most specific description from a PayPal
// error body.
func paypalErrorMessage(data []byte) string {
	var message, detail string
	_ = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message":
			s, err := d.Str()
			message = s
			return err
		case "details":
			return d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "description" || detail != "" {
						return d.Skip()
					}
					s, err := d.Str()
					detail = s
					return err
				})
			})
		default:
			return d.Skip()
		}
	})
	switch {
	case detail != "":
		return detail
	case message != "":
		return message
	default:
		return GenericFailureMessage
	}
}
