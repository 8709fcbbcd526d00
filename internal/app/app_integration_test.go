//go:build integration

package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/rig-checkout/internal/domain/auth"
	"github.com/xenking/rig-checkout/internal/domain/coupon"
	"github.com/xenking/rig-checkout/internal/storage/postgres"
	"github.com/xenking/rig-checkout/pkg/health"
)

const integrationPepper = "integration-pepper"

func startDatabase(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "rig",
				"POSTGRES_PASSWORD": "rig",
				"POSTGRES_DB":       "checkout",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err, "starting postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://rig:rig@%s:%s/checkout?sslmode=disable", host, port.Port())
}

// field extracts a top-level string field from a JSON object.
func field(t *testing.T, body []byte, name string) string {
	t.Helper()
	var out string
	require.NoError(t, jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if key == name {
			var err error
			out, err = d.Str()
			return err
		}
		return d.Skip()
	}))
	return out
}

func TestCheckoutAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	lg := zaptest.NewLogger(t)
	cfg := &Config{
		Storage:      StoragePostgres,
		DatabaseURL:  startDatabase(t),
		APIKeyPepper: integrationPepper,
	}

	repos, err := openRepositories(ctx, lg, cfg)
	require.NoError(t, err)
	t.Cleanup(repos.close)

	require.NoError(t, health.PingCheck(repos.ping)(ctx))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.NewCouponRepository(pool).Upsert(ctx, coupon.Rule{
		Code:        "INTEGRATION15",
		Percentage:  decimal.NewFromInt(15),
		Description: "15% off",
		Active:      true,
	}))
	require.NoError(t, postgres.NewAPIKeyRepository(pool).Create(ctx, auth.APIKeyInfo{
		ID:      "ops",
		KeyHash: auth.HashKey([]byte(integrationPepper), "rk_ops"),
		Name:    "ops",
		Scopes:  []string{auth.ScopeOrdersVerify},
	}))

	h, _, err := wire(ctx, lg, cfg, repos, nil, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	call := func(method, path, body string, header ...string) (int, []byte) {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, method, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		for i := 0; i+1 < len(header); i += 2 {
			req.Header.Set(header[i], header[i+1])
		}
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, data
	}

	code, _ := call(http.MethodPut, "/api/carts/owner-1", `[
		{"id":"cpu","name":"CPU","category":"processor","price":300,"quantity":1},
		{"id":"mb","name":"Board","category":"motherboard","price":150,"quantity":1},
		{"id":"ram","name":"RAM","category":"memory","price":80,"quantity":1},
		{"id":"ssd","name":"SSD","category":"storage","price":90,"quantity":1},
		{"id":"psu","name":"PSU","category":"psu","price":70,"quantity":1},
		{"id":"case","name":"Case","category":"case","price":60,"quantity":1}
	]`)
	require.Equal(t, http.StatusOK, code)

	code, body := call(http.MethodPost, "/api/checkout/sessions", `{"owner":"owner-1"}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	base := "/api/checkout/sessions/" + field(t, body, "session_id")

	code, body = call(http.MethodPost, base+"/coupon", `{"code":"integration15"}`)
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = call(http.MethodPost, base+"/submit", `{"method":"bank_transfer","address":{
		"name":"Ada Lovelace","email":"ada@example.com","phone":"07700900123",
		"line1":"1 High Street","city":"London","postcode":"SW1A 1AA","country":"GB"
	}}`)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, "completed", field(t, body, "state"))
	orderID := field(t, body, "order_id")

	stored, err := postgres.NewOrderRepository(pool).Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "INTEGRATION15", stored.CouponCode)
	assert.Equal(t, "709.75", stored.Total.StringFixed(2))

	code, body = call(http.MethodGet, "/api/orders/latest/owner-1", "")
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, orderID, field(t, body, "order_id"))

	code, body = call(http.MethodPost, "/api/admin/orders/"+orderID+"/verify", "", "X-API-Key", "rk_ops")
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, "paid", field(t, body, "status"))
}
