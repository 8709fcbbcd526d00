package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rule *Rule
	err  error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name    string
		repo    *mockCouponRepo
		wantPct decimal.Decimal
		wantErr error
	}{
		{
			name: "valid code returns percentage",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "SAVE10", Percentage: decimal.NewFromInt(10), Active: true},
			},
			wantPct: decimal.NewFromInt(10),
		},
		{
			name:    "unknown code returns ErrInvalidCoupon",
			repo:    &mockCouponRepo{err: ErrInvalidCoupon},
			wantErr: ErrInvalidCoupon,
		},
		{
			name: "inactive code returns ErrInvalidCoupon",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "OFF", Percentage: decimal.NewFromInt(10)},
			},
			wantErr: ErrInvalidCoupon,
		},
		{
			name: "expired coupon (valid_until in past)",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "OLD", Percentage: decimal.NewFromInt(10), ValidUntil: &pastTime, Active: true},
			},
			wantErr: ErrCouponExpired,
		},
		{
			name: "coupon not yet valid (valid_from in future)",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "FUTURE", Percentage: decimal.NewFromInt(10), ValidFrom: &futureTime, Active: true},
			},
			wantErr: ErrCouponExpired,
		},
		{
			name: "coupon within valid window succeeds",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:       "WINDOW",
					Percentage: decimal.NewFromInt(15),
					ValidFrom:  &pastTime,
					ValidUntil: &futureTime,
					Active:     true,
				},
			},
			wantPct: decimal.NewFromInt(15),
		},
		{
			name: "usage limit reached",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "LIMITED", Percentage: decimal.NewFromInt(10), MaxUses: 100, Uses: 100, Active: true},
			},
			wantErr: ErrCouponUsageLimitReached,
		},
		{
			name: "unlimited uses (max_uses=0) always succeeds",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "UNLIMITED", Percentage: decimal.NewFromInt(5), Uses: 9999, Active: true},
			},
			wantPct: decimal.NewFromInt(5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), "ANY")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.wantPct.Equal(got.Percentage),
				"expected percentage %s, got %s", tt.wantPct, got.Percentage)
		})
	}
}

func TestRepoValidator_LookupError(t *testing.T) {
	v := NewRepoValidator(&mockCouponRepo{err: errors.New("db down")})

	_, err := v.Validate(context.Background(), "SAVE10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
	assert.NotErrorIs(t, err, ErrInvalidCoupon)
}
