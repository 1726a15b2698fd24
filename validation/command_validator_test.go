package validation

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tradeforge/matchbook/models"
)

func TestValidateOrderID(t *testing.T) {
	cv := NewDefaultCommandValidator()

	tests := []struct {
		name    string
		orderID string
		wantErr error
	}{
		{"valid alphanumeric", "order-123_ABC", nil},
		{"empty", "", ErrInvalidOrderID},
		{"too long", strings.Repeat("a", 65), ErrInvalidOrderID},
		{"whitespace", "order 1", ErrInvalidOrderID},
		{"special characters", "order;drop", ErrInvalidOrderID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cv.ValidateOrderID(tt.orderID)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTraderID(t *testing.T) {
	cv := NewDefaultCommandValidator()

	assert.NoError(t, cv.ValidateTraderID("trader-1"))
	assert.ErrorIs(t, cv.ValidateTraderID(""), ErrInvalidTraderID)
	assert.ErrorIs(t, cv.ValidateTraderID(strings.Repeat("t", 65)), ErrInvalidTraderID)
	assert.ErrorIs(t, cv.ValidateTraderID("bad trader!"), ErrInvalidTraderID)
}

func TestValidateSide(t *testing.T) {
	cv := NewDefaultCommandValidator()

	assert.NoError(t, cv.ValidateSide(models.SideBuy))
	assert.NoError(t, cv.ValidateSide(models.SideSell))
	assert.ErrorIs(t, cv.ValidateSide(models.Side("hold")), ErrInvalidSide)
	assert.ErrorIs(t, cv.ValidateSide(models.Side("")), ErrInvalidSide)
}

func TestValidatePrice(t *testing.T) {
	cv := NewDefaultCommandValidator()

	tests := []struct {
		name    string
		price   decimal.Decimal
		wantErr error
	}{
		{"valid", decimal.NewFromFloat(123.45), nil},
		{"smallest tick", decimal.New(1, -8), nil},
		{"zero", decimal.Zero, ErrInvalidPrice},
		{"negative", decimal.NewFromInt(-5), ErrInvalidPrice},
		{"too precise", decimal.New(1, -9), ErrPricePrecisionExceeded},
		{"above max", decimal.New(2, 9), ErrPriceOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cv.ValidatePrice(tt.price)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuantity(t *testing.T) {
	cv := NewDefaultCommandValidator()

	assert.NoError(t, cv.ValidateQuantity(decimal.NewFromFloat(0.5)))
	assert.ErrorIs(t, cv.ValidateQuantity(decimal.Zero), ErrInvalidQuantity)
	assert.ErrorIs(t, cv.ValidateQuantity(decimal.NewFromInt(-1)), ErrInvalidQuantity)
	assert.ErrorIs(t, cv.ValidateQuantity(decimal.New(2, 9)), ErrQuantityOutOfRange)
}

func TestValidateLimitAdd(t *testing.T) {
	cv := NewDefaultCommandValidator()

	valid := models.LimitAddCommand("o1", "t1", models.SideBuy,
		decimal.NewFromInt(100), decimal.NewFromInt(5))
	assert.NoError(t, cv.ValidateLimitAdd(valid))

	missingPrice := valid
	missingPrice.Price = decimal.Zero
	assert.ErrorIs(t, cv.ValidateLimitAdd(missingPrice), ErrInvalidPrice)

	badSide := valid
	badSide.Side = models.Side("short")
	assert.ErrorIs(t, cv.ValidateLimitAdd(badSide), ErrInvalidSide)
}

func TestValidateMarketAddIgnoresPrice(t *testing.T) {
	cv := NewDefaultCommandValidator()

	// Market orders carry no price; zero must pass
	cmd := models.MarketAddCommand("m1", "t1", models.SideSell, decimal.NewFromInt(3))
	assert.True(t, cmd.Price.IsZero())
	assert.NoError(t, cv.ValidateMarketAdd(cmd))

	cmd.Quantity = decimal.Zero
	assert.ErrorIs(t, cv.ValidateMarketAdd(cmd), ErrInvalidQuantity)
}

func TestValidateCancel(t *testing.T) {
	cv := NewDefaultCommandValidator()

	assert.NoError(t, cv.ValidateCancel(models.CancelCommand("o1")))
	assert.ErrorIs(t, cv.ValidateCancel(models.CancelCommand("")), ErrInvalidOrderID)
}

func TestCustomConfigBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxQuantity = decimal.NewFromInt(10)
	cv := NewCommandValidator(cfg)

	assert.NoError(t, cv.ValidateQuantity(decimal.NewFromInt(10)))
	assert.ErrorIs(t, cv.ValidateQuantity(decimal.NewFromInt(11)), ErrQuantityOutOfRange)
}
