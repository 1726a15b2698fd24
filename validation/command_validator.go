// Package validation checks inbound commands before they reach the book.
// A failed check never mutates engine state; the engine turns the error
// into a rejection event.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/tradeforge/matchbook/models"
)

const (
	MaxPricePrecision = 8

	MaxOrderIDLength  = 64
	MaxTraderIDLength = 64

	OrderIDPattern  = `^[a-zA-Z0-9_-]+$`
	TraderIDPattern = `^[a-zA-Z0-9_-]+$`
)

var (
	// MinPrice and MaxPrice bound the accepted price range; anything the
	// wire can express outside it is refused up front.
	MinPrice = decimal.New(1, -MaxPricePrecision)
	MaxPrice = decimal.New(1, 9)

	MinQuantity = decimal.New(1, -MaxPricePrecision)
	MaxQuantity = decimal.New(1, 9)

	orderIDRegex  = regexp.MustCompile(OrderIDPattern)
	traderIDRegex = regexp.MustCompile(TraderIDPattern)

	ErrInvalidOrderID         = errors.New("invalid order_id format or length")
	ErrInvalidTraderID        = errors.New("invalid trader_id format or length")
	ErrInvalidSide            = errors.New("invalid order side")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrPricePrecisionExceeded = errors.New("price precision exceeds 8 decimals")
	ErrPriceOutOfRange        = errors.New("price out of valid range")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrQuantityOutOfRange     = errors.New("quantity out of valid range")
)

type Config struct {
	MaxPricePrecision int
	MinPrice          decimal.Decimal
	MaxPrice          decimal.Decimal
	MinQuantity       decimal.Decimal
	MaxQuantity       decimal.Decimal
	MaxOrderIDLength  int
	MaxTraderIDLength int
}

func DefaultConfig() *Config {
	return &Config{
		MaxPricePrecision: MaxPricePrecision,
		MinPrice:          MinPrice,
		MaxPrice:          MaxPrice,
		MinQuantity:       MinQuantity,
		MaxQuantity:       MaxQuantity,
		MaxOrderIDLength:  MaxOrderIDLength,
		MaxTraderIDLength: MaxTraderIDLength,
	}
}

type CommandValidator struct {
	config *Config
}

func NewCommandValidator(config *Config) *CommandValidator {
	if config == nil {
		config = DefaultConfig()
	}
	return &CommandValidator{config: config}
}

// NewDefaultCommandValidator creates a validator with default configuration
func NewDefaultCommandValidator() *CommandValidator {
	return NewCommandValidator(DefaultConfig())
}

// ValidateOrderID validates order id format and length
func (cv *CommandValidator) ValidateOrderID(orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidOrderID)
	}
	if len(orderID) > cv.config.MaxOrderIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidOrderID, cv.config.MaxOrderIDLength)
	}
	if !orderIDRegex.MatchString(orderID) {
		return fmt.Errorf("%w: contains invalid characters", ErrInvalidOrderID)
	}
	return nil
}

// ValidateTraderID validates trader id format and length
func (cv *CommandValidator) ValidateTraderID(traderID string) error {
	if traderID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTraderID)
	}
	if len(traderID) > cv.config.MaxTraderIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidTraderID, cv.config.MaxTraderIDLength)
	}
	if !traderIDRegex.MatchString(traderID) {
		return fmt.Errorf("%w: contains invalid characters", ErrInvalidTraderID)
	}
	return nil
}

// ValidateSide validates the order side
func (cv *CommandValidator) ValidateSide(side models.Side) error {
	if side != models.SideBuy && side != models.SideSell {
		return fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	return nil
}

// ValidatePrice validates price positivity, precision and range
func (cv *CommandValidator) ValidatePrice(price decimal.Decimal) error {
	if price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: must be positive", ErrInvalidPrice)
	}
	if int(-price.Exponent()) > cv.config.MaxPricePrecision {
		return ErrPricePrecisionExceeded
	}
	if price.LessThan(cv.config.MinPrice) || price.GreaterThan(cv.config.MaxPrice) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrPriceOutOfRange,
			price, cv.config.MinPrice, cv.config.MaxPrice)
	}
	return nil
}

// ValidateQuantity validates quantity positivity and range
func (cv *CommandValidator) ValidateQuantity(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: must be positive", ErrInvalidQuantity)
	}
	if quantity.LessThan(cv.config.MinQuantity) || quantity.GreaterThan(cv.config.MaxQuantity) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrQuantityOutOfRange,
			quantity, cv.config.MinQuantity, cv.config.MaxQuantity)
	}
	return nil
}

// ValidateLimitAdd validates a limit order submission
func (cv *CommandValidator) ValidateLimitAdd(cmd models.Command) error {
	if err := cv.ValidateOrderID(cmd.OrderID); err != nil {
		return err
	}
	if err := cv.ValidateTraderID(cmd.TraderID); err != nil {
		return err
	}
	if err := cv.ValidateSide(cmd.Side); err != nil {
		return err
	}
	if err := cv.ValidatePrice(cmd.Price); err != nil {
		return err
	}
	return cv.ValidateQuantity(cmd.Quantity)
}

// ValidateMarketAdd validates a market order submission
func (cv *CommandValidator) ValidateMarketAdd(cmd models.Command) error {
	if err := cv.ValidateOrderID(cmd.OrderID); err != nil {
		return err
	}
	if err := cv.ValidateTraderID(cmd.TraderID); err != nil {
		return err
	}
	if err := cv.ValidateSide(cmd.Side); err != nil {
		return err
	}
	return cv.ValidateQuantity(cmd.Quantity)
}

// ValidateCancel validates a cancellation request
func (cv *CommandValidator) ValidateCancel(cmd models.Command) error {
	return cv.ValidateOrderID(cmd.OrderID)
}
