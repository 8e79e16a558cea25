package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/myzuwa/pawapay-go/libs/money"
	"github.com/myzuwa/pawapay-go/operator"
)

// Validation failure codes
const (
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeUnsupportedCurrency = "UNSUPPORTED_CURRENCY"
	CodeAmountBelowMinimum  = "AMOUNT_BELOW_MINIMUM"
	CodeAmountAboveMaximum  = "AMOUNT_ABOVE_MAXIMUM"
	CodeMissingOrderItems   = "MISSING_ORDER_ITEMS"
	CodeInvalidOrderItem    = "INVALID_ORDER_ITEM"
)

// Fallback limits applied when the directory has no entry for a currency
var (
	fallbackMinAmount = decimal.RequireFromString("1.00")
	fallbackMaxAmount = decimal.RequireFromString("10000.00")
)

// ValidationFailure carries a machine readable code alongside a human readable message
type ValidationFailure struct {
	Code    string
	Message string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("payment validation failed: %s: %s", e.Code, e.Message)
}

// Request is a proposed deposit prior to hitting the gateway
type Request struct {
	Amount       money.Money
	MSISDN       string
	OperatorCode string
	PaymentType  string
	PaymentToken string
	OrderItems   []OrderItem
}

// RequestValidator checks proposed deposits against the operator directory
// before any gateway call is made
type RequestValidator struct {
	directory *operator.Directory
}

// NewRequestValidator creates a RequestValidator backed by the given directory
func NewRequestValidator(directory *operator.Directory) *RequestValidator {
	return &RequestValidator{directory: directory}
}

// Validate runs each check in order, short-circuiting on the first failure
func (v *RequestValidator) Validate(ctx context.Context, req Request) error {
	if !v.directory.IsAvailable(ctx, req.OperatorCode) {
		return &ValidationFailure{
			Code:    CodeProviderUnavailable,
			Message: "the selected mobile money provider is currently unavailable",
		}
	}

	currency := req.Amount.Currency()
	supported := false
	for _, c := range v.directory.SupportedCurrencies(ctx, req.OperatorCode) {
		if c == currency {
			supported = true
			break
		}
	}
	if !supported {
		return &ValidationFailure{
			Code:    CodeUnsupportedCurrency,
			Message: fmt.Sprintf("%s payments are not supported by this provider", currency),
		}
	}

	minAmount, maxAmount := fallbackMinAmount, fallbackMaxAmount
	if limits, ok := v.directory.LimitsFor(ctx, req.OperatorCode, currency); ok {
		minAmount, maxAmount = limits.MinAmount, limits.MaxAmount
	}
	if req.Amount.Decimal().Cmp(minAmount) < 0 {
		return &ValidationFailure{
			Code:    CodeAmountBelowMinimum,
			Message: fmt.Sprintf("amount is below the minimum of %s %s", minAmount.StringFixed(2), currency),
		}
	}
	if req.Amount.Decimal().Cmp(maxAmount) > 0 {
		return &ValidationFailure{
			Code:    CodeAmountAboveMaximum,
			Message: fmt.Sprintf("amount is above the maximum of %s %s", maxAmount.StringFixed(2), currency),
		}
	}

	if req.PaymentType == TypeProduct {
		if len(req.OrderItems) == 0 {
			return &ValidationFailure{
				Code:    CodeMissingOrderItems,
				Message: "product payments require at least one order item",
			}
		}
		for _, item := range req.OrderItems {
			if item.ID == "" || item.Quantity <= 0 || item.Price.IsNegative() {
				return &ValidationFailure{
					Code:    CodeInvalidOrderItem,
					Message: "each order item needs an id, a positive quantity and a non-negative price",
				}
			}
		}
	}

	return nil
}
