package payment

import (
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
)

// Internal payment statuses
const (
	StatusPending          = "pending"
	StatusProcessing       = "processing"
	StatusInReconciliation = "in_reconciliation"
	StatusCompleted        = "completed"
	StatusFailed           = "failed"
)

// Payment types
const (
	TypeProduct    = "product"
	TypeMembership = "membership"
	TypePromotion  = "promotion"
)

// Numeric order flags recorded on orders and order_transactions
const (
	OrderStatusFailed    = 0
	OrderStatusCompleted = 1
)

// PendingPayment is a deposit awaiting reconciliation against gateway webhooks.
// DepositID is the primary correlation key, PaymentToken ties it to an order attempt.
type PendingPayment struct {
	ID             uuid.UUID       `db:"id"`
	DepositID      string          `db:"deposit_id"`
	PaymentToken   string          `db:"payment_token"`
	PaymentType    string          `db:"payment_type"`
	Currency       string          `db:"currency"`
	PaymentAmount  decimal.Decimal `db:"payment_amount"`
	InternalStatus string          `db:"internal_status"`
	PawaPayStatus  string          `db:"pawapay_status"`
	FailureReason  *string         `db:"failure_reason"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// IsTerminal is true once a payment has reached completed or failed
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// NextStatus maps an incoming gateway status onto the internal status that should
// replace current. The second return is false when the event is a no-op, either
// because the status string is unrecognized or the transition is not allowed.
func NextStatus(current, incoming string) (string, bool) {
	if IsTerminal(current) {
		return current, false
	}
	switch incoming {
	case "COMPLETED":
		return StatusCompleted, true
	case "FAILED":
		return StatusFailed, true
	case "IN_RECONCILIATION":
		if current == StatusPending || current == StatusProcessing {
			return StatusInReconciliation, true
		}
		return current, false
	case "PROCESSING":
		if current == StatusPending {
			return StatusProcessing, true
		}
		return current, false
	default:
		// gateway status vocabulary is open, unknown statuses are acknowledged untouched
		return current, false
	}
}

// OrderItem is one line item on a product payment
type OrderItem struct {
	ID       string          `json:"id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// WebhookEvent is an audit record of a received gateway notification,
// used to detect and short-circuit duplicate delivery
type WebhookEvent struct {
	ID          uuid.UUID  `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	Payload     []byte     `db:"payload"`
	Processed   bool       `db:"processed"`
	ProcessedAt *time.Time `db:"processed_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// DepositNotification is the parsed body of a deposit status webhook
type DepositNotification struct {
	DepositID     string `json:"depositId"`
	Status        string `json:"status"`
	FailureReason *struct {
		FailureCode    string `json:"failureCode"`
		FailureMessage string `json:"failureMessage"`
	} `json:"failureReason,omitempty"`
}
