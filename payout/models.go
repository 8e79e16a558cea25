package payout

import (
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
)

// Internal payout statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Earnings statuses
const (
	EarningsStatusAvailable = "available"
	EarningsStatusPaid      = "paid"
)

// VendorEarnings is an accrued balance owed to a vendor, consumed by at most one payout
type VendorEarnings struct {
	ID        uuid.UUID       `db:"id"`
	VendorID  uuid.UUID       `db:"vendor_id"`
	Amount    decimal.Decimal `db:"amount"`
	Currency  string          `db:"currency"`
	MSISDN    string          `db:"msisdn"`
	Operator  string          `db:"operator"`
	Status    string          `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
}

// VendorPayout is a disbursement initiated against one earnings record
type VendorPayout struct {
	ID             uuid.UUID       `db:"id"`
	PayoutID       string          `db:"payout_id"`
	EarningsID     uuid.UUID       `db:"earnings_id"`
	VendorID       uuid.UUID       `db:"vendor_id"`
	Amount         decimal.Decimal `db:"amount"`
	Currency       string          `db:"currency"`
	PawaPayStatus  string          `db:"pawapay_status"`
	InternalStatus string          `db:"internal_status"`
	FailureReason  *string         `db:"failure_reason"`
	CreatedBy      string          `db:"created_by"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// BulkItemFailure records why one earnings record could not be paid out
type BulkItemFailure struct {
	EarningsID uuid.UUID `json:"earningsId"`
	Error      string    `json:"error"`
}

// BulkResult summarizes a bulk payout run
type BulkResult struct {
	Succeeded []string          `json:"succeeded"`
	Failed    []BulkItemFailure `json:"failed"`
}
