package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/myzuwa/pawapay-go/datastore/gatewayserver"
)

// ErrPaymentNotFound is returned when no pending payment matches a deposit id
var ErrPaymentNotFound = errors.New("payment: no pending payment for deposit id")

// Datastore abstracts the persistence needed for deposit reconciliation
type Datastore interface {
	// InsertPendingPayment records a freshly accepted deposit as pending
	InsertPendingPayment(ctx context.Context, p *PendingPayment) error
	// GetPendingPaymentByDepositID looks up a payment by its correlation key
	GetPendingPaymentByDepositID(ctx context.Context, depositID string) (*PendingPayment, error)
	// UpdatePaymentStatus conditionally advances a non-terminal payment, returning
	// the number of rows changed. A zero count means the payment was already terminal.
	UpdatePaymentStatus(ctx context.Context, depositID, internalStatus, pawapayStatus string, failureReason *string) (int64, error)
	// MarkOrderPaymentStatus updates the order row keyed by payment token, setting
	// both the textual payment status and the numeric order flag, returning rows changed
	MarkOrderPaymentStatus(ctx context.Context, paymentToken, paymentStatus string, orderStatus int, paymentMethod, paymentID string) (int64, error)
	// InsertOrderTransaction appends one transaction record for a settled order
	InsertOrderTransaction(ctx context.Context, paymentToken, depositID, currency, amount string, orderStatus int) error
	// ActivateMembership marks the membership purchased via payment token as paid
	ActivateMembership(ctx context.Context, paymentToken string) error
	// InsertWebhookEvent records a received event for audit, reporting whether
	// it still needs processing. An already processed duplicate returns false.
	InsertWebhookEvent(ctx context.Context, event *WebhookEvent) (bool, error)
	// MarkWebhookEventProcessed flags an audit record once reconciliation finished
	MarkWebhookEventProcessed(ctx context.Context, eventID string) error
}

// Postgres is a Datastore wrapper around a postgres database
type Postgres struct {
	gatewayserver.Postgres
}

// NewPostgres creates a new Postgres Datastore
func NewPostgres(databaseURL string, performMigration bool) (Datastore, error) {
	pg, err := gatewayserver.NewPostgres(databaseURL, performMigration)
	if err != nil {
		return nil, err
	}
	return &Postgres{*pg}, nil
}

// InsertPendingPayment records a freshly accepted deposit as pending
func (pg *Postgres) InsertPendingPayment(ctx context.Context, p *PendingPayment) error {
	statement := `
	insert into pending_payments
		(id, deposit_id, payment_token, payment_type, currency, payment_amount, internal_status, pawapay_status)
	values
		($1, $2, $3, $4, $5, $6, $7, $8)`
	if uuid.Equal(p.ID, uuid.Nil) {
		p.ID = uuid.NewV4()
	}
	if p.InternalStatus == "" {
		p.InternalStatus = StatusPending
	}
	_, err := pg.RawDB().ExecContext(ctx, statement,
		p.ID, p.DepositID, p.PaymentToken, p.PaymentType, p.Currency,
		p.PaymentAmount, p.InternalStatus, p.PawaPayStatus)
	return err
}

// GetPendingPaymentByDepositID looks up a payment by its correlation key
func (pg *Postgres) GetPendingPaymentByDepositID(ctx context.Context, depositID string) (*PendingPayment, error) {
	statement := `
	select id, deposit_id, payment_token, payment_type, currency, payment_amount,
		internal_status, pawapay_status, failure_reason, created_at, updated_at
	from pending_payments
	where deposit_id = $1`
	var payment PendingPayment
	err := pg.RawDB().GetContext(ctx, &payment, statement, depositID)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePaymentStatus advances a payment unless it already reached a terminal
// status. The terminal check and the write happen in one statement so two
// concurrent reconcile attempts cannot both observe a non-terminal state.
func (pg *Postgres) UpdatePaymentStatus(ctx context.Context, depositID, internalStatus, pawapayStatus string, failureReason *string) (int64, error) {
	statement := `
	update pending_payments
	set internal_status = $2, pawapay_status = $3, failure_reason = coalesce($4, failure_reason), updated_at = current_timestamp
	where deposit_id = $1 and internal_status not in ('completed', 'failed')`
	result, err := pg.RawDB().ExecContext(ctx, statement, depositID, internalStatus, pawapayStatus, failureReason)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// MarkOrderPaymentStatus updates the order row keyed by payment token
func (pg *Postgres) MarkOrderPaymentStatus(ctx context.Context, paymentToken, paymentStatus string, orderStatus int, paymentMethod, paymentID string) (int64, error) {
	statement := `
	update orders
	set payment_status = $2, status = $3, payment_method = $4, payment_id = $5, date_payment = current_timestamp, updated_at = current_timestamp
	where payment_token = $1 and payment_status <> $2`
	result, err := pg.RawDB().ExecContext(ctx, statement, paymentToken, paymentStatus, orderStatus, paymentMethod, paymentID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// InsertOrderTransaction appends one transaction record for a settled order
func (pg *Postgres) InsertOrderTransaction(ctx context.Context, paymentToken, depositID, currency, amount string, orderStatus int) error {
	statement := `
	insert into order_transactions (id, payment_token, external_transaction_id, currency, amount, status)
	values ($1, $2, $3, $4, $5, $6)`
	_, err := pg.RawDB().ExecContext(ctx, statement, uuid.NewV4(), paymentToken, depositID, currency, amount, orderStatus)
	return err
}

// ActivateMembership marks the membership purchased via payment token as paid
func (pg *Postgres) ActivateMembership(ctx context.Context, paymentToken string) error {
	statement := `
	update membership_payments
	set status = 'active', activated_at = current_timestamp, updated_at = current_timestamp
	where payment_token = $1`
	_, err := pg.RawDB().ExecContext(ctx, statement, paymentToken)
	return err
}

// InsertWebhookEvent records a received event for audit. The insert is keyed on
// event id. It returns false only when the event was delivered before AND fully
// processed, so a redelivery after a mid-reconcile crash is still worked.
func (pg *Postgres) InsertWebhookEvent(ctx context.Context, event *WebhookEvent) (bool, error) {
	statement := `
	insert into webhook_events (id, event_id, event_type, payload)
	values ($1, $2, $3, $4)
	on conflict (event_id) do update set event_id = excluded.event_id
	where webhook_events.processed = false`
	if uuid.Equal(event.ID, uuid.Nil) {
		event.ID = uuid.NewV4()
	}
	result, err := pg.RawDB().ExecContext(ctx, statement, event.ID, event.EventID, event.EventType, event.Payload)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkWebhookEventProcessed flags an audit record once reconciliation finished
func (pg *Postgres) MarkWebhookEventProcessed(ctx context.Context, eventID string) error {
	statement := `
	update webhook_events
	set processed = true, processed_at = $2
	where event_id = $1`
	_, err := pg.RawDB().ExecContext(ctx, statement, eventID, time.Now().UTC())
	return err
}
