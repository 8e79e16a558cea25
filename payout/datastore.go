package payout

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	uuid "github.com/satori/go.uuid"

	"github.com/myzuwa/pawapay-go/datastore/gatewayserver"
)

var (
	// ErrPayoutAlreadyInitiated is returned when the earnings record was already paid out
	ErrPayoutAlreadyInitiated = errors.New("payout: a payout already exists for this earnings record")
	// ErrEarningsNotFound is returned when no earnings record matches the id
	ErrEarningsNotFound = errors.New("payout: no earnings record for id")
	// ErrPayoutNotFound is returned when no payout matches the id
	ErrPayoutNotFound = errors.New("payout: no payout for id")
)

// Datastore abstracts the persistence needed for vendor payouts
type Datastore interface {
	// GetEarnings fetches one available earnings record by id. A record that
	// was already consumed is treated the same as one that never existed.
	GetEarnings(ctx context.Context, earningsID uuid.UUID) (*VendorEarnings, error)
	// GetPayoutByEarningsID finds the payout consuming an earnings record, if any
	GetPayoutByEarningsID(ctx context.Context, earningsID uuid.UUID) (*VendorPayout, error)
	// GetPayoutByPayoutID fetches one payout by its gateway correlation key
	GetPayoutByPayoutID(ctx context.Context, payoutID string) (*VendorPayout, error)
	// InsertPayout records an accepted payout. The earnings id is unique so a
	// concurrent duplicate surfaces as ErrPayoutAlreadyInitiated.
	InsertPayout(ctx context.Context, p *VendorPayout) error
	// UpdatePayoutStatus conditionally advances a non-terminal payout, returning rows changed
	UpdatePayoutStatus(ctx context.Context, payoutID, internalStatus, pawapayStatus string, failureReason *string) (int64, error)
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

// GetEarnings fetches one available earnings record by id
func (pg *Postgres) GetEarnings(ctx context.Context, earningsID uuid.UUID) (*VendorEarnings, error) {
	statement := `
	select id, vendor_id, amount, currency, msisdn, operator, status, created_at
	from vendor_earnings
	where id = $1 and status = 'available'`
	var earnings VendorEarnings
	err := pg.RawDB().GetContext(ctx, &earnings, statement, earningsID)
	if err == sql.ErrNoRows {
		return nil, ErrEarningsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &earnings, nil
}

// GetPayoutByEarningsID finds the payout consuming an earnings record, if any
func (pg *Postgres) GetPayoutByEarningsID(ctx context.Context, earningsID uuid.UUID) (*VendorPayout, error) {
	statement := `
	select id, payout_id, earnings_id, vendor_id, amount, currency,
		pawapay_status, internal_status, failure_reason, created_by, created_at, updated_at
	from vendor_payouts
	where earnings_id = $1`
	var payout VendorPayout
	err := pg.RawDB().GetContext(ctx, &payout, statement, earningsID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// GetPayoutByPayoutID fetches one payout by its gateway correlation key
func (pg *Postgres) GetPayoutByPayoutID(ctx context.Context, payoutID string) (*VendorPayout, error) {
	statement := `
	select id, payout_id, earnings_id, vendor_id, amount, currency,
		pawapay_status, internal_status, failure_reason, created_by, created_at, updated_at
	from vendor_payouts
	where payout_id = $1`
	var payout VendorPayout
	err := pg.RawDB().GetContext(ctx, &payout, statement, payoutID)
	if err == sql.ErrNoRows {
		return nil, ErrPayoutNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// InsertPayout records an accepted payout. vendor_payouts carries a unique
// index on earnings_id, the database is the arbiter when two requests race.
func (pg *Postgres) InsertPayout(ctx context.Context, p *VendorPayout) error {
	statement := `
	insert into vendor_payouts
		(id, payout_id, earnings_id, vendor_id, amount, currency, pawapay_status, internal_status, created_by)
	values
		($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if uuid.Equal(p.ID, uuid.Nil) {
		p.ID = uuid.NewV4()
	}
	if p.InternalStatus == "" {
		p.InternalStatus = StatusPending
	}
	_, err := pg.RawDB().ExecContext(ctx, statement,
		p.ID, p.PayoutID, p.EarningsID, p.VendorID, p.Amount, p.Currency,
		p.PawaPayStatus, p.InternalStatus, p.CreatedBy)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrPayoutAlreadyInitiated
		}
		return err
	}

	// the earnings record is consumed once a payout exists for it
	consume := `update vendor_earnings set status = 'paid' where id = $1`
	if _, err := pg.RawDB().ExecContext(ctx, consume, p.EarningsID); err != nil {
		return err
	}
	return nil
}

// UpdatePayoutStatus conditionally advances a non-terminal payout
func (pg *Postgres) UpdatePayoutStatus(ctx context.Context, payoutID, internalStatus, pawapayStatus string, failureReason *string) (int64, error) {
	statement := `
	update vendor_payouts
	set internal_status = $2, pawapay_status = $3, failure_reason = coalesce($4, failure_reason), updated_at = current_timestamp
	where payout_id = $1 and internal_status not in ('completed', 'failed')`
	result, err := pg.RawDB().ExecContext(ctx, statement, payoutID, internalStatus, pawapayStatus, failureReason)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
