package payout

import (
	"context"
	"errors"
	"strings"
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myzuwa/pawapay-go/libs/clients/pawapay"
)

type fakeGateway struct {
	payoutResp  *pawapay.PayoutResponse
	payoutErr   error
	payoutCalls int
	statusResp  *pawapay.PayoutResponse
	resendCalls int
}

func (g *fakeGateway) GetActiveConfiguration(ctx context.Context, country, operationType string) (*pawapay.ActiveConfiguration, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) PredictProvider(ctx context.Context, phoneNumber string) (*pawapay.ProviderPrediction, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) CreateDeposit(ctx context.Context, deposit pawapay.DepositRequest) (*pawapay.DepositResponse, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) GetDepositStatus(ctx context.Context, depositID string) (*pawapay.DepositResponse, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) CreatePayout(ctx context.Context, payout pawapay.PayoutRequest) (*pawapay.PayoutResponse, error) {
	g.payoutCalls++
	if g.payoutErr != nil {
		return nil, g.payoutErr
	}
	resp := *g.payoutResp
	if resp.PayoutID == "" {
		resp.PayoutID = payout.PayoutID
	}
	return &resp, nil
}

func (g *fakeGateway) GetPayoutStatus(ctx context.Context, payoutID string) (*pawapay.PayoutResponse, error) {
	return g.statusResp, nil
}

func (g *fakeGateway) ResendPayoutCallback(ctx context.Context, payoutID string) (*pawapay.PayoutResponse, error) {
	g.resendCalls++
	return &pawapay.PayoutResponse{PayoutID: payoutID}, nil
}

type fakeDatastore struct {
	earnings map[uuid.UUID]*VendorEarnings
	payouts  map[uuid.UUID]*VendorPayout
}

func newFakeDatastore() *fakeDatastore {
	return &fakeDatastore{
		earnings: map[uuid.UUID]*VendorEarnings{},
		payouts:  map[uuid.UUID]*VendorPayout{},
	}
}

func (d *fakeDatastore) GetEarnings(ctx context.Context, earningsID uuid.UUID) (*VendorEarnings, error) {
	e, ok := d.earnings[earningsID]
	if !ok || e.Status != EarningsStatusAvailable {
		return nil, ErrEarningsNotFound
	}
	return e, nil
}

func (d *fakeDatastore) GetPayoutByEarningsID(ctx context.Context, earningsID uuid.UUID) (*VendorPayout, error) {
	p, ok := d.payouts[earningsID]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (d *fakeDatastore) GetPayoutByPayoutID(ctx context.Context, payoutID string) (*VendorPayout, error) {
	for _, p := range d.payouts {
		if p.PayoutID == payoutID {
			return p, nil
		}
	}
	return nil, ErrPayoutNotFound
}

func (d *fakeDatastore) InsertPayout(ctx context.Context, p *VendorPayout) error {
	if _, ok := d.payouts[p.EarningsID]; ok {
		return ErrPayoutAlreadyInitiated
	}
	d.payouts[p.EarningsID] = p
	if e, ok := d.earnings[p.EarningsID]; ok {
		e.Status = EarningsStatusPaid
	}
	return nil
}

func (d *fakeDatastore) UpdatePayoutStatus(ctx context.Context, payoutID, internalStatus, pawapayStatus string, failureReason *string) (int64, error) {
	for _, p := range d.payouts {
		if p.PayoutID == payoutID && p.InternalStatus != StatusCompleted && p.InternalStatus != StatusFailed {
			p.InternalStatus = internalStatus
			p.PawaPayStatus = pawapayStatus
			if failureReason != nil {
				p.FailureReason = failureReason
			}
			return 1, nil
		}
	}
	return 0, nil
}

func seedEarnings(d *fakeDatastore) uuid.UUID {
	id := uuid.NewV4()
	d.earnings[id] = &VendorEarnings{
		ID:       id,
		VendorID: uuid.NewV4(),
		Amount:   decimal.RequireFromString("250.00"),
		Currency: "ZMW",
		MSISDN:   "260976000000",
		Operator: "AIRTEL_OAPI_ZMB",
		Status:   EarningsStatusAvailable,
	}
	return id
}

func TestProcessPayoutAccepted(t *testing.T) {
	datastore := newFakeDatastore()
	earningsID := seedEarnings(datastore)
	gateway := &fakeGateway{payoutResp: &pawapay.PayoutResponse{Status: pawapay.StatusAccepted}}
	service := InitService(datastore, gateway)

	payout, err := service.ProcessPayout(context.Background(), earningsID, "admin-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(payout.PayoutID, "MZ-PAY-"))
	assert.Equal(t, StatusPending, payout.InternalStatus)
	assert.Equal(t, earningsID, payout.EarningsID)
	assert.Equal(t, "admin-1", payout.CreatedBy)
}

func TestProcessPayoutDuplicateRejectedBeforeGatewayCall(t *testing.T) {
	datastore := newFakeDatastore()
	earningsID := seedEarnings(datastore)
	gateway := &fakeGateway{payoutResp: &pawapay.PayoutResponse{Status: pawapay.StatusAccepted}}
	service := InitService(datastore, gateway)

	_, err := service.ProcessPayout(context.Background(), earningsID, "admin-1")
	require.NoError(t, err)
	require.Equal(t, 1, gateway.payoutCalls)

	_, err = service.ProcessPayout(context.Background(), earningsID, "admin-1")
	assert.ErrorIs(t, err, ErrPayoutAlreadyInitiated)
	// the duplicate never reached the gateway
	assert.Equal(t, 1, gateway.payoutCalls)
}

func TestProcessPayoutRejectedCreatesNoRecord(t *testing.T) {
	datastore := newFakeDatastore()
	earningsID := seedEarnings(datastore)
	gateway := &fakeGateway{payoutResp: &pawapay.PayoutResponse{
		Status:        pawapay.StatusRejected,
		FailureReason: &pawapay.FailureReason{FailureCode: "RECIPIENT_NOT_FOUND", FailureMessage: "recipient wallet not found"},
	}}
	service := InitService(datastore, gateway)

	_, err := service.ProcessPayout(context.Background(), earningsID, "admin-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient wallet not found")
	assert.Empty(t, datastore.payouts)
}

func TestProcessPayoutConsumedEarnings(t *testing.T) {
	datastore := newFakeDatastore()
	earningsID := seedEarnings(datastore)
	datastore.earnings[earningsID].Status = EarningsStatusPaid
	gateway := &fakeGateway{payoutResp: &pawapay.PayoutResponse{Status: pawapay.StatusAccepted}}
	service := InitService(datastore, gateway)

	_, err := service.ProcessPayout(context.Background(), earningsID, "admin-1")
	assert.ErrorIs(t, err, ErrEarningsNotFound)
	// earnings that were already paid out never reach the gateway
	assert.Equal(t, 0, gateway.payoutCalls)
}

func TestProcessPayoutUnknownEarnings(t *testing.T) {
	service := InitService(newFakeDatastore(), &fakeGateway{})

	_, err := service.ProcessPayout(context.Background(), uuid.NewV4(), "admin-1")
	assert.ErrorIs(t, err, ErrEarningsNotFound)
}

func TestProcessBulkPayoutsIsolatesFailures(t *testing.T) {
	datastore := newFakeDatastore()
	good1 := seedEarnings(datastore)
	missing := uuid.NewV4()
	good2 := seedEarnings(datastore)
	gateway := &fakeGateway{payoutResp: &pawapay.PayoutResponse{Status: pawapay.StatusAccepted}}
	service := InitService(datastore, gateway)

	result := service.ProcessBulkPayouts(context.Background(), []uuid.UUID{good1, missing, good2}, "admin-1")

	assert.Len(t, result.Succeeded, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, missing, result.Failed[0].EarningsID)
}

func TestCheckPayoutStatusAdvances(t *testing.T) {
	datastore := newFakeDatastore()
	earningsID := seedEarnings(datastore)
	gateway := &fakeGateway{payoutResp: &pawapay.PayoutResponse{Status: pawapay.StatusAccepted}}
	service := InitService(datastore, gateway)

	payout, err := service.ProcessPayout(context.Background(), earningsID, "admin-1")
	require.NoError(t, err)

	gateway.statusResp = &pawapay.PayoutResponse{PayoutID: payout.PayoutID, Status: pawapay.StatusCompleted}
	updated, err := service.CheckPayoutStatus(context.Background(), payout.PayoutID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.InternalStatus)
}

func TestResendCallback(t *testing.T) {
	datastore := newFakeDatastore()
	earningsID := seedEarnings(datastore)
	gateway := &fakeGateway{payoutResp: &pawapay.PayoutResponse{Status: pawapay.StatusAccepted}}
	service := InitService(datastore, gateway)

	payout, err := service.ProcessPayout(context.Background(), earningsID, "admin-1")
	require.NoError(t, err)

	require.NoError(t, service.ResendCallback(context.Background(), payout.PayoutID))
	assert.Equal(t, 1, gateway.resendCalls)

	err = service.ResendCallback(context.Background(), "MZ-PAY-missing")
	assert.ErrorIs(t, err, ErrPayoutNotFound)
}
