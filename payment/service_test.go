package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myzuwa/pawapay-go/libs/clients/pawapay"
	"github.com/myzuwa/pawapay-go/libs/cryptography"
	"github.com/myzuwa/pawapay-go/libs/money"
	"github.com/myzuwa/pawapay-go/operator"
)

type fakeGateway struct {
	conf         *pawapay.ActiveConfiguration
	confErr      error
	depositResp  *pawapay.DepositResponse
	depositErr   error
	depositCalls int
	predictResp  *pawapay.ProviderPrediction
	predictErr   error
}

func (g *fakeGateway) GetActiveConfiguration(ctx context.Context, country, operationType string) (*pawapay.ActiveConfiguration, error) {
	return g.conf, g.confErr
}

func (g *fakeGateway) PredictProvider(ctx context.Context, phoneNumber string) (*pawapay.ProviderPrediction, error) {
	return g.predictResp, g.predictErr
}

func (g *fakeGateway) CreateDeposit(ctx context.Context, deposit pawapay.DepositRequest) (*pawapay.DepositResponse, error) {
	g.depositCalls++
	if g.depositErr != nil {
		return nil, g.depositErr
	}
	resp := *g.depositResp
	if resp.DepositID == "" {
		resp.DepositID = deposit.DepositID
	}
	return &resp, nil
}

func (g *fakeGateway) GetDepositStatus(ctx context.Context, depositID string) (*pawapay.DepositResponse, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) CreatePayout(ctx context.Context, payout pawapay.PayoutRequest) (*pawapay.PayoutResponse, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) GetPayoutStatus(ctx context.Context, payoutID string) (*pawapay.PayoutResponse, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) ResendPayoutCallback(ctx context.Context, payoutID string) (*pawapay.PayoutResponse, error) {
	return nil, errors.New("not implemented")
}

type fakeDatastore struct {
	payments      map[string]*PendingPayment
	events        map[string]bool // event id -> processed
	orderStatuses map[string]string
	orderFlags    map[string]int
	transactions  int
	lastTxStatus  int
	activations   int
	membershipErr error
}

func newFakeDatastore() *fakeDatastore {
	return &fakeDatastore{
		payments:      map[string]*PendingPayment{},
		events:        map[string]bool{},
		orderStatuses: map[string]string{},
		orderFlags:    map[string]int{},
	}
}

func (d *fakeDatastore) InsertPendingPayment(ctx context.Context, p *PendingPayment) error {
	d.payments[p.DepositID] = p
	return nil
}

func (d *fakeDatastore) GetPendingPaymentByDepositID(ctx context.Context, depositID string) (*PendingPayment, error) {
	p, ok := d.payments[depositID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	clone := *p
	return &clone, nil
}

func (d *fakeDatastore) UpdatePaymentStatus(ctx context.Context, depositID, internalStatus, pawapayStatus string, failureReason *string) (int64, error) {
	p, ok := d.payments[depositID]
	if !ok || IsTerminal(p.InternalStatus) {
		return 0, nil
	}
	p.InternalStatus = internalStatus
	p.PawaPayStatus = pawapayStatus
	if failureReason != nil {
		p.FailureReason = failureReason
	}
	p.UpdatedAt = time.Now().UTC()
	return 1, nil
}

func (d *fakeDatastore) MarkOrderPaymentStatus(ctx context.Context, paymentToken, paymentStatus string, orderStatus int, paymentMethod, paymentID string) (int64, error) {
	if d.orderStatuses[paymentToken] == paymentStatus {
		return 0, nil
	}
	d.orderStatuses[paymentToken] = paymentStatus
	d.orderFlags[paymentToken] = orderStatus
	return 1, nil
}

func (d *fakeDatastore) InsertOrderTransaction(ctx context.Context, paymentToken, depositID, currency, amount string, orderStatus int) error {
	d.transactions++
	d.lastTxStatus = orderStatus
	return nil
}

func (d *fakeDatastore) ActivateMembership(ctx context.Context, paymentToken string) error {
	if d.membershipErr != nil {
		return d.membershipErr
	}
	d.activations++
	return nil
}

func (d *fakeDatastore) InsertWebhookEvent(ctx context.Context, event *WebhookEvent) (bool, error) {
	if processed, ok := d.events[event.EventID]; ok && processed {
		return false, nil
	}
	d.events[event.EventID] = false
	return true, nil
}

func (d *fakeDatastore) MarkWebhookEventProcessed(ctx context.Context, eventID string) error {
	d.events[eventID] = true
	return nil
}

func activeConf() *pawapay.ActiveConfiguration {
	return &pawapay.ActiveConfiguration{
		Countries: []pawapay.CountryConfiguration{
			{
				Country: "ZMB",
				Providers: []pawapay.ProviderConfiguration{
					{
						Provider:    "AIRTEL_OAPI_ZMB",
						DisplayName: "Airtel Money",
						Currencies: []pawapay.CurrencyConfiguration{
							{
								Currency: "ZMW",
								OperationTypes: map[string]pawapay.OperationConfiguration{
									"DEPOSIT": {Status: "OPERATIONAL", MinAmount: "1.00", MaxAmount: "50000.00"},
								},
							},
						},
					},
				},
			},
		},
	}
}

func newTestService(datastore Datastore, gateway *fakeGateway) *Service {
	directory := operator.NewDirectory(gateway, "ZMB", "DEPOSIT", time.Hour)
	secret := cryptography.NewWebhookSecret("test-secret")
	return InitService(datastore, gateway, directory, secret, "ZMB")
}

func validRequest(t *testing.T) Request {
	amount, err := money.New("100.00", "ZMW")
	require.NoError(t, err)
	return Request{
		Amount:       amount,
		MSISDN:       "260976000000",
		OperatorCode: "AIRTEL_OAPI_ZMB",
		PaymentType:  TypeProduct,
		PaymentToken: "order-token-1",
		OrderItems: []OrderItem{
			{ID: "item-1", Quantity: 1, Price: decimal.RequireFromString("100.00")},
		},
	}
}

func TestSubmitPaymentAccepted(t *testing.T) {
	datastore := newFakeDatastore()
	gateway := &fakeGateway{
		conf:        activeConf(),
		depositResp: &pawapay.DepositResponse{Status: pawapay.StatusAccepted},
	}
	service := newTestService(datastore, gateway)

	pending, err := service.SubmitPayment(context.Background(), validRequest(t))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, pending.InternalStatus)
	assert.Equal(t, pawapay.StatusAccepted, pending.PawaPayStatus)
	assert.NotEmpty(t, pending.DepositID)
	assert.Contains(t, datastore.payments, pending.DepositID)
}

func TestSubmitPaymentRejectedLeavesNoTrace(t *testing.T) {
	datastore := newFakeDatastore()
	gateway := &fakeGateway{
		conf: activeConf(),
		depositResp: &pawapay.DepositResponse{
			Status:        pawapay.StatusRejected,
			FailureReason: &pawapay.FailureReason{FailureCode: "PAYER_LIMIT_REACHED", FailureMessage: "limit reached"},
		},
	}
	service := newTestService(datastore, gateway)

	_, err := service.SubmitPayment(context.Background(), validRequest(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayRejected)
	assert.Empty(t, datastore.payments)
}

func TestSubmitPaymentValidationShortCircuits(t *testing.T) {
	datastore := newFakeDatastore()
	gateway := &fakeGateway{
		conf:        activeConf(),
		depositResp: &pawapay.DepositResponse{Status: pawapay.StatusAccepted},
	}
	service := newTestService(datastore, gateway)

	req := validRequest(t)
	req.OperatorCode = "MTN_MOMO_ZMB" // not in the directory

	_, err := service.SubmitPayment(context.Background(), req)
	var vf *ValidationFailure
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, CodeProviderUnavailable, vf.Code)
	// no gateway call was made
	assert.Zero(t, gateway.depositCalls)
	assert.Empty(t, datastore.payments)
}

func seedPending(datastore *fakeDatastore, depositID, paymentType string) {
	datastore.payments[depositID] = &PendingPayment{
		DepositID:      depositID,
		PaymentToken:   "order-token-1",
		PaymentType:    paymentType,
		Currency:       "ZMW",
		PaymentAmount:  decimal.RequireFromString("100.00"),
		InternalStatus: StatusPending,
	}
}

func TestReconcileCompleted(t *testing.T) {
	datastore := newFakeDatastore()
	seedPending(datastore, "D1", TypeProduct)
	service := newTestService(datastore, &fakeGateway{conf: activeConf()})

	err := service.Reconcile(context.Background(), DepositNotification{
		DepositID: "D1",
		Status:    "COMPLETED",
	}, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, datastore.payments["D1"].InternalStatus)
	assert.Equal(t, "received", datastore.orderStatuses["order-token-1"])
	assert.Equal(t, OrderStatusCompleted, datastore.orderFlags["order-token-1"])
	assert.Equal(t, 1, datastore.transactions)
	assert.Equal(t, OrderStatusCompleted, datastore.lastTxStatus)
	assert.Zero(t, datastore.activations)
}

func TestReconcileCompletedMembership(t *testing.T) {
	datastore := newFakeDatastore()
	seedPending(datastore, "D1", TypeMembership)
	service := newTestService(datastore, &fakeGateway{conf: activeConf()})

	err := service.Reconcile(context.Background(), DepositNotification{DepositID: "D1", Status: "COMPLETED"}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, datastore.activations)
}

func TestReconcileFailedRecordsReason(t *testing.T) {
	datastore := newFakeDatastore()
	seedPending(datastore, "D1", TypeProduct)
	service := newTestService(datastore, &fakeGateway{conf: activeConf()})

	notification := DepositNotification{DepositID: "D1", Status: "FAILED"}
	notification.FailureReason = &struct {
		FailureCode    string `json:"failureCode"`
		FailureMessage string `json:"failureMessage"`
	}{FailureCode: "PAYER_REJECTED", FailureMessage: "payer rejected the prompt"}

	err := service.Reconcile(context.Background(), notification, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, datastore.payments["D1"].InternalStatus)
	require.NotNil(t, datastore.payments["D1"].FailureReason)
	assert.Contains(t, *datastore.payments["D1"].FailureReason, "PAYER_REJECTED")
	assert.Equal(t, "failed", datastore.orderStatuses["order-token-1"])
	assert.Equal(t, OrderStatusFailed, datastore.orderFlags["order-token-1"])
	// failed payments never append a transaction
	assert.Zero(t, datastore.transactions)
}

func TestReconcileIdempotentReplay(t *testing.T) {
	datastore := newFakeDatastore()
	seedPending(datastore, "D1", TypeMembership)
	service := newTestService(datastore, &fakeGateway{conf: activeConf()})

	notification := DepositNotification{DepositID: "D1", Status: "COMPLETED"}
	require.NoError(t, service.Reconcile(context.Background(), notification, []byte(`{}`)))
	require.NoError(t, service.Reconcile(context.Background(), notification, []byte(`{}`)))

	// replay did not double-apply side effects
	assert.Equal(t, 1, datastore.transactions)
	assert.Equal(t, 1, datastore.activations)
	assert.Equal(t, StatusCompleted, datastore.payments["D1"].InternalStatus)
}

func TestReconcileAfterTerminalIsNoOp(t *testing.T) {
	datastore := newFakeDatastore()
	seedPending(datastore, "D1", TypeProduct)
	datastore.payments["D1"].InternalStatus = StatusCompleted
	service := newTestService(datastore, &fakeGateway{conf: activeConf()})

	err := service.Reconcile(context.Background(), DepositNotification{DepositID: "D1", Status: "FAILED"}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, datastore.payments["D1"].InternalStatus)
	assert.Zero(t, datastore.transactions)
}

func TestReconcileUnknownStatusAcknowledged(t *testing.T) {
	datastore := newFakeDatastore()
	seedPending(datastore, "D1", TypeProduct)
	service := newTestService(datastore, &fakeGateway{conf: activeConf()})

	err := service.Reconcile(context.Background(), DepositNotification{DepositID: "D1", Status: "ENQUEUED"}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, datastore.payments["D1"].InternalStatus)
}

func TestReconcileMalformedPayload(t *testing.T) {
	service := newTestService(newFakeDatastore(), &fakeGateway{conf: activeConf()})

	err := service.Reconcile(context.Background(), DepositNotification{Status: "COMPLETED"}, []byte(`{}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	err = service.Reconcile(context.Background(), DepositNotification{DepositID: "D1"}, []byte(`{}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestReconcilePaymentNotFound(t *testing.T) {
	service := newTestService(newFakeDatastore(), &fakeGateway{conf: activeConf()})

	err := service.Reconcile(context.Background(), DepositNotification{DepositID: "D404", Status: "COMPLETED"}, []byte(`{}`))
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestReconcileMembershipFailureDoesNotRollBack(t *testing.T) {
	datastore := newFakeDatastore()
	seedPending(datastore, "D1", TypeMembership)
	datastore.membershipErr = errors.New("membership table offline")
	service := newTestService(datastore, &fakeGateway{conf: activeConf()})

	err := service.Reconcile(context.Background(), DepositNotification{DepositID: "D1", Status: "COMPLETED"}, []byte(`{}`))
	require.NoError(t, err)

	// order update committed despite the membership failure
	assert.Equal(t, "received", datastore.orderStatuses["order-token-1"])
	assert.Equal(t, StatusCompleted, datastore.payments["D1"].InternalStatus)
}

func TestPredictOperatorFallsBackToPrefixTable(t *testing.T) {
	service := newTestService(newFakeDatastore(), &fakeGateway{
		conf:       activeConf(),
		predictErr: errors.New("gateway unavailable"),
	})

	provider, msisdn, err := service.PredictOperator(context.Background(), "0976000000")
	require.NoError(t, err)
	assert.Equal(t, "AIRTEL_OAPI_ZMB", provider)
	assert.Equal(t, "260976000000", msisdn)
}

func TestPredictOperatorUsesGateway(t *testing.T) {
	service := newTestService(newFakeDatastore(), &fakeGateway{
		conf: activeConf(),
		predictResp: &pawapay.ProviderPrediction{
			Country:     "ZMB",
			Provider:    "AIRTEL_OAPI_ZMB",
			PhoneNumber: "260976000000",
		},
	})

	provider, msisdn, err := service.PredictOperator(context.Background(), "0976000000")
	require.NoError(t, err)
	assert.Equal(t, "AIRTEL_OAPI_ZMB", provider)
	assert.Equal(t, "260976000000", msisdn)
}
