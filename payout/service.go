package payout

import (
	"context"

	uuid "github.com/satori/go.uuid"

	"github.com/myzuwa/pawapay-go/libs/clients/pawapay"
	errorutils "github.com/myzuwa/pawapay-go/libs/errors"
	"github.com/myzuwa/pawapay-go/libs/logging"
)

const payoutIDPrefix = "MZ-PAY-"

// Service contains datastore and gateway client connections for vendor disbursements
type Service struct {
	Datastore Datastore
	client    pawapay.Client
}

// InitService creates a service using the passed datastore and gateway client
func InitService(datastore Datastore, client pawapay.Client) *Service {
	return &Service{
		Datastore: datastore,
		client:    client,
	}
}

// ProcessPayout disburses one earnings record to its vendor. Each earnings
// record is consumed at most once, duplicates are rejected before any gateway
// call and the unique index backs the check when two requests race.
func (service *Service) ProcessPayout(ctx context.Context, earningsID uuid.UUID, createdBy string) (*VendorPayout, error) {
	logger := logging.Logger(ctx, "payout.ProcessPayout")

	// checked before the earnings lookup so a retry on consumed earnings
	// reports the payout that consumed them rather than a missing record
	existing, err := service.Datastore.GetPayoutByEarningsID(ctx, earningsID)
	if err != nil {
		return nil, errorutils.Wrap(err, "error checking for an existing payout")
	}
	if existing != nil {
		return nil, ErrPayoutAlreadyInitiated
	}

	earnings, err := service.Datastore.GetEarnings(ctx, earningsID)
	if err != nil {
		return nil, err
	}

	payoutID := payoutIDPrefix + uuid.NewV4().String()
	logging.AddPayoutIDToContext(ctx, payoutID)

	resp, err := service.client.CreatePayout(ctx, pawapay.PayoutRequest{
		PayoutID: payoutID,
		Amount:   earnings.Amount.StringFixed(2),
		Currency: earnings.Currency,
		Recipient: pawapay.Party{
			Type: "MMO",
			AccountDetails: pawapay.AccountDetails{
				Provider:    earnings.Operator,
				PhoneNumber: earnings.MSISDN,
			},
		},
	})
	if err != nil {
		return nil, errorutils.Wrap(err, "error initiating payout with gateway")
	}

	if resp.Status != pawapay.StatusAccepted {
		message := "payout was not accepted by the gateway"
		if resp.FailureReason != nil && resp.FailureReason.FailureMessage != "" {
			message = resp.FailureReason.FailureMessage
		}
		logger.Warn().Str("status", resp.Status).Msg("payout not accepted")
		return nil, errorutils.New(nil, message, resp.FailureReason)
	}

	payout := &VendorPayout{
		PayoutID:       payoutID,
		EarningsID:     earnings.ID,
		VendorID:       earnings.VendorID,
		Amount:         earnings.Amount,
		Currency:       earnings.Currency,
		PawaPayStatus:  resp.Status,
		InternalStatus: StatusPending,
		CreatedBy:      createdBy,
	}
	if err := service.Datastore.InsertPayout(ctx, payout); err != nil {
		return nil, err
	}

	logger.Info().Str("earningsId", earningsID.String()).Msg("payout accepted")
	return payout, nil
}

// ProcessBulkPayouts runs ProcessPayout per earnings record, isolating each
// item's failure so one bad record never aborts the batch
func (service *Service) ProcessBulkPayouts(ctx context.Context, earningsIDs []uuid.UUID, createdBy string) BulkResult {
	result := BulkResult{
		Succeeded: []string{},
		Failed:    []BulkItemFailure{},
	}
	for _, earningsID := range earningsIDs {
		payout, err := service.ProcessPayout(ctx, earningsID, createdBy)
		if err != nil {
			result.Failed = append(result.Failed, BulkItemFailure{
				EarningsID: earningsID,
				Error:      err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, payout.PayoutID)
	}
	return result
}

// CheckPayoutStatus polls the gateway for a payout's current status and
// advances the local record when it moved
func (service *Service) CheckPayoutStatus(ctx context.Context, payoutID string) (*VendorPayout, error) {
	logger := logging.Logger(ctx, "payout.CheckPayoutStatus")

	payout, err := service.Datastore.GetPayoutByPayoutID(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	resp, err := service.client.GetPayoutStatus(ctx, payoutID)
	if err != nil {
		return nil, errorutils.Wrap(err, "error fetching payout status from gateway")
	}

	var next string
	switch resp.Status {
	case pawapay.StatusCompleted:
		next = StatusCompleted
	case pawapay.StatusFailed, pawapay.StatusRejected:
		next = StatusFailed
	default:
		return payout, nil
	}

	var failureReason *string
	if resp.FailureReason != nil {
		reason := resp.FailureReason.FailureCode + ": " + resp.FailureReason.FailureMessage
		failureReason = &reason
	}

	if _, err := service.Datastore.UpdatePayoutStatus(ctx, payoutID, next, resp.Status, failureReason); err != nil {
		return nil, errorutils.Wrap(err, "error updating payout status")
	}

	logger.Info().Str("status", next).Msg("payout status advanced")
	return service.Datastore.GetPayoutByPayoutID(ctx, payoutID)
}

// ResendCallback asks the gateway to re-deliver the final webhook for a payout
func (service *Service) ResendCallback(ctx context.Context, payoutID string) error {
	if _, err := service.Datastore.GetPayoutByPayoutID(ctx, payoutID); err != nil {
		return err
	}
	if _, err := service.client.ResendPayoutCallback(ctx, payoutID); err != nil {
		return errorutils.Wrap(err, "error requesting callback resend")
	}
	return nil
}
