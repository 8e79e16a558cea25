package payment

import (
	"context"
	"errors"

	uuid "github.com/satori/go.uuid"

	"github.com/myzuwa/pawapay-go/libs/clients/pawapay"
	"github.com/myzuwa/pawapay-go/libs/cryptography"
	errorutils "github.com/myzuwa/pawapay-go/libs/errors"
	"github.com/myzuwa/pawapay-go/libs/logging"
	"github.com/myzuwa/pawapay-go/libs/phone"
	"github.com/myzuwa/pawapay-go/operator"
)

var (
	// ErrMalformedPayload is returned when a webhook body is missing required fields
	ErrMalformedPayload = errors.New("payment: webhook payload is missing depositId or status")
	// ErrGatewayRejected is returned when deposit initiation was not accepted
	ErrGatewayRejected = errors.New("payment: gateway rejected the deposit")
)

const paymentMethod = "pawapay"

// Service contains datastore and gateway client connections along with the
// validation and verification collaborators for the deposit flow
type Service struct {
	Datastore Datastore
	client    pawapay.Client
	directory *operator.Directory
	validator *RequestValidator
	secret    cryptography.WebhookSecret
	country   string
}

// InitService creates a service using the passed datastore and clients configured from the environment
func InitService(datastore Datastore, client pawapay.Client, directory *operator.Directory, secret cryptography.WebhookSecret, country string) *Service {
	return &Service{
		Datastore: datastore,
		client:    client,
		directory: directory,
		validator: NewRequestValidator(directory),
		secret:    secret,
		country:   country,
	}
}

// VerifyWebhook checks the claimed signature against the raw request body.
// It must be called on the exact bytes received, before any JSON parsing.
func (service *Service) VerifyWebhook(rawBody []byte, signature string) bool {
	return service.secret.Verify(rawBody, signature)
}

// SubmitPayment validates a proposed deposit and initiates it with the gateway.
// A local record is only created once the gateway reports ACCEPTED, so a failed
// initiation leaves no trace and is safe to retry.
func (service *Service) SubmitPayment(ctx context.Context, req Request) (*PendingPayment, error) {
	logger := logging.Logger(ctx, "payment.SubmitPayment")

	if err := service.validator.Validate(ctx, req); err != nil {
		return nil, err
	}

	depositID := uuid.NewV4().String()
	logging.AddDepositIDToContext(ctx, depositID)

	resp, err := service.client.CreateDeposit(ctx, pawapay.DepositRequest{
		DepositID: depositID,
		Amount:    req.Amount.Amount(),
		Currency:  req.Amount.Currency(),
		Payer: pawapay.Party{
			Type: "MMO",
			AccountDetails: pawapay.AccountDetails{
				Provider:    req.OperatorCode,
				PhoneNumber: req.MSISDN,
			},
		},
	})
	if err != nil {
		return nil, errorutils.Wrap(err, "error initiating deposit with gateway")
	}

	if resp.Status != pawapay.StatusAccepted {
		logger.Warn().Str("status", resp.Status).Msg("deposit not accepted")
		message := "deposit was not accepted by the gateway"
		if resp.FailureReason != nil && resp.FailureReason.FailureMessage != "" {
			message = resp.FailureReason.FailureMessage
		}
		return nil, errorutils.Wrap(ErrGatewayRejected, message)
	}

	pending := &PendingPayment{
		DepositID:      depositID,
		PaymentToken:   req.PaymentToken,
		PaymentType:    req.PaymentType,
		Currency:       req.Amount.Currency(),
		PaymentAmount:  req.Amount.Decimal(),
		InternalStatus: StatusPending,
		PawaPayStatus:  resp.Status,
	}
	if err := service.Datastore.InsertPendingPayment(ctx, pending); err != nil {
		return nil, errorutils.Wrap(err, "error recording accepted deposit")
	}

	logger.Info().Str("paymentToken", req.PaymentToken).Msg("deposit accepted")
	return pending, nil
}

// PredictOperator normalizes a raw phone number and resolves which provider
// serves it. The gateway prediction is best effort, the local prefix table is
// the fallback when the upstream call fails.
func (service *Service) PredictOperator(ctx context.Context, rawPhone string) (string, string, error) {
	msisdn, err := phone.Normalize(rawPhone, service.country)
	if err != nil {
		return "", "", err
	}

	prediction, err := service.client.PredictProvider(ctx, msisdn)
	if err == nil && prediction.Provider != "" {
		return prediction.Provider, prediction.PhoneNumber, nil
	}
	if err != nil {
		logging.Logger(ctx, "payment.PredictOperator").Warn().Err(err).Msg("gateway prediction unavailable, using prefix table")
	}

	provider, err := phone.PredictProvider(msisdn, service.country)
	if err != nil {
		return "", "", err
	}
	return provider, msisdn, nil
}

// Reconcile drives a pre-verified webhook notification through the payment
// state machine. It is idempotent under at-least-once delivery: replays of a
// terminal payment acknowledge without re-applying side effects.
func (service *Service) Reconcile(ctx context.Context, notification DepositNotification, rawPayload []byte) error {
	logger := logging.Logger(ctx, "payment.Reconcile")

	if notification.DepositID == "" || notification.Status == "" {
		return ErrMalformedPayload
	}
	logging.AddDepositIDToContext(ctx, notification.DepositID)

	// audit trail, best effort. A duplicate processed event short-circuits.
	eventID := notification.DepositID + ":" + notification.Status
	fresh, err := service.Datastore.InsertWebhookEvent(ctx, &WebhookEvent{
		EventID:   eventID,
		EventType: "deposit." + notification.Status,
		Payload:   rawPayload,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to record webhook event")
	} else if !fresh {
		logger.Info().Str("eventId", eventID).Msg("duplicate webhook delivery acknowledged")
		return nil
	}

	pending, err := service.Datastore.GetPendingPaymentByDepositID(ctx, notification.DepositID)
	if err != nil {
		return err
	}

	if IsTerminal(pending.InternalStatus) {
		logger.Info().Str("status", pending.InternalStatus).Msg("replay of terminal payment acknowledged")
		return nil
	}

	next, changed := NextStatus(pending.InternalStatus, notification.Status)
	if !changed {
		logger.Warn().Str("incoming", notification.Status).Str("current", pending.InternalStatus).Msg("unhandled gateway status acknowledged")
		return nil
	}

	var failureReason *string
	if notification.FailureReason != nil {
		reason := notification.FailureReason.FailureCode + ": " + notification.FailureReason.FailureMessage
		failureReason = &reason
	}

	affected, err := service.Datastore.UpdatePaymentStatus(ctx, notification.DepositID, next, notification.Status, failureReason)
	if err != nil {
		return errorutils.Wrap(err, "error updating payment status")
	}
	if affected == 0 {
		// lost the race to a concurrent delivery that reached a terminal state first
		logger.Info().Msg("payment already finalized by a concurrent delivery")
		return nil
	}

	switch next {
	case StatusCompleted:
		service.applyCompletionEffects(ctx, pending)
	case StatusFailed:
		if _, err := service.Datastore.MarkOrderPaymentStatus(ctx, pending.PaymentToken, "failed", OrderStatusFailed, paymentMethod, pending.DepositID); err != nil {
			logger.Error().Err(err).Msg("failed to mark order as failed")
		}
	}

	if err := service.Datastore.MarkWebhookEventProcessed(ctx, eventID); err != nil {
		logger.Error().Err(err).Msg("failed to flag webhook event processed")
	}
	return nil
}

// applyCompletionEffects marks the order paid, appends a transaction and
// activates memberships. The transaction append is gated on the order update
// actually changing a row so replays cannot double-append. Membership
// activation is best effort and never rolls back the order update.
func (service *Service) applyCompletionEffects(ctx context.Context, pending *PendingPayment) {
	logger := logging.Logger(ctx, "payment.applyCompletionEffects")

	affected, err := service.Datastore.MarkOrderPaymentStatus(ctx, pending.PaymentToken, "received", OrderStatusCompleted, paymentMethod, pending.DepositID)
	if err != nil {
		logger.Error().Err(err).Str("paymentToken", pending.PaymentToken).Msg("failed to mark order as received")
		return
	}
	if affected > 0 {
		if err := service.Datastore.InsertOrderTransaction(ctx, pending.PaymentToken, pending.DepositID, pending.Currency, pending.PaymentAmount.StringFixed(2), OrderStatusCompleted); err != nil {
			logger.Error().Err(err).Msg("failed to append order transaction")
		}
	}

	if pending.PaymentType == TypeMembership {
		if err := service.Datastore.ActivateMembership(ctx, pending.PaymentToken); err != nil {
			logger.Error().Err(err).Str("paymentToken", pending.PaymentToken).Msg("failed to activate membership")
		}
	}
}
