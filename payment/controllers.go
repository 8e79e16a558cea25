package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi"

	"github.com/myzuwa/pawapay-go/libs/handlers"
	"github.com/myzuwa/pawapay-go/libs/money"
	"github.com/myzuwa/pawapay-go/libs/requestutils"
	_ "github.com/myzuwa/pawapay-go/libs/validators"
	"github.com/myzuwa/pawapay-go/middleware"
)

// SignatureHeader carries the hex hmac-sha256 of the raw webhook body
const SignatureHeader = "X-PawaPay-Signature"

// Router for payment endpoints
func Router(service *Service) chi.Router {
	r := chi.NewRouter()
	r.Method("POST", "/", middleware.InstrumentHandler("SubmitPayment", SubmitPayment(service)))
	r.Method("GET", "/predict-operator", middleware.InstrumentHandler("PredictOperator", PredictOperator(service)))
	r.Method("POST", "/webhook", middleware.InstrumentHandler("HandleWebhook", HandleWebhook(service)))
	return r
}

// SubmitPaymentRequest includes the fields of a payment form submission
type SubmitPaymentRequest struct {
	PaymentAmount string      `json:"payment_amount" valid:"required"`
	Currency      string      `json:"currency" valid:"currencycode"`
	MSISDN        string      `json:"msisdn" valid:"msisdn"`
	PaymentType   string      `json:"payment_type" valid:"paymenttype"`
	PaymentToken  string      `json:"payment_token" valid:"required"`
	OperatorCode  string      `json:"operator" valid:"required"`
	OrderItems    []OrderItem `json:"order_items" valid:"-"`
}

// SubmitPaymentResponse is sent back to the payment form
type SubmitPaymentResponse struct {
	Result    int    `json:"result"`
	Message   string `json:"message"`
	DepositID string `json:"deposit_id,omitempty"`
}

// SubmitPayment is the handler for initiating a deposit
func SubmitPayment(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		var req SubmitPaymentRequest
		err := requestutils.ReadJSON(r.Context(), r.Body, &req)
		if err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		_, err = govalidator.ValidateStruct(req)
		if err != nil {
			return handlers.WrapValidationError(err)
		}

		amount, err := money.New(req.PaymentAmount, req.Currency)
		if err != nil {
			return handlers.ValidationError("request body", map[string]interface{}{
				"payment_amount": "must be a positive amount with at most 2 decimals",
			})
		}
		if !amount.IsPositive() {
			return handlers.ValidationError("request body", map[string]interface{}{
				"payment_amount": "must be greater than zero",
			})
		}

		pending, err := service.SubmitPayment(r.Context(), Request{
			Amount:       amount,
			MSISDN:       req.MSISDN,
			OperatorCode: req.OperatorCode,
			PaymentType:  req.PaymentType,
			PaymentToken: req.PaymentToken,
			OrderItems:   req.OrderItems,
		})
		if err != nil {
			var vf *ValidationFailure
			if errors.As(err, &vf) {
				return handlers.WrapError(err, vf.Message, http.StatusBadRequest)
			}
			if errors.Is(err, ErrGatewayRejected) {
				return handlers.RenderContent(r.Context(), SubmitPaymentResponse{
					Result:  0,
					Message: err.Error(),
				}, w, http.StatusOK)
			}
			return handlers.WrapError(err, "Error initiating payment", http.StatusInternalServerError)
		}

		return handlers.RenderContent(r.Context(), SubmitPaymentResponse{
			Result:    1,
			Message:   "Payment initiated successfully",
			DepositID: pending.DepositID,
		}, w, http.StatusOK)
	})
}

// PredictOperatorResponse reports the provider serving a phone number
type PredictOperatorResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Provider *struct {
		Code        string `json:"code"`
		PhoneNumber string `json:"phoneNumber"`
	} `json:"provider,omitempty"`
}

// PredictOperator is the handler for resolving a phone number to a provider
func PredictOperator(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		rawPhone := r.URL.Query().Get("phone")
		if rawPhone == "" {
			return handlers.ValidationError("query", map[string]interface{}{
				"phone": "phone parameter is required",
			})
		}

		provider, msisdn, err := service.PredictOperator(r.Context(), rawPhone)
		if err != nil {
			return handlers.RenderContent(r.Context(), PredictOperatorResponse{
				Success: false,
				Error:   err.Error(),
			}, w, http.StatusOK)
		}

		resp := PredictOperatorResponse{Success: true}
		resp.Provider = &struct {
			Code        string `json:"code"`
			PhoneNumber string `json:"phoneNumber"`
		}{Code: provider, PhoneNumber: msisdn}
		return handlers.RenderContent(r.Context(), resp, w, http.StatusOK)
	})
}

// WebhookResponse acknowledges a processed notification
type WebhookResponse struct {
	Message string `json:"message"`
}

// HandleWebhook is the handler for gateway status notifications.
// Signature verification runs on the raw bytes before any JSON parsing.
func HandleWebhook(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		rawBody, err := requestutils.Read(r.Context(), r.Body)
		if err != nil {
			return handlers.WrapError(err, "Error reading request body", http.StatusBadRequest)
		}

		if !service.VerifyWebhook(rawBody, r.Header.Get(SignatureHeader)) {
			return handlers.WrapError(nil, "Invalid webhook signature", http.StatusUnauthorized)
		}

		var notification DepositNotification
		if err := json.Unmarshal(rawBody, &notification); err != nil {
			return handlers.WrapError(err, "Error in webhook body", http.StatusBadRequest)
		}

		if err := service.Reconcile(r.Context(), notification, rawBody); err != nil {
			if errors.Is(err, ErrMalformedPayload) {
				return handlers.WrapError(err, "Webhook payload is malformed", http.StatusBadRequest)
			}
			if errors.Is(err, ErrPaymentNotFound) {
				return handlers.WrapError(err, "No payment matches this notification", http.StatusNotFound)
			}
			return handlers.WrapError(err, "Error processing webhook", http.StatusInternalServerError)
		}

		return handlers.RenderContent(r.Context(), WebhookResponse{
			Message: "Webhook processed successfully",
		}, w, http.StatusOK)
	})
}
