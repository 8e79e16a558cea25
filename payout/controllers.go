package payout

import (
	"errors"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi"
	uuid "github.com/satori/go.uuid"

	"github.com/myzuwa/pawapay-go/libs/handlers"
	"github.com/myzuwa/pawapay-go/libs/requestutils"
	_ "github.com/myzuwa/pawapay-go/libs/validators"
	"github.com/myzuwa/pawapay-go/middleware"
)

// Router for payout endpoints, all behind simple token auth
func Router(service *Service) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.SimpleTokenAuthorizedOnly)
	r.Method("POST", "/", middleware.InstrumentHandler("ProcessPayout", ProcessPayout(service)))
	r.Method("POST", "/bulk", middleware.InstrumentHandler("ProcessBulkPayouts", ProcessBulkPayouts(service)))
	r.Method("GET", "/{payoutID}", middleware.InstrumentHandler("CheckPayoutStatus", CheckPayoutStatus(service)))
	r.Method("POST", "/{payoutID}/resend-callback", middleware.InstrumentHandler("ResendCallback", ResendCallback(service)))
	return r
}

// ProcessPayoutRequest identifies the earnings record to disburse
type ProcessPayoutRequest struct {
	EarningsID uuid.UUID `json:"earningsId" valid:"requiredUUID"`
	CreatedBy  string    `json:"createdBy" valid:"required"`
}

// ProcessBulkPayoutsRequest identifies a batch of earnings records
type ProcessBulkPayoutsRequest struct {
	EarningsIDs []uuid.UUID `json:"earningsIds" valid:"-"`
	CreatedBy   string      `json:"createdBy" valid:"required"`
}

// ProcessPayout is the handler for disbursing a single earnings record
func ProcessPayout(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		var req ProcessPayoutRequest
		err := requestutils.ReadJSON(r.Context(), r.Body, &req)
		if err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		_, err = govalidator.ValidateStruct(req)
		if err != nil {
			return handlers.WrapValidationError(err)
		}

		payout, err := service.ProcessPayout(r.Context(), req.EarningsID, req.CreatedBy)
		if err != nil {
			return mapPayoutError(err)
		}

		return handlers.RenderContent(r.Context(), payout, w, http.StatusCreated)
	})
}

// ProcessBulkPayouts is the handler for disbursing a batch of earnings records
func ProcessBulkPayouts(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		var req ProcessBulkPayoutsRequest
		err := requestutils.ReadJSON(r.Context(), r.Body, &req)
		if err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		_, err = govalidator.ValidateStruct(req)
		if err != nil {
			return handlers.WrapValidationError(err)
		}
		if len(req.EarningsIDs) == 0 {
			return handlers.ValidationError("request body", map[string]interface{}{
				"earningsIds": "at least one earnings id is required",
			})
		}

		result := service.ProcessBulkPayouts(r.Context(), req.EarningsIDs, req.CreatedBy)
		return handlers.RenderContent(r.Context(), result, w, http.StatusOK)
	})
}

// CheckPayoutStatus is the handler for polling a payout's status
func CheckPayoutStatus(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		payoutID := chi.URLParam(r, "payoutID")
		if payoutID == "" {
			return handlers.ValidationError("url parameter", map[string]interface{}{
				"payoutID": "payoutID is required",
			})
		}

		payout, err := service.CheckPayoutStatus(r.Context(), payoutID)
		if err != nil {
			return mapPayoutError(err)
		}

		return handlers.RenderContent(r.Context(), payout, w, http.StatusOK)
	})
}

// ResendCallback is the handler for requesting webhook re-delivery
func ResendCallback(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		payoutID := chi.URLParam(r, "payoutID")
		if payoutID == "" {
			return handlers.ValidationError("url parameter", map[string]interface{}{
				"payoutID": "payoutID is required",
			})
		}

		if err := service.ResendCallback(r.Context(), payoutID); err != nil {
			return mapPayoutError(err)
		}

		return handlers.RenderContent(r.Context(), map[string]string{
			"message": "Callback resend requested",
		}, w, http.StatusOK)
	})
}

func mapPayoutError(err error) *handlers.AppError {
	switch {
	case errors.Is(err, ErrPayoutAlreadyInitiated):
		return handlers.WrapError(err, "A payout already exists for this earnings record", http.StatusConflict)
	case errors.Is(err, ErrEarningsNotFound), errors.Is(err, ErrPayoutNotFound):
		return handlers.WrapError(err, "Record not found", http.StatusNotFound)
	default:
		return handlers.WrapError(err, "Error processing payout", http.StatusInternalServerError)
	}
}
