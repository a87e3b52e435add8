package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"escolapay/internal/models"
	"escolapay/internal/provider"
	"escolapay/internal/repository"
)

// LocalPaymentIDHeader carries the local record id alongside the provider's
// verbatim charge object in create responses.
const LocalPaymentIDHeader = "X-Payment-Id"

// PaymentHandler serves charge creation and lookup.
type PaymentHandler struct {
	payments *repository.PaymentRepository
	flags    *repository.ReconciliationRepository
	billing  *provider.Client
	validate *validator.Validate
	logger   *zap.Logger
}

func NewPaymentHandler(
	payments *repository.PaymentRepository,
	flags *repository.ReconciliationRepository,
	billing *provider.Client,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		flags:    flags,
		billing:  billing,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateCharge handles POST /payments/create. One synchronous provider call,
// no retry; the provider's charge object is returned verbatim and the local
// record is persisted as PENDING before replying.
func (h *PaymentHandler) CreateCharge(c echo.Context) error {
	var req models.CreateChargeRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "missing or malformed fields: "+err.Error())
	}

	localID := uuid.NewString()
	idempotencyKey := uuid.NewString()

	charge, err := h.billing.CreateCharge(c.Request().Context(), provider.ChargeRequest{
		Customer:          req.CustomerProviderID,
		BillingType:       req.BillingMethod,
		DueDate:           req.DueDate,
		Value:             req.Amount,
		Description:       req.Description,
		ExternalReference: idempotencyKey,
	})
	if err != nil {
		return h.mapProviderError(c, err)
	}

	billingMethod := req.BillingMethod
	if billingMethod == "" {
		billingMethod = h.billing.DefaultBillingType()
	}

	record := &models.Payment{
		ID:                 localID,
		ProviderChargeID:   charge.ID,
		CustomerProviderID: req.CustomerProviderID,
		IdempotencyKey:     idempotencyKey,
		Amount:             req.Amount,
		DueDate:            req.DueDate,
		Description:        req.Description,
		BillingMethod:      billingMethod,
		Status:             models.StatusPending,
	}
	if err := h.payments.Create(record); err != nil {
		// The charge exists at the provider but not locally; leave a trail
		// so the sweeper or an operator can pick it up.
		h.logger.Error("failed to persist payment record",
			zap.String("charge_id", charge.ID), zap.Error(err))
		_ = h.flags.Flag(&models.ReconciliationFlag{
			ProviderChargeID: charge.ID,
			EventType:        "CHARGE_CREATED",
			RawPayload:       string(charge.Raw),
			Reason:           "charge created at provider but local persist failed",
		})
		return errorResponse(c, http.StatusInternalServerError, "charge created but could not be recorded")
	}

	h.logger.Info("charge created",
		zap.String("payment_id", localID),
		zap.String("charge_id", charge.ID),
		zap.Float64("amount", req.Amount))

	c.Response().Header().Set(LocalPaymentIDHeader, localID)
	return c.JSONBlob(http.StatusOK, charge.Raw)
}

// GetPayment handles GET /payments/:id. Accepts either the local id or the
// provider charge id.
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	id := c.Param("id")
	record, err := h.payments.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record, err = h.payments.FindByChargeID(id)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorResponse(c, http.StatusNotFound, "payment not found")
	}
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, "store unavailable")
	}
	return successResponse(c, "ok", record)
}

func (h *PaymentHandler) mapProviderError(c echo.Context, err error) error {
	var rejected *provider.RejectedError
	switch {
	case errors.Is(err, provider.ErrInvalidRequest):
		return errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &rejected):
		h.logger.Warn("provider rejected charge", zap.Int("status", rejected.StatusCode))
		if len(rejected.Body) > 0 {
			return c.JSONBlob(rejected.StatusCode, rejected.Body)
		}
		return errorResponse(c, rejected.StatusCode, "provider rejected the charge")
	default:
		h.logger.Error("provider unreachable", zap.Error(err))
		return errorResponse(c, http.StatusBadGateway, "billing provider unavailable")
	}
}
