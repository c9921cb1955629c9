package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID returns the id set by middleware.RequestID, falling back to
// the inbound header when the middleware is not installed
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError maps err onto the API error envelope. Domain errors keep their
// code and message; anything else is logged and reported as internal.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	domainErr, ok := shared.AsDomainError(err)
	if !ok {
		logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInternal,
			"An unexpected error occurred",
			requestID,
		))
		return
	}

	code := dto.NormalizeErrorCode(domainErr.Code)
	status := dto.GetHTTPStatus(code)
	resp := dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID)
	resp.Error.Context = errorContext(err)

	var validationErr *shared.ValidationError
	if code == dto.ErrCodeValidation && errors.As(err, &validationErr) && validationErr.Field != "" {
		resp.Error.Details = []dto.ValidationDetail{{Field: validationErr.Field, Message: domainErr.Message}}
	}

	if status >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("Request failed",
			zap.String("code", code),
			zap.Error(err),
		)
	}
	c.JSON(status, resp)
}

// errorContext lists the identifiers a client needs to recover from err
func errorContext(err error) map[string]string {
	var partial *shared.PartialCompletionError
	if errors.As(err, &partial) {
		ctx := map[string]string{
			"completed_step": partial.CompletedStep,
			"failed_step":    partial.FailedStep,
			"document_type":  partial.DocumentType,
			"document_id":    partial.DocumentID.String(),
		}
		if partial.PaymentID != uuid.Nil {
			ctx["payment_id"] = partial.PaymentID.String()
		}
		return ctx
	}

	var stale *shared.StaleWriteError
	if errors.As(err, &stale) {
		return map[string]string{
			"document_type":    stale.DocumentType,
			"document_id":      stale.DocumentID.String(),
			"expected_version": strconv.Itoa(stale.ExpectedVersion),
		}
	}

	var overrun *shared.AllocationOverrunError
	if errors.As(err, &overrun) {
		return map[string]string{
			"invoice_id": overrun.InvoiceID.String(),
			"requested":  overrun.Requested.String(),
			"debt":       overrun.Debt.String(),
		}
	}
	return nil
}

// uuidParam parses a path parameter, answering 400 when malformed
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes and validates the body, answering 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}
