package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindExternalService:
		return http.StatusServiceUnavailable
	case apperr.KindGenerationFailed, apperr.KindStructuralValidation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as a dto.ErrorResponse. Causes are logged and only
// echoed to the client for generation failures.
func RespondError(ctx *gin.Context, op string, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			appErr = apperr.NotFound(apperr.CodeTestNotFound, "not found")
		} else {
			appErr = apperr.Wrap(apperr.KindInternal, apperr.CodeInternal, "internal server error", err)
		}
	}

	status := StatusFor(appErr.Kind)
	resp := dto.ErrorResponse{Code: appErr.Code, Message: appErr.Msg, Field: appErr.Field}
	if appErr.Kind == apperr.KindGenerationFailed && appErr.Err != nil {
		resp.Details = []string{appErr.Err.Error()}
	}
	if status >= http.StatusInternalServerError {
		log.Ctx(ctx.Request.Context()).Error().Err(err).Str("op", op).Int("status", status).Msg("Request failed")
	} else {
		log.Ctx(ctx.Request.Context()).Warn().Err(err).Str("op", op).Int("status", status).Msg("Request rejected")
	}
	ctx.AbortWithStatusJSON(status, resp)
}

// RespondBindError reports a request body or query that could not be bound.
func RespondBindError(ctx *gin.Context, op string, err error) {
	log.Ctx(ctx.Request.Context()).Warn().Err(err).Str("op", op).Msg("Failed to bind request")
	ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
		Code:    apperr.CodeInvalidRequest,
		Message: "Invalid request",
		Details: []string{err.Error()},
	})
}

// ParseIDParam reads a positive numeric path parameter.
func ParseIDParam(ctx *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || v == 0 {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    apperr.CodeInvalidRequest,
			Message: "Invalid " + name + " format",
			Field:   name,
		})
		return 0, false
	}
	return uint(v), true
}

// Healthz godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} dto.MessageResponse
// @Router /healthz [get]
func Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "ok"})
}
