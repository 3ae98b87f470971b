package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/microvest/backoffice/internal/services"
)

type CollectionHandler struct {
	service   *services.CollectionService
	validator *services.ValidationHelper
}

func NewCollectionHandler(service *services.CollectionService) *CollectionHandler {
	return &CollectionHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateCode issues a single-use collection code for an expected repayment
// @Summary Generate collection code
// @Description Issue a cryptographically secure single-use code a teller or field agent can redeem for a loan repayment
// @Tags collections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{loanId=int,amount=int64,method=string} true "Collection code request"
// @Success 201 {object} services.CollectionCode
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /collections/codes [post]
func (h *CollectionHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		LoanID int    `json:"loanId" validate:"required,gt=0"`
		Amount int64  `json:"amount" validate:"required,gt=0"`
		Method string `json:"method" validate:"required,oneof=CASH BANK"`
		WithQR bool   `json:"withQr,omitempty"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		log.Printf("[COLLECT] GenerateCode - Decode error: %v", err)
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	code, err := h.service.GenerateCode(r.Context(), actor, req.LoanID, req.Amount, req.Method)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	response := map[string]any{
		"success":   true,
		"reference": code.Reference,
		"code":      code.Code,
		"expiresAt": code.ExpiresAt,
	}
	if req.WithQR {
		qrImage, err := h.service.GenerateQRImage(code.Code)
		if err != nil {
			log.Printf("[COLLECT] GenerateCode - QR render failed: %v", err)
			services.SendErrorResponse(w, "Failed to render QR image", http.StatusInternalServerError, nil)
			return
		}
		response["qrImage"] = qrImage
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// RedeemCode consumes a collection code and posts the repayment
// @Summary Redeem collection code
// @Description Validate and consume a single-use collection code, posting the repayment it stands for
// @Tags collections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{code=string} true "Code redemption request"
// @Success 200 {object} services.CollectionCode
// @Failure 400 {object} services.ErrorResponse
// @Router /collections/redeem [post]
func (h *CollectionHandler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Code string `json:"code" validate:"required,min=4,max=16"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	code, err := h.service.Redeem(r.Context(), actor, req.Code)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(code)
}

// LoanCodes lists a loan's collection codes with the plain code masked
// @Summary List loan collection codes
// @Tags collections
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Success 200 {array} services.CollectionCode
// @Failure 400 {object} services.ErrorResponse
// @Router /collections/loans/{loanId}/codes [get]
func (h *CollectionHandler) LoanCodes(w http.ResponseWriter, r *http.Request) {
	loanID, err := strconv.Atoi(chi.URLParam(r, "loanId"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid loan id", http.StatusBadRequest, nil)
		return
	}

	codes, err := h.service.LoanCodes(r.Context(), loanID)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	if codes == nil {
		codes = []services.CollectionCode{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(codes)
}

func (h *CollectionHandler) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case err == services.ErrForbidden:
		services.SendErrorResponse(w, err.Error(), http.StatusForbidden, nil)
	case services.IsValidation(err):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case services.IsNotFound(err):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	default:
		log.Printf("[COLLECT] Store error: %v", err)
		services.SendErrorResponse(w, "Operation failed, please retry", http.StatusServiceUnavailable, nil)
	}
}
