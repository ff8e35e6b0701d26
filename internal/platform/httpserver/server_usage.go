package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	usageerrors "herald/contexts/eventing/usage-metering/domain/errors"
	usagehttp "herald/contexts/eventing/usage-metering/transport/http"
)

// handleRecordUsage godoc
//
//	@Summary	Record one usage sample
//	@Tags		usage
//	@Accept		json
//	@Produce	json
//	@Param		request	body		usagehttp.RecordUsageRequest	true	"sample to record"
//	@Success	201		{object}	usagehttp.RecordUsageResponse
//	@Failure	400		{object}	usagehttp.ErrorResponse
//	@Router		/usage/records [post]
func (s *Server) handleRecordUsage(w http.ResponseWriter, r *http.Request) {
	var req usagehttp.RecordUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeUsageError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.usage.Handler.RecordUsageHandler(r.Context(), req)
	if err != nil {
		writeUsageDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListRollups(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeUsageError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.usage.Handler.ListRollupsHandler(r.Context(), query.Get("tenant_id"), limit)
	if err != nil {
		writeUsageDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeUsageError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, usagehttp.ErrorResponse{Code: code, Message: message})
}

func writeUsageDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usageerrors.ErrTenantIDRequired),
		errors.Is(err, usageerrors.ErrMeterRequired),
		errors.Is(err, usageerrors.ErrQuantityInvalid),
		errors.Is(err, usageerrors.ErrRecordedAtInvalid):
		writeUsageError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeUsageError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
