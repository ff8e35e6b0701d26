package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	outboxerrors "herald/contexts/eventing/outbox-engine/domain/errors"
	outboxhttp "herald/contexts/eventing/outbox-engine/transport/http"
)

// handleEnqueueEvent godoc
//
//	@Summary		Enqueue an outbox event
//	@Description	Stores one event row for asynchronous delivery. Duplicate submissions are absorbed.
//	@Tags			outbox
//	@Accept			json
//	@Produce		json
//	@Param			request	body		outboxhttp.EnqueueEventRequest	true	"event to enqueue"
//	@Success		200		{object}	outboxhttp.EnqueueEventResponse
//	@Failure		400		{object}	outboxhttp.ErrorResponse
//	@Router			/outbox/events [post]
func (s *Server) handleEnqueueEvent(w http.ResponseWriter, r *http.Request) {
	var req outboxhttp.EnqueueEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutboxError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.outbox.Handler.EnqueueEventHandler(r.Context(), req)
	if err != nil {
		writeOutboxDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// handleOutboxStats godoc
//
//	@Summary	Outbox backlog counters per status
//	@Tags		outbox
//	@Produce	json
//	@Success	200	{object}	outboxhttp.StatsResponse
//	@Router		/outbox/stats [get]
func (s *Server) handleOutboxStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.outbox.Handler.StatsHandler(r.Context())
	if err != nil {
		writeOutboxDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListFailed(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	resp, err := s.outbox.Handler.FailedEventsHandler(r.Context(), limit)
	if err != nil {
		writeOutboxDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDeadLetter(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	resp, err := s.outbox.Handler.DeadLetterEventsHandler(r.Context(), limit)
	if err != nil {
		writeOutboxDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCorrelationTrace(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.outbox.Handler.CorrelationTraceHandler(
		r.Context(),
		query.Get("tenant_id"),
		query.Get("correlation_id"),
	)
	if err != nil {
		writeOutboxDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req outboxhttp.CleanupRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeOutboxError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}
	resp, err := s.outbox.Handler.CleanupHandler(r.Context(), req)
	if err != nil {
		writeOutboxDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		writeOutboxError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return 0, false
	}
	return limit, true
}

func writeOutboxError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, outboxhttp.ErrorResponse{Code: code, Message: message})
}

func writeOutboxDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, outboxerrors.ErrTenantIDRequired),
		errors.Is(err, outboxerrors.ErrEventIDRequired),
		errors.Is(err, outboxerrors.ErrEventTypeRequired),
		errors.Is(err, outboxerrors.ErrPayloadRequired),
		errors.Is(err, outboxerrors.ErrPayloadNotJSON):
		writeOutboxError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, outboxerrors.ErrPayloadTooLarge):
		writeOutboxError(w, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
	case errors.Is(err, outboxerrors.ErrEventNotFound):
		writeOutboxError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeOutboxError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
