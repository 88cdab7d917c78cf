package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
)

// envelope is the uniform response shape.
type envelope struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{OK: true, Data: data}); err != nil {
		s.logger.Error("response encode failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := domainErrors.GetStatusCode(err)
	body := &errorBody{Code: domainErrors.Code(err), Message: err.Error()}

	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Details = appErr.Details
	}
	if status >= 500 {
		s.logger.Error("request failed", zap.Error(err))
		// Internal detail stays out of the response body.
		body.Message = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(envelope{OK: false, Error: body}); encErr != nil {
		s.logger.Error("error response encode failed", zap.Error(encErr))
	}
}

// decodeJSON parses the request body into dst and runs validation tags.
func (s *Server) decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domainErrors.NewValidationError("MALFORMED_BODY", "request body is not valid JSON").WithCause(err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return domainErrors.NewValidationError("INVALID_REQUEST", err.Error())
	}
	return nil
}
