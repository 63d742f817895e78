package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/tudbom/counter-api/internal/service"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage flattens validator errors into one line such as
// "items[0].quantity: must be at least 1".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		msgs = append(msgs, field+": "+ruleMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

type shortageResponse struct {
	Item      string `json:"item"`
	Reason    string `json:"motivo,omitempty"`
	Available *int64 `json:"disponivel,omitempty"`
	Requested *int64 `json:"solicitado,omitempty"`
}

type stockErrorResponse struct {
	Error     string             `json:"error"`
	Shortages []shortageResponse `json:"shortages"`
}

func toShortageResponses(in []service.Shortage) []shortageResponse {
	out := make([]shortageResponse, len(in))
	for i, s := range in {
		out[i] = shortageResponse{Item: s.Item, Reason: s.Reason}
		if s.Reason == "" {
			available, requested := s.Available, s.Requested
			out[i].Available = &available
			out[i].Requested = &requested
		}
	}
	return out
}

// writeServiceError maps service errors to status codes. Anything it does
// not recognise is logged with its cause and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var stockErr *service.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, stockErrorResponse{
			Error:     stockErr.Error(),
			Shortages: toShortageResponses(stockErr.Shortages),
		})
	case service.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrAddonNotFound):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrStoreBusy):
		hlog.FromRequest(r).Warn().Err(err).Msg(op)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, service.ErrStoreBusy.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Msg(op)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
