package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marwen-abid/stellar-payments-go/errors"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Field      string `json:"field,omitempty"`
	RemoteCode string `json:"remote_code,omitempty"`

	// Set only when account creation generated keys but could not fund them.
	PublicKey string `json:"publicKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
}

// decimalText is an amount field that accepts both "10.5" and 10.5 on the wire. Numbers
// keep their literal text so no precision is lost before the amount is parsed.
type decimalText string

func (d *decimalText) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = decimalText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*d = decimalText(n.String())
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads the JSON body into req and checks its required fields. Failures are
// VALIDATION_FAILED errors carrying message and the offending field names.
func (s *Server) decode(r *http.Request, req any, message string) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && err != io.EOF {
		return errors.NewValidationError(errors.LayerGateway, "body", "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
		}
		return errors.NewValidationError(errors.LayerGateway, strings.Join(fields, ","), message)
	}
	return nil
}

// statusFor maps errors to transport status. Only the gateway's own presence checks
// are client errors.
func statusFor(pe *errors.PaymentError) int {
	if pe.Code == errors.VALIDATION_FAILED && pe.Layer == errors.LayerGateway {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorBody(err error) (int, errorResponse) {
	var pe *errors.PaymentError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: "INTERNAL"}
	}
	return statusFor(pe), errorResponse{
		Error:      pe.Message,
		Code:       string(pe.Code),
		Field:      pe.Field,
		RemoteCode: pe.RemoteCode,
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorBody(err)
	s.logFailure(r, status, err)
	writeJSON(w, status, body)
}

func (s *Server) logFailure(r *http.Request, status int, err error) {
	log := requestLog(r, s.log).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
		return
	}
	log.Info("request rejected")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
