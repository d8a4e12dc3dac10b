package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid input")

// SignupRequest is the body of POST /api/signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required,max=80"`
	Email    string `json:"email" validate:"required,max=120"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ReportInput carries the editable fields of an incident report.
type ReportInput struct {
	Lat      float64 `validate:"latitude"`
	Lng      float64 `validate:"longitude"`
	Content  string  `validate:"required,max=200"`
	Severity string  `validate:"oneof=안전 주의 위험 심각"`
	ZoneName string  `validate:"max=100"`
}

// messages maps struct fields to the user-facing message returned with a 400.
var messages = map[string]string{
	"Username": "모든 항목을 입력해주세요.",
	"Email":    "모든 항목을 입력해주세요.",
	"Password": "모든 항목을 입력해주세요.",
	"Lat":      "위치 정보가 올바르지 않습니다.",
	"Lng":      "위치 정보가 올바르지 않습니다.",
	"Content":  "제보 내용은 1자 이상 200자 이하로 입력해주세요.",
	"Severity": "위험도 값이 올바르지 않습니다.",
	"ZoneName": "지역 이름이 너무 깁니다.",
}

// Error is a validation failure on one field.
type Error struct {
	Field string
	Rule  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: field %s failed %s", ErrInvalid, e.Field, e.Rule)
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Message returns the user-facing message for the field.
func (e *Error) Message() string {
	if m, ok := messages[e.Field]; ok {
		return m
	}
	return "입력값이 올바르지 않습니다."
}

// Validator checks request structs. Safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Struct trims string fields of s in place, then validates it. The first
// failing field is returned as *Error.
func (v *Validator) Struct(s any) error {
	switch req := s.(type) {
	case *SignupRequest:
		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.TrimSpace(req.Email)
	case *LoginRequest:
		req.Username = strings.TrimSpace(req.Username)
	case *ReportInput:
		req.Content = strings.TrimSpace(req.Content)
		req.ZoneName = strings.TrimSpace(req.ZoneName)
	}

	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &Error{Field: fieldErrs[0].StructField(), Rule: fieldErrs[0].Tag()}
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}

// MessageFor returns the user-facing message for err, or "" when err is not
// a validation failure.
func MessageFor(err error) string {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Message()
	}
	if errors.Is(err, ErrInvalid) {
		return "입력값이 올바르지 않습니다."
	}
	return ""
}
