package core

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterRequest is the POST /register body.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"email"`
	Password string `json:"password" validate:"min=8,hasupper,hasdigit"`
}

// LoginRequest is the POST /login body. The password is only checked for
// presence; strength rules apply at registration.
type LoginRequest struct {
	Email    string `json:"email" validate:"email"`
	Password string `json:"password" validate:"required"`
}

var ruleMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"min":      "must be at least %s characters long",
	"hasupper": "must contain at least one uppercase letter",
	"hasdigit": "must contain at least one number",
}

// Validator evaluates `validate` struct tags one rule at a time so that every
// violated rule of every field is reported, not only the first per field.
type Validator struct {
	engine *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("hasupper", func(fl validator.FieldLevel) bool {
		return strings.ContainsAny(fl.Field().String(), "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	})
	_ = v.RegisterValidation("hasdigit", func(fl validator.FieldLevel) bool {
		return strings.ContainsAny(fl.Field().String(), "0123456789")
	})
	return &Validator{engine: v}
}

// Validate returns nil or a *ValidationError listing violations in field
// declaration order, then rule order.
func (v *Validator) Validate(req any) error {
	rv := reflect.Indirect(reflect.ValueOf(req))
	rt := rv.Type()

	var fields []FieldError
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		rules := sf.Tag.Get("validate")
		if rules == "" {
			continue
		}
		name := jsonName(sf)
		for _, rule := range strings.Split(rules, ",") {
			if err := v.engine.Var(rv.Field(i).Interface(), rule); err != nil {
				fields = append(fields, FieldError{Field: name, Message: ruleMessage(name, rule)})
			}
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func jsonName(sf reflect.StructField) string {
	if tag := sf.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return sf.Name
}

func ruleMessage(field, rule string) string {
	tag, param, _ := strings.Cut(rule, "=")
	msg, ok := ruleMessages[tag]
	if !ok {
		return field + " is invalid"
	}
	if strings.Contains(msg, "%s") {
		msg = strings.Replace(msg, "%s", param, 1)
	}
	return field + " " + msg
}
