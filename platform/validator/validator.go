// Package validator wraps go-playground/validator so modules receive a
// shared, injectable instance instead of constructing their own.
package validator

import "github.com/go-playground/validator/v10"

// Validator validates transport DTOs against their struct tags.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator. Custom tags can be added with RegisterValidation.
func New() *Validator {
	return &Validator{v: validator.New()}
}

// Struct validates a struct by its validate tags.
func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// Var validates a single value against a tag expression.
func (val *Validator) Var(field any, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation adds a custom validation function under a tag.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
