package services

import (
	"fmt"
)

// Default payment method tags accepted when no custom registry is supplied.
var DefaultPaymentMethods = []string{"card", "bank_transfer", "wallet", "stellar"}

// MethodRegistry validates payment method tags against a closed set of
// registered identifiers.
type MethodRegistry struct {
	methods map[string]struct{}
}

func NewMethodRegistry(methods ...string) *MethodRegistry {
	if len(methods) == 0 {
		methods = DefaultPaymentMethods
	}
	r := &MethodRegistry{methods: make(map[string]struct{}, len(methods))}
	for _, m := range methods {
		r.methods[m] = struct{}{}
	}
	return r
}

// Register adds a method tag to the registry.
func (r *MethodRegistry) Register(method string) {
	r.methods[method] = struct{}{}
}

// Validate returns an error when the tag is not registered.
func (r *MethodRegistry) Validate(method string) error {
	if _, ok := r.methods[method]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
	}
	return nil
}
