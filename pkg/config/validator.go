package config

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// domainPattern accepts bare DNS names such as "molecule.to" or "docs.bio.xyz".
var domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// RegisterCustomValidators registers custom validation functions
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("hostname_domain", validateHostnameDomain)
}

// validateHostnameDomain rejects schemes, paths, ports and a leading "www.".
func validateHostnameDomain(fl validator.FieldLevel) bool {
	domain := fl.Field().String()
	if domain == "" || domain != strings.ToLower(domain) {
		return false
	}
	if strings.HasPrefix(domain, "www.") {
		return false
	}
	return domainPattern.MatchString(domain)
}
