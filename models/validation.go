package models

import (
	"github.com/hashicorp/go-multierror"
	"github.com/mmdatafocus/freight_backend/utils"
)

// validateInput checks the `validate` tags of input and reports every failure at once.
func validateInput(input any) error {
	var result *multierror.Error
	for _, msg := range utils.ValidateStruct(input) {
		result = multierror.Append(result, NewValidationError("%s", msg))
	}
	return result.ErrorOrNil()
}
