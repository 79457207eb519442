package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
)

// validate is shared across handlers; go-playground/validator's Validate is
// safe for concurrent use once built, same as config's usage.
var validate = validator.New()

// decodeAndValidate checks the caller's JSON decode error for req and runs
// struct-tag validation on req, writing the appropriate 400 response and
// returning false on either failure. Handlers bail out on a false return.
func decodeAndValidate(w http.ResponseWriter, decodeErr error, req any) bool {
	if decodeErr != nil {
		WriteErrorWithMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(req); err != nil {
		WriteErrorWithMessage(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
