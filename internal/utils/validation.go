package contextutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidUsername checks that a username is printable ASCII without spaces
// and fits the users table column using go-playground/validator
func IsValidUsername(username string) bool {
	return validate.Var(username, "required,min=1,max=64,printascii,excludesall= ") == nil
}
