package errors

// ErrValidation reports a rejected request parameter.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidation builds a validation error for a named field.
func NewValidation(field, message string) *ErrValidation {
	return &ErrValidation{Field: field, Message: message}
}
