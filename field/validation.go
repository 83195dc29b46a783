package field

// ValidationResult describes the outcome of validating one field.
// IsValid implies ErrorMessage is empty. IsValidating is set while an
// asynchronous validator is scheduled or in flight for the field.
type ValidationResult struct {
	IsValid      bool   `json:"is_valid"`
	ErrorMessage string `json:"error_message,omitempty"`
	IsValidating bool   `json:"is_validating,omitempty"`
}

// Valid is the result of a field with no failing validator.
var Valid = ValidationResult{IsValid: true}

// Invalid builds a failing result with the given message.
func Invalid(message string) ValidationResult {
	return ValidationResult{IsValid: false, ErrorMessage: message}
}

// FromMessage maps a validator return value to a result: an empty message
// means the field is valid.
func FromMessage(message string) ValidationResult {
	if message == "" {
		return Valid
	}
	return Invalid(message)
}
