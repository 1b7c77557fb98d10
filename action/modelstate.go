package action

// FieldError is one validation or binding failure.
type FieldError struct {
	Key     string `json:"key" xml:"key"`
	Message string `json:"message" xml:"message"`
}

// ModelState collects binding and validation errors for an invocation.
type ModelState struct {
	errors []FieldError
}

// AddError records a failure for key.
func (m *ModelState) AddError(key, message string) {
	m.errors = append(m.errors, FieldError{Key: key, Message: message})
}

// Valid reports whether no errors were recorded.
func (m *ModelState) Valid() bool {
	return len(m.errors) == 0
}

// Errors returns a copy of the recorded errors in report order.
func (m *ModelState) Errors() []FieldError {
	out := make([]FieldError, len(m.errors))
	copy(out, m.errors)
	return out
}
