package apperr

// Result is the uniform payload returned by the engine's API surface.
// Either OK is true and Value holds the operation output, or OK is false and
// the error fields are populated.
type Result struct {
	OK          bool        `json:"ok"`
	Value       interface{} `json:"value,omitempty"`
	ErrorKind   Kind        `json:"errorKind,omitempty"`
	UserMessage string      `json:"userMessage,omitempty"`
	Trace       []string    `json:"trace,omitempty"`
}

// OKResult wraps an operation output.
func OKResult(value interface{}) Result {
	return Result{OK: true, Value: value}
}

// ErrResult converts an error into the uniform failure shape.
func ErrResult(err error) Result {
	return Result{
		OK:          false,
		ErrorKind:   KindOf(err),
		UserMessage: UserMessage(err),
		Trace:       TraceOf(err),
	}
}
