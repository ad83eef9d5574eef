package store

// Reason classifies why a store operation failed. The zero value means it
// did not.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonValidation Reason = "validation"
	ReasonTransport  Reason = "transport"
	ReasonNotFound   Reason = "notFound"
)

// Result is what every mutating store operation returns instead of
// panicking or swallowing the error.
type Result struct {
	Reason Reason
	Err    error
}

func (r Result) OK() bool { return r.Reason == ReasonNone }

func (r Result) String() string {
	if r.OK() {
		return "ok"
	}
	if r.Err == nil {
		return string(r.Reason)
	}
	return string(r.Reason) + ": " + r.Err.Error()
}
