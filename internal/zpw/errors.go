package zpw

import "fmt"

// PreconditionError is returned before any side effect when the caller's input
// cannot be used: an unknown message type or a message without a quote.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

// EncryptionError is returned when the request parameters could not be encrypted.
// Nothing is sent in that case.
type EncryptionError struct {
	Err error
}

func (e *EncryptionError) Error() string {
	if e.Err == nil {
		return "failed to encrypt message"
	}
	return fmt.Sprintf("failed to encrypt message: %v", e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// APIError is reported by the service, either as an HTTP failure or as a
// non-zero error_code in the response envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}
