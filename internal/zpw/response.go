package zpw

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ResponseResolver turns a raw transport response into a typed result.
type ResponseResolver interface {
	Resolve(resp *http.Response, out any) error
}

// envelope is the wrapper the service puts around every payload, both on the
// wire and again inside the encrypted data field.
type envelope struct {
	ErrorCode    int             `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
	Data         json.RawMessage `json:"data"`
}

// EnvelopeResolver unwraps the service's response envelope. When Encrypted is
// set the outer data field holds an encrypted inner envelope.
type EnvelopeResolver struct {
	SecretKey string
	Cipher    Decryptor
	Encrypted bool
}

// NewEnvelopeResolver returns a resolver for encrypted responses.
func NewEnvelopeResolver(secretKey string, dec Decryptor) *EnvelopeResolver {
	return &EnvelopeResolver{SecretKey: secretKey, Cipher: dec, Encrypted: true}
}

func (r *EnvelopeResolver) Resolve(resp *http.Response, out any) error {
	if resp == nil || resp.Body == nil {
		return &APIError{Message: "empty response"}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{Message: fmt.Sprintf("request failed with status code %d", resp.StatusCode)}
	}

	var outer envelope
	if err := json.NewDecoder(resp.Body).Decode(&outer); err != nil {
		return &APIError{Message: fmt.Sprintf("decode response: %v", err)}
	}
	if outer.ErrorCode != 0 {
		return &APIError{Code: outer.ErrorCode, Message: outer.ErrorMessage}
	}

	inner := outer
	if r.Encrypted {
		var payload string
		if err := json.Unmarshal(outer.Data, &payload); err != nil {
			return &APIError{Message: fmt.Sprintf("response data is not an encrypted string: %v", err)}
		}
		plain, err := r.Cipher.Decrypt(r.SecretKey, payload)
		if err != nil {
			return &APIError{Message: fmt.Sprintf("decrypt response: %v", err)}
		}
		inner = envelope{}
		if err := json.Unmarshal([]byte(plain), &inner); err != nil {
			return &APIError{Message: fmt.Sprintf("decode decrypted response: %v", err)}
		}
		if inner.ErrorCode != 0 {
			return &APIError{Code: inner.ErrorCode, Message: inner.ErrorMessage}
		}
	}

	if out == nil || len(inner.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(inner.Data, out); err != nil {
		return &APIError{Message: fmt.Sprintf("decode response data: %v", err)}
	}
	return nil
}
