package reportapi

import (
	"io"
	"time"
)

// Response provides a minimal response interface for transport adapters.
type Response interface {
	SetHeader(name, value string)
	DelHeader(name string)
	WriteHeader(status int)
	Write(data []byte) (int, error)
	WriteJSON(status int, payload any) error
	// Writer returns a streaming writer when the transport supports one.
	Writer() (io.Writer, bool)
}

// HandleResponse describes a published document.
type HandleResponse struct {
	Handle      string    `json:"handle"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ErrorResponse describes JSON error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains error details.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
