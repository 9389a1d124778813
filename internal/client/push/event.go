package push

import "encoding/json"

// Wire event names shared with the backend.
const (
	// Client -> server.
	EventImageUploaded = "image-uploaded-to-s3"

	// Server -> client.
	EventTimeReady       = "time-ready"
	EventImageBlurred    = "image-blurred"
	EventProcessingError = "processing-error"
	EventUploadError     = "upload-error"
)

// Envelope is the wire frame: a discriminator plus raw payload. Payloads are
// decoded lazily so unknown events pass through without breaking consumers.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ImageUploaded tells the backend an object now exists in storage.
type ImageUploaded struct {
	OriginalKey string `json:"originalKey"`
}

// ImageBlurred announces a derived artifact. OriginalKey correlates it to an
// upload attempt; the transport may redeliver after reconnect, so consumers
// must treat it as at-least-once.
type ImageBlurred struct {
	OriginalKey string `json:"originalKey"`
	BlurredKey  string `json:"blurredKey"`
}

// ProcessingError reports an asynchronous backend failure.
type ProcessingError struct {
	Message string `json:"message"`
}

// TimeReady carries the stored-time value for the independent clock feature.
type TimeReady struct {
	Time string `json:"time"`
}

// State describes the channel connection.
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateError        State = "error"
)
