package provider

import "errors"

var (
	// ErrQuota reports a rate-limit or billing rejection.
	ErrQuota = errors.New("quota exceeded or billing required")
	// ErrSafety reports a content-policy rejection.
	ErrSafety = errors.New("blocked by safety filter")
	// ErrNoImage reports an image call that returned no image payload.
	ErrNoImage = errors.New("the model did not return an image")
	// ErrNoCredential reports a provider without an API credential.
	ErrNoCredential = errors.New("no API credential configured")
	// ErrUnknownEngine reports an engine id outside the catalog.
	ErrUnknownEngine = errors.New("unknown engine")
	// ErrNoAudio reports a speech response without audio data.
	ErrNoAudio = errors.New("no audio in response")
	// ErrUnsupportedAttachment reports a file type the endpoint cannot read.
	ErrUnsupportedAttachment = errors.New("attachment type not supported by this endpoint")
)
