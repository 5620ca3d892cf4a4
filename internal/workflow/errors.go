package workflow

import "errors"

// User-facing messages.
const (
	MsgNoImage         = "Please upload an image first."
	MsgTransformFailed = "Failed to generate outfit. Please try again or choose a different photo."
	MsgInvalidUpload   = "Please upload a valid image (JPEG, PNG, WebP)."
	MsgProcessing      = "Creating your new look..."
	MsgOverlay         = "Weaving your new style..."
)

var (
	// ErrNoImage is returned when a transformation is requested before any upload.
	ErrNoImage = errors.New("no image uploaded")
	// ErrBusy is returned when a transformation is already in flight.
	ErrBusy = errors.New("transformation already in progress")
	// ErrNoResult is returned when an operation needs a result and none exists.
	ErrNoResult = errors.New("no transformation result")
	// ErrTransformationFailed wraps any failure of the image service.
	ErrTransformationFailed = errors.New("transformation failed")
)
