package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes is the default upload limit (4 MB).
const DefaultMaxBytes int64 = 4 * 1024 * 1024

// DefaultMaxPixels caps decoded image area. A highly compressed file can
// declare dimensions that would need gigabytes once decoded.
const DefaultMaxPixels int64 = 50_000_000

// User-facing messages for rejected uploads.
const (
	MsgUnsupportedType = "Please upload a valid image (JPEG, PNG, WebP)."
	MsgDecodeFailed    = "Could not read this image. Please try a different photo."
	MsgTooManyPixels   = "Image dimensions too large. Please use a smaller photo."
)

// Sentinels matched by errors.Is against a *ValidationError of the same kind.
var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
	ErrDecodeFailed    = errors.New("image decode failed")
)

// ValidationErrorType categorizes upload validation failures.
type ValidationErrorType int

const (
	// ErrTypeUnsupportedType indicates the MIME type is not on the allowlist.
	ErrTypeUnsupportedType ValidationErrorType = iota
	// ErrTypeTooLarge indicates the upload exceeds the size limit.
	ErrTypeTooLarge
	// ErrTypeDecodeFailed indicates the bytes are not a readable image.
	ErrTypeDecodeFailed
)

func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeUnsupportedType:
		return "unsupported_type"
	case ErrTypeTooLarge:
		return "too_large"
	case ErrTypeDecodeFailed:
		return "decode_failed"
	default:
		return "unknown"
	}
}

// ValidationError is returned by Validate. Message is safe to show to the user.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels (ErrUnsupportedType, ErrTooLarge, ErrDecodeFailed).
func (e *ValidationError) Is(target error) bool {
	switch e.Type {
	case ErrTypeUnsupportedType:
		return target == ErrUnsupportedType
	case ErrTypeTooLarge:
		return target == ErrTooLarge
	case ErrTypeDecodeFailed:
		return target == ErrDecodeFailed
	}
	return false
}

// Upload is a file-like object with a declared MIME type and size.
// Size may be -1 when the caller does not know it up front.
type Upload struct {
	Filename string
	MIMEType string
	Size     int64
	Body     io.Reader
}

// UploadFromBytes wraps in-memory bytes as an Upload.
func UploadFromBytes(filename, mimeType string, data []byte) Upload {
	return Upload{
		Filename: filename,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Body:     bytes.NewReader(data),
	}
}

// OpenUpload opens a file on disk as an Upload, declaring its MIME type from
// the extension. The returned closer must be closed by the caller.
func OpenUpload(path string) (Upload, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Upload{}, nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Upload{}, nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return Upload{}, nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	return Upload{
		Filename: filepath.Base(path),
		MIMEType: MIMETypeForPath(path),
		Size:     info.Size(),
		Body:     f,
	}, f, nil
}

// UploadedImage is a validated upload.
type UploadedImage struct {
	Image
	Filename string
	Size     int64
	Width    int
	Height   int
	Metadata *ImageMetadata
}

// Validator checks uploads against a type allowlist and a size limit.
type Validator struct {
	MaxBytes int64
	// MaxPixels bounds width*height. Zero disables the check.
	MaxPixels int64
	Allowed   map[string]bool
	// ExtractMetadata enables best-effort EXIF extraction on accepted uploads.
	ExtractMetadata bool
}

// NewValidator returns a Validator for the default allowlist. A non-positive
// maxBytes selects DefaultMaxBytes.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{
		MaxBytes:        maxBytes,
		MaxPixels:       DefaultMaxPixels,
		Allowed:         AllowedTypes,
		ExtractMetadata: true,
	}
}

// TooLargeMessage is the user-facing message for uploads over the limit.
func (v *Validator) TooLargeMessage() string {
	return fmt.Sprintf("File size too large. Max %sMB.", formatMB(v.MaxBytes))
}

// Validate checks the upload's type and size, then reads and decodes it.
// It has no side effects beyond consuming u.Body.
func (v *Validator) Validate(u Upload) (*UploadedImage, error) {
	mimeType := NormalizeMIMEType(u.MIMEType)
	if !v.Allowed[mimeType] {
		return nil, &ValidationError{
			Type:    ErrTypeUnsupportedType,
			Message: MsgUnsupportedType,
			Err:     fmt.Errorf("content type %q", u.MIMEType),
		}
	}

	if u.Size > v.MaxBytes {
		return nil, v.tooLarge(u.Size)
	}

	if u.Body == nil {
		return nil, &ValidationError{
			Type:    ErrTypeDecodeFailed,
			Message: MsgDecodeFailed,
			Err:     errors.New("empty upload body"),
		}
	}

	// Read one byte past the limit so an understated Size is still caught.
	data, err := io.ReadAll(io.LimitReader(u.Body, v.MaxBytes+1))
	if err != nil {
		return nil, &ValidationError{
			Type:    ErrTypeDecodeFailed,
			Message: MsgDecodeFailed,
			Err:     fmt.Errorf("failed to read upload: %w", err),
		}
	}
	if int64(len(data)) > v.MaxBytes {
		return nil, v.tooLarge(int64(len(data)))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{
			Type:    ErrTypeDecodeFailed,
			Message: MsgDecodeFailed,
			Err:     err,
		}
	}

	if v.MaxPixels > 0 && pixels(cfg) > v.MaxPixels {
		return nil, &ValidationError{
			Type:    ErrTypeTooLarge,
			Message: MsgTooManyPixels,
			Err:     fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, v.MaxPixels),
		}
	}

	if sniffed := mimeForFormat(format); sniffed != mimeType {
		if !v.Allowed[sniffed] {
			return nil, &ValidationError{
				Type:    ErrTypeUnsupportedType,
				Message: MsgUnsupportedType,
				Err:     fmt.Errorf("declared %s but content is %s", mimeType, format),
			}
		}
		log.Warn().
			Str("filename", u.Filename).
			Str("declared", mimeType).
			Str("detected", sniffed).
			Msg("Upload content type mismatch, using detected type")
		mimeType = sniffed
	}

	img := &UploadedImage{
		Image:    Image{Data: data, MIMEType: mimeType},
		Filename: u.Filename,
		Size:     int64(len(data)),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}

	if v.ExtractMetadata {
		meta, err := ExtractMetadata(data)
		if err != nil {
			log.Debug().Err(err).Str("filename", u.Filename).Msg("No EXIF metadata in upload")
		} else {
			img.Metadata = meta
		}
	}

	log.Info().
		Str("filename", u.Filename).
		Str("mime_type", mimeType).
		Int64("size_bytes", img.Size).
		Int("width", img.Width).
		Int("height", img.Height).
		Msg("Upload validated")

	return img, nil
}

func (v *Validator) tooLarge(size int64) *ValidationError {
	return &ValidationError{
		Type:    ErrTypeTooLarge,
		Message: v.TooLargeMessage(),
		Err:     fmt.Errorf("%d bytes exceeds limit of %d", size, v.MaxBytes),
	}
}

func pixels(cfg image.Config) int64 {
	return int64(cfg.Width) * int64(cfg.Height)
}

func mimeForFormat(format string) string {
	switch format {
	case "jpeg":
		return MIMEJPEG
	case "png":
		return MIMEPNG
	case "webp":
		return MIMEWebP
	default:
		return "image/" + format
	}
}

func formatMB(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%d", n/mb)
	}
	return fmt.Sprintf("%.1f", float64(n)/mb)
}
