// Package media validates uploaded photos and carries them through the
// workflow as self-contained images.
//
// An Image is bytes plus a MIME type. It renders to (and parses from) a
// base64 data URI, which is the transport form used at the image service
// boundary and by browser clients.
package media

import (
	"encoding/base64"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Supported MIME types for uploads.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"
)

// DefaultMIMEType is assumed when a data URI does not name one.
const DefaultMIMEType = MIMEPNG

// AllowedTypes is the default upload allowlist.
var AllowedTypes = map[string]bool{
	MIMEJPEG: true,
	MIMEPNG:  true,
	MIMEWebP: true,
}

// SupportedImageExtensions maps file extensions to MIME types for uploads read from disk.
var SupportedImageExtensions = map[string]string{
	".jpg":  MIMEJPEG,
	".jpeg": MIMEJPEG,
	".png":  MIMEPNG,
	".webp": MIMEWebP,
}

// Image is an in-memory image with its MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether the image carries no bytes.
func (img Image) Empty() bool {
	return len(img.Data) == 0
}

// DataURI renders the image as data:<mime>;base64,<payload>.
func (img Image) DataURI() string {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ParseDataURI decodes a base64 data URI. A missing MIME type defaults to image/png.
func ParseDataURI(uri string) (Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Image{}, fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("data URI has no payload separator")
	}

	params := strings.Split(header, ";")
	if params[len(params)-1] != "base64" {
		return Image{}, fmt.Errorf("only base64 data URIs are supported")
	}

	mimeType := strings.TrimSpace(params[0])
	if mimeType == "" || mimeType == "base64" {
		mimeType = DefaultMIMEType
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	return Image{Data: data, MIMEType: mimeType}, nil
}

// NormalizeMIMEType lowercases a Content-Type value and strips parameters.
func NormalizeMIMEType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// GetMIMEType returns the MIME type for a file extension (including the dot).
func GetMIMEType(ext string) (string, error) {
	ext = strings.ToLower(ext)
	if mimeType, ok := SupportedImageExtensions[ext]; ok {
		return mimeType, nil
	}
	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// MIMETypeForPath resolves the MIME type of a path by extension. Unknown
// extensions return "application/octet-stream" so validation reports them
// as unsupported rather than failing here.
func MIMETypeForPath(path string) string {
	if mimeType, err := GetMIMEType(filepath.Ext(path)); err == nil {
		return mimeType
	}
	return "application/octet-stream"
}

// ExtensionFor returns the canonical file extension for a MIME type.
func ExtensionFor(mimeType string) string {
	switch NormalizeMIMEType(mimeType) {
	case MIMEJPEG:
		return ".jpg"
	case MIMEWebP:
		return ".webp"
	default:
		return ".png"
	}
}
