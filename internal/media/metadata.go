package media

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
)

// ImageMetadata contains EXIF metadata extracted from an upload.
// Only the fields useful for display and logging are kept.
type ImageMetadata struct {
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	HasGPS    bool    `json:"hasGps"`

	DateTaken time.Time `json:"dateTaken,omitempty"`
	HasDate   bool      `json:"hasDate"`

	CameraMake  string `json:"cameraMake,omitempty"`
	CameraModel string `json:"cameraModel,omitempty"`
}

// ExtractMetadata decodes EXIF metadata from image bytes using imagemeta.
// PNG and WebP uploads usually carry none, which is reported as an error.
func ExtractMetadata(data []byte) (meta *ImageMetadata, err error) {
	// imagemeta parses untrusted container structures; treat a panic as "no metadata".
	defer func() {
		if r := recover(); r != nil {
			meta, err = nil, fmt.Errorf("metadata parser panic: %v", r)
		}
	}()

	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	meta = &ImageMetadata{}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		meta.Latitude = gps.Latitude()
		meta.Longitude = gps.Longitude()
		meta.HasGPS = true
	}

	// Priority: DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		meta.DateTaken = exifData.DateTimeOriginal()
		meta.HasDate = true
	case !exifData.CreateDate().IsZero():
		meta.DateTaken = exifData.CreateDate()
		meta.HasDate = true
	case !exifData.ModifyDate().IsZero():
		meta.DateTaken = exifData.ModifyDate()
		meta.HasDate = true
	}

	meta.CameraMake = strings.TrimSpace(exifData.Make)
	meta.CameraModel = strings.TrimSpace(exifData.Model)

	return meta, nil
}

// Camera returns "Make Model", or "" when neither is known.
func (m *ImageMetadata) Camera() string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}
