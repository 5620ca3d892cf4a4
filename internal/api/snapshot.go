package api

import (
	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

// snapshotResponse is the JSON view of a session's workflow state. Image
// bytes are never inlined; the client fetches them from the URLs.
type snapshotResponse struct {
	SessionID      string         `json:"sessionId"`
	Phase          workflow.Phase `json:"phase"`
	Image          *imageInfo     `json:"image,omitempty"`
	Result         *resultInfo    `json:"result,omitempty"`
	SelectedStyle  string         `json:"selectedStyle,omitempty"`
	Message        string         `json:"message,omitempty"`
	StatusCaption  string         `json:"statusCaption,omitempty"`
	OverlayCaption string         `json:"overlayCaption,omitempty"`
	Busy           bool           `json:"busy"`
	CanExport      bool           `json:"canExport"`
	ImageURL       string         `json:"imageUrl,omitempty"`
}

type imageInfo struct {
	Filename string               `json:"filename"`
	MIMEType string               `json:"mimeType"`
	Size     int64                `json:"size"`
	Width    int                  `json:"width"`
	Height   int                  `json:"height"`
	Metadata *media.ImageMetadata `json:"metadata,omitempty"`
}

type resultInfo struct {
	StyleID     string `json:"styleId"`
	MIMEType    string `json:"mimeType"`
	Bytes       int    `json:"bytes"`
	OriginalURL string `json:"originalUrl"`
	ExportURL   string `json:"exportUrl"`
	BundleURL   string `json:"bundleUrl"`
}

func newSnapshot(id string, s workflow.State) snapshotResponse {
	base := "/api/sessions/" + id
	resp := snapshotResponse{
		SessionID:     id,
		Phase:         s.Phase,
		SelectedStyle: s.SelectedStyle,
		Message:       s.Message,
		StatusCaption: s.StatusCaption(),
		Busy:          s.Busy(),
		CanExport:     s.HasResult(),
	}
	if s.Busy() {
		resp.OverlayCaption = workflow.MsgOverlay
	}
	if s.Image != nil {
		resp.Image = &imageInfo{
			Filename: s.Image.Filename,
			MIMEType: s.Image.MIMEType,
			Size:     s.Image.Size,
			Width:    s.Image.Width,
			Height:   s.Image.Height,
			Metadata: s.Image.Metadata,
		}
		resp.ImageURL = base + "/image"
	}
	if s.HasResult() {
		resp.Result = &resultInfo{
			StyleID:     s.Result.StyleID,
			MIMEType:    s.Result.Generated.MIMEType,
			Bytes:       len(s.Result.Generated.Data),
			OriginalURL: base + "/image?compare=true",
			ExportURL:   base + "/export",
			BundleURL:   base + "/bundle",
		}
	}
	return resp
}
