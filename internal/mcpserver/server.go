// Package mcpserver exposes one outfit workflow as Model Context Protocol
// tools, so an assistant can upload a photo, restyle it, and save the look.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/style"
	"github.com/fpang/gemini-vogue/internal/view"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

// Server binds MCP tools to a single workflow controller.
type Server struct {
	ctrl      *workflow.Controller
	validator *media.Validator
	product   string
	now       func() time.Time
}

// New creates a tool server over ctrl.
func New(ctrl *workflow.Controller, validator *media.Validator, productName string) *Server {
	return &Server{
		ctrl:      ctrl,
		validator: validator,
		product:   productName,
		now:       time.Now,
	}
}

// Build returns an MCP server with every tool registered.
func (s *Server) Build(name, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "upload_photo",
		Description: "Load a JPEG, PNG, or WebP photo from a local path. Replaces any previous photo and result.",
	}, s.uploadPhoto)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_styles",
		Description: "List the preset outfit styles.",
	}, s.listStyles)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transform_outfit",
		Description: "Restyle the clothing in the uploaded photo with a preset style id or a free-text prompt. Waits for the result.",
	}, s.transformOutfit)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_state",
		Description: "Report the workflow phase, selected style, and last message. Optionally attach the active image.",
	}, s.getState)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_look",
		Description: "Save the generated image (or a zip bundle with the original) into a directory.",
	}, s.exportLook)

	return server
}

// Run serves the tools over stdin/stdout until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context, name, version string) error {
	log.Info().Str("name", name).Msg("Starting MCP server on stdio")
	return s.Build(name, version).Run(ctx, &mcp.StdioTransport{})
}

// StateOutput summarizes the workflow for tool results.
type StateOutput struct {
	Phase         string `json:"phase"`
	HasImage      bool   `json:"hasImage"`
	Filename      string `json:"filename,omitempty"`
	SelectedStyle string `json:"selectedStyle,omitempty"`
	ResultStyle   string `json:"resultStyle,omitempty"`
	Message       string `json:"message,omitempty"`
	Status        string `json:"status,omitempty"`
}

func stateOutput(st workflow.State) StateOutput {
	out := StateOutput{
		Phase:         st.Phase.String(),
		HasImage:      st.HasImage(),
		SelectedStyle: st.SelectedStyle,
		Message:       st.Message,
		Status:        st.StatusCaption(),
	}
	if st.Image != nil {
		out.Filename = st.Image.Filename
	}
	if st.HasResult() {
		out.ResultStyle = st.Result.StyleID
	}
	return out
}

type uploadInput struct {
	Path string `json:"path" jsonschema:"absolute path to the photo"`
}

func (s *Server) uploadPhoto(ctx context.Context, req *mcp.CallToolRequest, in uploadInput) (*mcp.CallToolResult, StateOutput, error) {
	u, closer, err := media.OpenUpload(in.Path)
	if err != nil {
		return nil, StateOutput{}, err
	}
	defer closer.Close()

	if err := s.ctrl.Accept(s.validator, u); err != nil {
		var valErr *media.ValidationError
		if errors.As(err, &valErr) {
			return nil, StateOutput{}, errors.New(valErr.Message)
		}
		return nil, StateOutput{}, err
	}
	return nil, stateOutput(s.ctrl.Snapshot()), nil
}

type emptyInput struct{}

// StylesOutput lists the catalog.
type StylesOutput struct {
	Styles   []style.Preset `json:"styles"`
	CustomID string         `json:"customId"`
}

func (s *Server) listStyles(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, StylesOutput, error) {
	return nil, StylesOutput{Styles: style.Presets(), CustomID: style.CustomID}, nil
}

type transformInput struct {
	StyleID      string `json:"styleId,omitempty" jsonschema:"preset style id from list_styles"`
	CustomPrompt string `json:"customPrompt,omitempty" jsonschema:"free-text outfit description, used instead of styleId"`
}

func (s *Server) transformOutfit(ctx context.Context, req *mcp.CallToolRequest, in transformInput) (*mcp.CallToolResult, StateOutput, error) {
	if err := s.ctrl.RequireImage(); err != nil {
		return nil, StateOutput{}, errors.New(workflow.MsgNoImage)
	}

	var sr style.Request
	var err error
	if in.CustomPrompt != "" || in.StyleID == style.CustomID {
		sr, err = style.NewCustomRequest(in.CustomPrompt)
	} else {
		sr, err = style.NewPresetRequest(in.StyleID)
	}
	if err != nil {
		return nil, StateOutput{}, err
	}

	done, err := s.ctrl.Submit(sr)
	switch {
	case errors.Is(err, workflow.ErrNoImage):
		return nil, StateOutput{}, errors.New(workflow.MsgNoImage)
	case err != nil:
		return nil, StateOutput{}, err
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, StateOutput{}, fmt.Errorf("still processing: %w", ctx.Err())
	}

	st := s.ctrl.Snapshot()
	if st.Phase == workflow.Error {
		return nil, StateOutput{}, errors.New(st.Message)
	}
	return s.withImage(st, false), stateOutput(st), nil
}

type stateInput struct {
	IncludeImage bool `json:"includeImage,omitempty" jsonschema:"attach a preview of the active image"`
	Compare      bool `json:"compare,omitempty" jsonschema:"show the original instead of the result"`
}

func (s *Server) getState(ctx context.Context, req *mcp.CallToolRequest, in stateInput) (*mcp.CallToolResult, StateOutput, error) {
	st := s.ctrl.Snapshot()
	if !in.IncludeImage {
		return nil, stateOutput(st), nil
	}
	return s.withImage(st, in.Compare), stateOutput(st), nil
}

type exportInput struct {
	Dir    string `json:"dir,omitempty" jsonschema:"output directory, defaults to the working directory"`
	Bundle bool   `json:"bundle,omitempty" jsonschema:"write a zip with the original, the result, and look.json"`
}

// ExportOutput reports where the look was written.
type ExportOutput struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

func (s *Server) exportLook(ctx context.Context, req *mcp.CallToolRequest, in exportInput) (*mcp.CallToolResult, ExportOutput, error) {
	st := s.ctrl.Snapshot()
	export := view.Export
	if in.Bundle {
		export = view.ExportBundle
	}
	a, err := export(st, s.product, s.now())
	if errors.Is(err, workflow.ErrNoResult) {
		return nil, ExportOutput{}, errors.New("no generated look to export yet")
	}
	if err != nil {
		return nil, ExportOutput{}, err
	}

	path, err := a.Save(in.Dir)
	if err != nil {
		return nil, ExportOutput{}, err
	}
	log.Info().Str("path", path).Int("bytes", len(a.Data)).Msg("Look exported")
	return nil, ExportOutput{Path: path, Bytes: len(a.Data)}, nil
}

// withImage builds a result carrying a summary line and a preview of the
// active image.
func (s *Server) withImage(st workflow.State, comparing bool) *mcp.CallToolResult {
	summary := fmt.Sprintf("phase: %s", st.Phase)
	if st.HasResult() {
		summary += fmt.Sprintf(", style: %s", st.Result.StyleID)
	}
	content := []mcp.Content{&mcp.TextContent{Text: summary}}

	if img, ok := view.ActiveImage(st, comparing); ok {
		preview, err := media.Thumbnail(img, media.DefaultThumbnailMaxDimension)
		if err != nil {
			log.Warn().Err(err).Msg("Preview generation failed, sending full image")
			preview = img
		}
		content = append(content, &mcp.ImageContent{Data: preview.Data, MIMEType: preview.MIMEType})
	}
	return &mcp.CallToolResult{Content: content}
}
