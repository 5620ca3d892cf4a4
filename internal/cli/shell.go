package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/style"
	"github.com/fpang/gemini-vogue/internal/view"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

const shellHelp = `Commands:
  upload [path]    load a photo (opens a file picker without a path)
  styles           list preset styles
  style <id>       restyle with a preset
  custom <text>    restyle with your own description
  wait             wait for the current transformation
  hold | release   compare with the original while held
  show             show the current state
  export [dir]     save the generated image
  bundle [dir]     save a zip with the original, the result, and look.json
  reset            start over
  help             show this help
  quit             exit`

// Command is one parsed shell line.
type Command struct {
	Name string
	Arg  string
}

// ParseCommand splits a line into a lowercase command name and the rest of
// the line, trimmed. Blank lines yield an empty Name.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}
	}
	name, arg, _ := strings.Cut(line, " ")
	return Command{Name: strings.ToLower(name), Arg: strings.TrimSpace(arg)}
}

// Shell is an interactive loop over one workflow controller.
type Shell struct {
	ctrl      *workflow.Controller
	validator *media.Validator
	product   string
	in        *bufio.Scanner
	out       io.Writer

	// Picker chooses a photo when upload has no path. Defaults to PickPhoto.
	Picker func() (string, error)
	// Now stamps exported filenames. Defaults to time.Now.
	Now func() time.Time

	gesture view.Gesture
	mu      sync.Mutex // guards out
	wg      sync.WaitGroup
}

// NewShell creates a shell reading commands from in and writing to out.
func NewShell(ctrl *workflow.Controller, validator *media.Validator, productName string, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		ctrl:      ctrl,
		validator: validator,
		product:   productName,
		in:        bufio.NewScanner(in),
		out:       out,
		Picker:    PickPhoto,
		Now:       time.Now,
	}
}

func (s *Shell) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// Run reads commands until quit, end of input, or ctx is done. Background
// progress reports are flushed before it returns.
func (s *Shell) Run(ctx context.Context) error {
	defer s.wg.Wait()

	s.printf("Gemini Vogue: upload a photo, pick a style, and see yourself in a new outfit.\nType \"help\" for commands.\n")
	for {
		s.printf("vogue> ")
		if !s.in.Scan() {
			s.printf("\n")
			return s.in.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cmd := ParseCommand(s.in.Text())
		if cmd.Name == "quit" || cmd.Name == "exit" {
			return nil
		}
		s.execute(ctx, cmd)
	}
}

func (s *Shell) execute(ctx context.Context, cmd Command) {
	switch cmd.Name {
	case "":
	case "help", "?":
		s.printf("%s\n", shellHelp)
	case "upload":
		s.upload(cmd.Arg)
	case "styles":
		s.listStyles()
	case "style":
		if s.requireImage() {
			return
		}
		req, err := style.NewPresetRequest(cmd.Arg)
		if err != nil {
			s.printf("Unknown style %q. Try one of: %s\n", cmd.Arg, strings.Join(style.IDs(), ", "))
			return
		}
		s.submit(req)
	case "custom":
		if s.requireImage() {
			return
		}
		req, err := style.NewCustomRequest(cmd.Arg)
		if err != nil {
			s.printf("Describe the outfit, e.g. custom a red leather jacket\n")
			return
		}
		s.submit(req)
	case "wait":
		st, _ := s.ctrl.Wait(ctx)
		s.printState(st)
	case "hold":
		s.gesture.PointerDown()
		s.printActive()
	case "release":
		s.gesture.PointerUp()
		s.printActive()
	case "show":
		s.printState(s.ctrl.Snapshot())
	case "export":
		s.export(view.Export, cmd.Arg)
	case "bundle":
		s.export(view.ExportBundle, cmd.Arg)
	case "reset":
		s.ctrl.Reset()
		s.gesture.PointerLeave()
		s.printf("Cleared. Upload a new photo to start again.\n")
	default:
		s.printf("Unknown command %q. Type \"help\" for commands.\n", cmd.Name)
	}
}

func (s *Shell) upload(path string) {
	if s.ctrl.Snapshot().Busy() {
		s.printf("Still working on your look. Wait for it to finish before uploading.\n")
		return
	}

	if path == "" {
		picked, err := s.Picker()
		if errors.Is(err, ErrPickerCanceled) {
			s.printf("No photo selected.\n")
			return
		}
		if err != nil {
			s.printf("File picker unavailable (%v). Use: upload <path>\n", err)
			return
		}
		path = picked
	}

	resolved, err := ResolvePhotoPath(path)
	if err != nil {
		s.printf("%v\n", err)
		return
	}

	u, closer, err := media.OpenUpload(resolved)
	if err != nil {
		s.printf("%v\n", err)
		return
	}
	defer closer.Close()

	if err := s.ctrl.Accept(s.validator, u); err != nil {
		if errors.Is(err, workflow.ErrBusy) {
			s.printf("Still working on your look. Wait for it to finish before uploading.\n")
			return
		}
		s.printf("%s\n", s.ctrl.Snapshot().Message)
		return
	}

	st := s.ctrl.Snapshot()
	s.printf("Loaded %s (%dx%d, %s).\n", st.Image.Filename, st.Image.Width, st.Image.Height, FormatBytes(st.Image.Size))
}

func (s *Shell) listStyles() {
	for _, p := range style.Presets() {
		s.printf("  %-10s %s  %s\n", p.ID, p.Icon, p.Name)
	}
	s.printf("  or: custom <your own description>\n")
}

// requireImage reports (and prints) a missing upload.
func (s *Shell) requireImage() bool {
	if err := s.ctrl.RequireImage(); err != nil {
		s.printf("%s\n", workflow.MsgNoImage)
		return true
	}
	return false
}

func (s *Shell) submit(req style.Request) {
	start := time.Now()
	done, err := s.ctrl.Submit(req)
	switch {
	case errors.Is(err, workflow.ErrNoImage):
		s.printf("%s\n", workflow.MsgNoImage)
		return
	case errors.Is(err, workflow.ErrBusy):
		s.printf("Still working on your look...\n")
		return
	case err != nil:
		s.printf("%v\n", err)
		return
	}

	s.printf("%s\n", workflow.MsgProcessing)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-done
		st := s.ctrl.Snapshot()
		switch st.Phase {
		case workflow.Success:
			s.printf("\nYour new look is ready (%s, %s). Try \"hold\" to compare or \"export\" to save.\n",
				st.Result.StyleID, FormatDurationShort(time.Since(start)))
		case workflow.Error:
			s.printf("\n%s\n", st.Message)
		}
	}()
}

func (s *Shell) printActive() {
	st := s.ctrl.Snapshot()
	if !st.HasResult() {
		s.printf("Nothing to compare yet.\n")
		return
	}
	if s.gesture.Comparing(st) {
		s.printf("Showing the original photo.\n")
	} else {
		s.printf("Showing your new look (%s).\n", st.Result.StyleID)
	}
}

func (s *Shell) printState(st workflow.State) {
	s.printf("Phase:    %s\n", st.Phase)
	if st.Image != nil {
		s.printf("Photo:    %s (%dx%d, %s)\n", st.Image.Filename, st.Image.Width, st.Image.Height, FormatBytes(st.Image.Size))
		if st.Image.Metadata != nil {
			if camera := st.Image.Metadata.Camera(); camera != "" {
				s.printf("Camera:   %s\n", camera)
			}
		}
	} else {
		s.printf("Photo:    none\n")
	}
	if st.SelectedStyle != "" {
		s.printf("Style:    %s\n", st.SelectedStyle)
	}
	if caption := st.StatusCaption(); caption != "" {
		s.printf("Status:   %s\n", caption)
	}
	if st.HasResult() {
		active := "generated"
		if s.gesture.Comparing(st) {
			active = "original"
		}
		s.printf("Result:   %s, %s (showing %s)\n", st.Result.StyleID, FormatBytes(int64(len(st.Result.Generated.Data))), active)
	}
	if st.Message != "" {
		s.printf("Message:  %s\n", st.Message)
	}
}

func (s *Shell) export(fn func(workflow.State, string, time.Time) (view.Artifact, error), dir string) {
	a, err := fn(s.ctrl.Snapshot(), s.product, s.Now())
	if errors.Is(err, workflow.ErrNoResult) {
		s.printf("Nothing to export yet. Pick a style first.\n")
		return
	}
	if err != nil {
		s.printf("Export failed: %v\n", err)
		return
	}
	path, err := a.Save(dir)
	if err != nil {
		s.printf("Export failed: %v\n", err)
		return
	}
	log.Info().Str("path", path).Int("bytes", len(a.Data)).Msg("Look exported")
	s.printf("Saved %s\n", path)
}
