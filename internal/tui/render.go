package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/mattn/go-runewidth"

	"github.com/yanmxa/hezell/internal/audio"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
	"github.com/yanmxa/hezell/internal/session"
)

const (
	minWrapWidth = 40
	idWidth      = 8
)

func createMarkdownRenderer(width int) *glamour.TermRenderer {
	wrapWidth := max(width-4, minWrapWidth)

	var compactStyle ansi.StyleConfig
	if isDarkBackground {
		compactStyle = styles.DarkStyleConfig
	} else {
		compactStyle = styles.LightStyleConfig
	}

	uintPtr := func(u uint) *uint { return &u }
	compactStyle.Document.Margin = uintPtr(0)
	compactStyle.Paragraph.Margin = uintPtr(0)
	compactStyle.CodeBlock.Margin = uintPtr(0)

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithStyles(compactStyle),
		glamour.WithWordWrap(wrapWidth),
	)
	return renderer
}

// Renderer turns finished messages into terminal output.
type Renderer struct {
	md    *glamour.TermRenderer
	width int
	// imageDir receives generated images; the terminal cannot show them inline.
	imageDir string
}

// NewRenderer returns a renderer wrapping at width and saving images under imageDir.
func NewRenderer(width int, imageDir string) *Renderer {
	return &Renderer{
		md:       createMarkdownRenderer(width),
		width:    width,
		imageDir: imageDir,
	}
}

// Markdown renders text, falling back to the raw text when glamour fails.
func (r *Renderer) Markdown(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// User renders the echo of a user turn.
func (r *Renderer) User(m message.Message) string {
	line := userStyle().Render("> ") + m.Text
	if m.UploadedImageURL != "" {
		line += mutedStyle().Render("  [attachment]")
	}
	return line
}

// Bot renders a finalized bot message with its reasoning, image, sources
// and suggestions.
func (r *Renderer) Bot(m message.Message) string {
	var sb strings.Builder

	sb.WriteString(botHeaderStyle().Render("◆ " + engineName(m.Model)))
	sb.WriteString("\n")

	if m.ThinkingText != "" {
		for _, line := range strings.Split(strings.TrimSpace(m.ThinkingText), "\n") {
			sb.WriteString(thoughtStyle().Render("│ " + line))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if m.Text != "" {
		sb.WriteString(r.Markdown(m.Text))
		sb.WriteString("\n")
	}

	if m.ImageURL != "" {
		path, err := r.saveImage(m)
		if err != nil {
			sb.WriteString(errorStyle().Render("image not saved: " + err.Error()))
		} else {
			label := "image saved to " + path
			if m.AspectRatio != "" {
				label += " (" + string(m.AspectRatio) + ")"
			}
			sb.WriteString(successStyle().Render(label))
		}
		sb.WriteString("\n")
	}

	if m.Grounding != nil && len(m.Grounding.Sources) > 0 {
		sb.WriteString(mutedStyle().Render("Sources:"))
		sb.WriteString("\n")
		for i, src := range m.Grounding.Sources {
			title := src.Title
			if title == "" {
				title = src.URI
			}
			line := fmt.Sprintf("  [%d] %s", i+1, truncate(title, r.width/2))
			if src.URI != "" && src.URI != title {
				line += "  " + src.URI
			}
			sb.WriteString(mutedStyle().Render(line))
			sb.WriteString("\n")
		}
	}

	if len(m.Suggestions) > 0 {
		sb.WriteString("\n")
		for i, s := range m.Suggestions {
			sb.WriteString(accentStyle().Render(fmt.Sprintf("  %d) %s", i+1, s)))
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Status renders the one-line progress of a streaming bot message.
func (r *Renderer) Status(m message.Message) string {
	label := m.StatusText
	if label == "" {
		label = "Typing..."
	}
	parts := []string{label}
	if n := len(m.ThinkingText); n > 0 {
		parts = append(parts, fmt.Sprintf("reasoning %d chars", n))
	}
	if n := len(m.Text); n > 0 {
		parts = append(parts, fmt.Sprintf("answer %d chars", n))
	}
	return mutedStyle().Render(truncate(strings.Join(parts, " · "), r.width))
}

func (r *Renderer) saveImage(m message.Message) (string, error) {
	att, err := message.ParseDataURL(m.ImageURL)
	if err != nil {
		return "", err
	}
	return r.saveMedia(m.ID, imageExt(att.MIMEType), att.Data)
}

// saveSpeech writes speech for message id as a WAV file.
func (r *Renderer) saveSpeech(id string, res *provider.SpeechResult) (string, error) {
	return r.saveMedia(id, ".wav", audio.WAV(res.PCM, res.SampleRate))
}

// saveMedia writes data to hezell-<short id><ext> under the image directory.
func (r *Renderer) saveMedia(id, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(r.imageDir, 0755); err != nil {
		return "", err
	}
	if len(id) > idWidth {
		id = id[:idWidth]
	}
	path := filepath.Join(r.imageDir, "hezell-"+id+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func imageExt(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".png"
}

func engineName(id string) string {
	if e, ok := provider.Lookup(id); ok {
		return e.DisplayName
	}
	if id == "" {
		return "Hezell"
	}
	return id
}

// RenderSessions renders the stored sessions as one line each, newest first.
func RenderSessions(sessions []session.Session, width int, now time.Time) string {
	if len(sessions) == 0 {
		return mutedStyle().Render("No saved conversations")
	}

	var sb strings.Builder
	for _, sess := range sessions {
		id := sess.ID
		if len(id) > idWidth {
			id = id[:idWidth]
		}
		meta := fmt.Sprintf("%s · %s", pluralize(len(sess.Messages), "msg"),
			formatRelativeTime(time.UnixMilli(sess.Timestamp), now))
		titleWidth := max(width-idWidth-runewidth.StringWidth(meta)-6, 10)
		title := runewidth.FillRight(truncate(sess.Title, titleWidth), titleWidth)

		sb.WriteString(accentStyle().Render(id))
		sb.WriteString("  ")
		sb.WriteString(title)
		sb.WriteString("  ")
		sb.WriteString(mutedStyle().Render(meta))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncate shortens s to width terminal columns.
// Uses runewidth so wide characters count as two columns.
func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width > 3 {
		return runewidth.Truncate(s, width, "...")
	}
	return runewidth.Truncate(s, width, "")
}

func formatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "min") + " ago"
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour") + " ago"
	case diff < 48*time.Hour:
		return "yesterday"
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// pluralize returns "1 unit" or "n units" based on count
func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
