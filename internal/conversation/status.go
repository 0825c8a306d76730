package conversation

import "github.com/yanmxa/hezell/internal/provider"

// statusClearAfter is the answer length past which the status label is cleared.
const statusClearAfter = 50

const (
	statusSearching   = "Searching the web..."
	statusTurbo       = "Turbo Mode (Instant)..."
	statusCoT         = "Initializing CoT Logic..."
	statusAttachment  = "Reading attachment..."
	statusThinking    = "Thinking..."
	statusTyping      = "Typing..."
	statusReasoning   = "Reasoning..."
	statusAllocating  = "Allocating logic tokens..."
	statusSources     = "Analyzing sources..."
	statusEditing     = "Analyzing image structure..."
	statusImagen      = "Rendering via Imagen 4.0..."
	statusFlashRender = "Rendering image via Flash Engine..."
)

// flags are the feature switches in effect for one turn.
type flags struct {
	search     bool
	turbo      bool
	thinking   bool
	attachment bool
}

// initialStatus is the label shown before the first fragment arrives.
func initialStatus(f flags) string {
	switch {
	case f.search:
		return statusSearching
	case f.turbo:
		return statusTurbo
	case f.thinking:
		return statusCoT
	case f.attachment:
		return statusAttachment
	}
	return statusThinking
}

// streamStatus is the label shown while fragments arrive.
func streamStatus(f flags, answer, reasoning string) string {
	status := statusTyping
	switch {
	case f.thinking && answer == "" && reasoning != "":
		status = statusReasoning
	case f.thinking && reasoning == "":
		status = statusAllocating
	}
	if f.search {
		status = statusSources
	}
	if len(answer) > statusClearAfter {
		status = ""
	}
	return status
}

// imageStatus is the label shown while an image turn renders.
func imageStatus(engine string, edit bool) string {
	switch {
	case edit:
		return statusEditing
	case engine == provider.EngineImagen:
		return statusImagen
	}
	return statusFlashRender
}
