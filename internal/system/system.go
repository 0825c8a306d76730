// Package system provides system instruction construction for Hezell.
// It assembles instructions from modular components: a persona base, the
// global formatting and suggestions protocol, and the optional
// chain-of-thought override. The fixed prompts used by image turns and
// ancillary calls live here too.
package system

import (
	"embed"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/yanmxa/hezell/internal/log"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// Persona names a system-instruction base.
type Persona string

const (
	PersonaDefault    Persona = "Default"
	PersonaArchitect  Persona = "Architect"
	PersonaStrategist Persona = "Strategist"
	PersonaProfessor  Persona = "Professor"
	PersonaGhost      Persona = "Ghost"
)

// BuiltinPersonas lists the embedded personas in display order.
var BuiltinPersonas = []Persona{
	PersonaDefault,
	PersonaArchitect,
	PersonaStrategist,
	PersonaProfessor,
	PersonaGhost,
}

// Builder produces system instructions. Custom personas override or extend
// the builtin set.
type Builder struct {
	custom map[Persona]string
}

// NewBuilder returns a builder with the given custom persona bases.
func NewBuilder(custom map[string]string) *Builder {
	b := &Builder{custom: make(map[Persona]string, len(custom))}
	for name, base := range custom {
		base = strings.TrimSpace(base)
		if name == "" || base == "" {
			continue
		}
		b.custom[Persona(name)] = base
	}
	return b
}

// Personas returns every selectable persona: builtins first, then custom
// ones sorted by name.
func (b *Builder) Personas() []Persona {
	out := slices.Clone(BuiltinPersonas)
	extra := slices.Sorted(maps.Keys(b.custom))
	for _, p := range extra {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// Has reports whether p is a known persona.
func (b *Builder) Has(p Persona) bool {
	if _, ok := b.custom[p]; ok {
		return true
	}
	return slices.Contains(BuiltinPersonas, p)
}

// Base returns the persona's base instruction. Unknown personas get the
// default base.
func (b *Builder) Base(p Persona) string {
	if base, ok := b.custom[p]; ok {
		return base
	}
	if slices.Contains(BuiltinPersonas, p) {
		return load("persona_" + strings.ToLower(string(p)) + ".txt")
	}
	return load("persona_default.txt")
}

// Instruction builds the complete system instruction.
// Assembly order: persona base + protocol + reasoning override
func (b *Builder) Instruction(p Persona, reasoning bool) string {
	parts := []string{b.Base(p), load("protocol.txt")}
	if reasoning {
		parts = append(parts, load("reasoning.txt"))
	}
	result := join(parts)

	log.Logger().Debug("system instruction assembled",
		zap.String("persona", string(p)),
		zap.Bool("reasoning", reasoning),
		zap.Int("total_len", len(result)),
	)
	return result
}

// EditPrompt wraps an edit task in the identity-preservation instruction.
func EditPrompt(task string) string {
	return fmt.Sprintf(load("image_edit.txt"), task)
}

// GeneratePrompt wraps a description for flash image generation.
func GeneratePrompt(description string) string {
	return fmt.Sprintf(load("image_generate.txt"), description)
}

// FollowUpKind selects the follow-up suggestion context after an image turn.
type FollowUpKind int

const (
	FollowUpGenerate FollowUpKind = iota
	FollowUpEdit
)

// FollowUpPrompt asks for three follow-up suggestions after an image turn.
func FollowUpPrompt(kind FollowUpKind, userPrompt string) string {
	sysContext := load("followup_generate.txt")
	if kind == FollowUpEdit {
		sysContext = load("followup_edit.txt")
	}
	return fmt.Sprintf(load("followup.txt"), sysContext, userPrompt)
}

// EnhancePrompt asks for a rewrite of a draft prompt.
func EnhancePrompt(draft string) string {
	return fmt.Sprintf(load("enhance.txt"), draft)
}

// load reads a prompt file from the embedded filesystem.
func load(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(data), "\n")
}

// join concatenates non-empty parts with double newlines.
func join(parts []string) string {
	var filtered []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			filtered = append(filtered, p)
		}
	}
	return strings.Join(filtered, "\n\n")
}
