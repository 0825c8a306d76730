package provider

import "slices"

// Kind is the turn shape an engine produces.
type Kind string

const (
	KindChat     Kind = "chat"
	KindImage    Kind = "image"
	KindFallback Kind = "fallback"
)

const (
	EngineFlash    = "gemini-2.5-flash"
	EnginePro      = "gemini-3-pro-preview"
	EngineLite     = "gemini-flash-lite-latest"
	EngineLegacy   = "gemini-1.5-flash"
	EngineImage    = "gemini-2.5-flash-image"
	EngineImagen   = "imagen-4.0-generate-001"
	EngineFallback = "fallback"
)

// Engine describes one selectable engine.
type Engine struct {
	ID          string
	DisplayName string
	Description string
	Tag         string
	Kind        Kind
	// Thinking reports whether the engine accepts a reasoning budget.
	Thinking bool
	// ReasoningTokens is the budget used when reasoning mode is on.
	ReasoningTokens int32
}

// Engines is the catalog, in display order.
var Engines = []Engine{
	{ID: EngineFlash, DisplayName: "Hezell Flash 2.5", Description: "Cepat, cerdas, & stabil. Pilihan terbaik harian.", Tag: "RECOMMENDED", Kind: KindChat, Thinking: true, ReasoningTokens: 8192},
	{ID: EngineLite, DisplayName: "Hezell Lite 2.0", Description: "Paling ringan & hemat kuota. Respon instan.", Tag: "STABLE", Kind: KindChat, Thinking: true, ReasoningTokens: 8192},
	{ID: EnginePro, DisplayName: "Hezell Pro 3.0", Description: "Logika tinggi. (Mungkin butuh akun berbayar/Limit).", Tag: "HIGH USAGE", Kind: KindChat, Thinking: true, ReasoningTokens: 16000},
	{ID: EngineLegacy, DisplayName: "Hezell Flash 1.5", Description: "Model lama tanpa mode berpikir.", Tag: "LEGACY", Kind: KindChat},
	{ID: EngineImage, DisplayName: "Hezell Image", Description: "Membuat gambar AI. (Perlu Billing Aktif).", Tag: "PAID", Kind: KindImage},
	{ID: EngineImagen, DisplayName: "Hezell Imagen 4.0", Description: "Render foto berkualitas tinggi via Imagen.", Tag: "PAID", Kind: KindImage},
	{ID: EngineFallback, DisplayName: "Hezell Offline", Description: "Endpoint cadangan (OpenAI/Anthropic kompatibel).", Tag: "BACKUP", Kind: KindFallback},
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Engine, bool) {
	i := slices.IndexFunc(Engines, func(e Engine) bool { return e.ID == id })
	if i < 0 {
		return Engine{}, false
	}
	return Engines[i], true
}

// ReasoningBudget returns the budget for a chat on e. Turbo wins over
// reasoning; engines without thinking support never get a budget.
func (e Engine) ReasoningBudget(reasoning, turbo bool) Budget {
	if !e.Thinking {
		return Budget{}
	}
	switch {
	case turbo:
		return Budget{Mode: BudgetZero}
	case reasoning:
		return Budget{Mode: BudgetFixed, Tokens: e.ReasoningTokens}
	}
	return Budget{}
}
