package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/yanmxa/hezell/internal/message"
)

// DevRequest represents the request data saved to JSON file
type DevRequest struct {
	Turn              int               `json:"turn"`
	Timestamp         time.Time         `json:"timestamp"`
	Provider          string            `json:"provider"`
	Engine            string            `json:"engine"`
	Kind              string            `json:"kind"`
	SystemInstruction string            `json:"system_instruction,omitempty"`
	Search            bool              `json:"search"`
	Reasoning         string            `json:"reasoning"`
	Prompt            string            `json:"prompt"`
	Attachment        string            `json:"attachment,omitempty"`
	History           []message.Message `json:"history"`
}

// DevResponse represents the response data saved to JSON file
type DevResponse struct {
	Turn        int                `json:"turn"`
	Timestamp   time.Time          `json:"timestamp"`
	Provider    string             `json:"provider"`
	Engine      string             `json:"engine"`
	Answer      string             `json:"answer,omitempty"`
	Reasoning   string             `json:"reasoning,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
	Grounding   *message.Grounding `json:"grounding,omitempty"`
	ImageBytes  int                `json:"image_bytes,omitempty"`
	DurationMs  int64              `json:"duration_ms"`
	Error       string             `json:"error,omitempty"`
}

// writeDevRequest writes request data to JSON file in DEV_DIR
func writeDevRequest(req Request, turn int) {
	if !devEnabled {
		return
	}
	history := make([]message.Message, len(req.History))
	for i, m := range req.History {
		history[i] = stripInlineImages(m)
	}
	out := DevRequest{
		Turn:              turn,
		Timestamp:         time.Now().UTC(),
		Provider:          req.Provider,
		Engine:            req.Engine,
		Kind:              req.Kind,
		SystemInstruction: req.SystemInstruction,
		Search:            req.Search,
		Reasoning:         req.Reasoning,
		Prompt:            req.Prompt,
		Attachment:        req.Attachment,
		History:           history,
	}
	filename := filepath.Join(devDir, GetTurnPrefix(turn)+"-request.json")
	writeJSON(filename, out)
}

// writeDevResponse writes response data to JSON file in DEV_DIR
func writeDevResponse(resp Response, turn int) {
	if !devEnabled {
		return
	}
	out := DevResponse{
		Turn:        turn,
		Timestamp:   time.Now().UTC(),
		Provider:    resp.Provider,
		Engine:      resp.Engine,
		Answer:      resp.Answer,
		Reasoning:   resp.Reasoning,
		Suggestions: resp.Suggestions,
		Grounding:   resp.Grounding,
		ImageBytes:  resp.ImageBytes,
		DurationMs:  resp.Duration.Milliseconds(),
	}
	if resp.Err != nil {
		out.Error = resp.Err.Error()
	}
	filename := filepath.Join(devDir, GetTurnPrefix(turn)+"-response.json")
	writeJSON(filename, out)
}

// stripInlineImages keeps dumps small by replacing data URIs with a marker.
func stripInlineImages(m message.Message) message.Message {
	if message.IsDataURL(m.ImageURL) {
		m.ImageURL = "data:<inline>"
	}
	if message.IsDataURL(m.UploadedImageURL) {
		m.UploadedImageURL = "data:<inline>"
	}
	return m
}

func writeJSON(filename string, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filename, jsonData, 0644)
}
