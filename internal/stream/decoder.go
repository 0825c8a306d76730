// Package stream folds incremental response fragments into a reasoning
// trace and a final answer.
//
// The fold is pure: State.Next returns a new State and never touches the
// receiver, so a decoder can be replayed or tested without any network.
package stream

import (
	"strings"
)

const (
	// OpenTag starts an inline reasoning block.
	OpenTag = "<THOUGHT_PROCESS>"
	// CloseTag ends an inline reasoning block.
	CloseTag = "</THOUGHT_PROCESS>"
	// SuggestionsMarker separates the answer from trailing follow-up suggestions.
	SuggestionsMarker = "---SUGGESTIONS---"
	// MaxSuggestions caps every suggestion list.
	MaxSuggestions = 3
)

// Fragment is one unit of streamed text.
type Fragment struct {
	Text    string
	Thought bool // tagged as reasoning by the remote client
}

// State is the decoder state carried across fragments.
type State struct {
	reasoning bool
	inside    bool
	answer    string
	thought   string
	// held is a fragment tail that may be the start of a sentinel.
	held string
}

// New returns the initial state for a turn.
func New(reasoningMode bool) State {
	return State{reasoning: reasoningMode}
}

// Answer returns the accumulated answer channel.
func (s State) Answer() string { return s.answer }

// Reasoning returns the accumulated reasoning channel.
func (s State) Reasoning() string { return s.thought }

// Inside reports whether the decoder is inside a reasoning block.
func (s State) Inside() bool { return s.inside }

// Next folds one fragment into the state.
func (s State) Next(f Fragment) State {
	if f.Text == "" {
		return s
	}
	if !s.reasoning {
		s.answer += f.Text
		return s
	}
	if f.Thought {
		s.thought += f.Text
		return s
	}

	text := s.held + f.Text
	s.held = ""
	for text != "" {
		if s.inside {
			idx := strings.Index(text, CloseTag)
			if idx < 0 {
				safe, held := splitHeld(text, CloseTag)
				s.thought += safe
				s.held = held
				return s
			}
			s.thought += text[:idx]
			text = text[idx+len(CloseTag):]
			s.inside = false
			continue
		}

		open := strings.Index(text, OpenTag)
		closing := strings.Index(text, CloseTag)
		switch {
		case open >= 0 && (closing < 0 || open < closing):
			s.answer += text[:open]
			text = text[open+len(OpenTag):]
			s.inside = true
		case closing >= 0:
			// A close sentinel without an open one still ends a block.
			s.thought += text[:closing]
			text = text[closing+len(CloseTag):]
		default:
			safe, held := splitHeld(text, OpenTag, CloseTag)
			s.answer += safe
			s.held = held
			return s
		}
	}
	return s
}

// Result is the decoder output once the stream has ended.
type Result struct {
	Answer      string
	Reasoning   string
	Suggestions []string
}

// Finish flushes held text and extracts suggestions from the answer.
func (s State) Finish() Result {
	if s.held != "" {
		if s.inside {
			s.thought += s.held
		} else {
			s.answer += s.held
		}
		s.held = ""
	}
	answer, suggestions := SplitSuggestions(s.answer)
	return Result{
		Answer:      answer,
		Reasoning:   s.thought,
		Suggestions: suggestions,
	}
}

// Decode folds a complete fragment sequence.
func Decode(reasoningMode bool, fragments []Fragment) Result {
	s := New(reasoningMode)
	for _, f := range fragments {
		s = s.Next(f)
	}
	return s.Finish()
}

// SplitSuggestions splits answer text on SuggestionsMarker.
// The text before the marker is trimmed; the text after it yields one
// suggestion per non-empty line, capped at MaxSuggestions.
func SplitSuggestions(answer string) (string, []string) {
	body, rest, found := strings.Cut(answer, SuggestionsMarker)
	body = strings.TrimSpace(body)
	if !found {
		return body, nil
	}
	// Only the block up to a repeated marker counts.
	rest, _, _ = strings.Cut(rest, SuggestionsMarker)
	return body, SuggestionLines(rest)
}

// SuggestionLines turns newline-separated text into a trimmed, capped list.
func SuggestionLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

// splitHeld splits text into a part that can be emitted now and a tail that
// is a proper prefix of one of the tags.
func splitHeld(text string, tags ...string) (string, string) {
	keep := 0
	for _, tag := range tags {
		limit := min(len(tag)-1, len(text))
		for n := limit; n > keep; n-- {
			if strings.HasSuffix(text, tag[:n]) {
				keep = n
				break
			}
		}
	}
	return text[:len(text)-keep], text[len(text)-keep:]
}
