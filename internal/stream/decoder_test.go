package stream

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func frags(texts ...string) []Fragment {
	out := make([]Fragment, len(texts))
	for i, t := range texts {
		out[i] = Fragment{Text: t}
	}
	return out
}

func TestSentinelStripping(t *testing.T) {
	res := Decode(true, frags("before ", "<THOUGHT_PROCESS>reasoning here</THOUGHT_PROCESS>", " after"))
	if res.Answer != "before  after" {
		t.Errorf("answer = %q, want %q", res.Answer, "before  after")
	}
	if res.Reasoning != "reasoning here" {
		t.Errorf("reasoning = %q, want %q", res.Reasoning, "reasoning here")
	}
	for _, tag := range []string{OpenTag, CloseTag} {
		if strings.Contains(res.Answer, tag) || strings.Contains(res.Reasoning, tag) {
			t.Errorf("sentinel %q leaked into output: %+v", tag, res)
		}
	}
}

func TestSentinelsAcrossFragments(t *testing.T) {
	res := Decode(true, frags("<THOUGHT_PROCESS>", "step one ", "step two", "</THOUGHT_PROCESS>", "The answer."))
	if res.Reasoning != "step one step two" {
		t.Errorf("reasoning = %q", res.Reasoning)
	}
	if res.Answer != "The answer." {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestSentinelSplitAcrossBoundary(t *testing.T) {
	res := Decode(true, frags("intro <THOUGHT_", "PROCESS>deep</THOUGHT", "_PROCESS>done"))
	if res.Answer != "intro done" {
		t.Errorf("answer = %q, want %q", res.Answer, "intro done")
	}
	if res.Reasoning != "deep" {
		t.Errorf("reasoning = %q, want %q", res.Reasoning, "deep")
	}
}

func TestHeldTailFlushedAtFinish(t *testing.T) {
	// A trailing "<" that never becomes a sentinel is ordinary text.
	res := Decode(true, frags("a < b", " and c <"))
	if res.Answer != "a < b and c <" {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestStrayCloseRoutesPrefixToReasoning(t *testing.T) {
	res := Decode(true, frags("thinking quietly</THOUGHT_PROCESS>result"))
	if res.Reasoning != "thinking quietly" {
		t.Errorf("reasoning = %q", res.Reasoning)
	}
	if res.Answer != "result" {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestThoughtFragments(t *testing.T) {
	res := Decode(true, []Fragment{
		{Text: "plan the reply", Thought: true},
		{Text: "Hello"},
	})
	if res.Reasoning != "plan the reply" || res.Answer != "Hello" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestNonReasoningModeSkipsScanning(t *testing.T) {
	res := Decode(false, frags("<THOUGHT_PROCESS>raw", "</THOUGHT_PROCESS> text"))
	want := "<THOUGHT_PROCESS>raw</THOUGHT_PROCESS> text"
	if res.Answer != want {
		t.Errorf("answer = %q, want %q", res.Answer, want)
	}
	if res.Reasoning != "" {
		t.Errorf("reasoning = %q, want empty", res.Reasoning)
	}
}

func TestEmptyFragmentsAreNoOps(t *testing.T) {
	s := New(true).Next(Fragment{Text: "abc"})
	after := s.Next(Fragment{}).Next(Fragment{Thought: true})
	if after != s {
		t.Errorf("empty fragments changed state: %+v -> %+v", s, after)
	}
}

func TestAccumulationMonotonic(t *testing.T) {
	seqs := [][]Fragment{
		frags("a", "<THOUGHT_PROCESS>", "b", "c</THOUGHT", "_PROCESS>", "d", "e<", "f"),
		frags("x</THOUGHT_PROCESS>y", "<THOUGHT_PROCESS>z", "", "w"),
		{{Text: "t", Thought: true}, {Text: "u"}, {Text: "v", Thought: true}},
	}
	for i, seq := range seqs {
		for _, mode := range []bool{true, false} {
			s := New(mode)
			prevA, prevR := "", ""
			for _, f := range seq {
				s = s.Next(f)
				if !strings.HasPrefix(s.Answer(), prevA) {
					t.Fatalf("seq %d: answer rewritten %q -> %q", i, prevA, s.Answer())
				}
				if !strings.HasPrefix(s.Reasoning(), prevR) {
					t.Fatalf("seq %d: reasoning rewritten %q -> %q", i, prevR, s.Reasoning())
				}
				prevA, prevR = s.Answer(), s.Reasoning()
			}
		}
	}
}

func TestNextDoesNotMutateReceiver(t *testing.T) {
	s := New(true).Next(Fragment{Text: "one"})
	_ = s.Next(Fragment{Text: " two"})
	if s.Answer() != "one" {
		t.Errorf("receiver mutated: %q", s.Answer())
	}
}

func TestSuggestionExtraction(t *testing.T) {
	res := Decode(false, frags("Here is the answer.\n---SUGGESTIONS---\nDo X\nDo Y\nDo Z"))
	if res.Answer != "Here is the answer." {
		t.Errorf("answer = %q", res.Answer)
	}
	if diff := cmp.Diff([]string{"Do X", "Do Y", "Do Z"}, res.Suggestions); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitSuggestions(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		answer string
		want   []string
	}{
		{"no marker", "  plain answer \n", "plain answer", nil},
		{"blank lines dropped", "A\n---SUGGESTIONS---\n\n  one  \n\n two\n", "A", []string{"one", "two"}},
		{"capped", "A---SUGGESTIONS---\n1\n2\n3\n4\n5", "A", []string{"1", "2", "3"}},
		{"marker only", "A---SUGGESTIONS---", "A", nil},
		{"repeated marker", "A---SUGGESTIONS---\nx---SUGGESTIONS---\ny", "A", []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, got := SplitSuggestions(tt.input)
			if answer != tt.answer {
				t.Errorf("answer = %q, want %q", answer, tt.answer)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitHeld(t *testing.T) {
	tests := []struct {
		text, safe, held string
	}{
		{"hello", "hello", ""},
		{"hello <", "hello ", "<"},
		{"hello </THOUGHT", "hello ", "</THOUGHT"},
		{"<THOUGHT_PROCES", "", "<THOUGHT_PROCES"},
		{"a <b", "a <b", ""},
	}
	for _, tt := range tests {
		safe, held := splitHeld(tt.text, OpenTag, CloseTag)
		if safe != tt.safe || held != tt.held {
			t.Errorf("splitHeld(%q) = (%q, %q), want (%q, %q)", tt.text, safe, held, tt.safe, tt.held)
		}
	}
}
