// Package styles holds the fixed catalog of writing styles a transcript
// can be rewritten into. Entries are immutable; notes snapshot the style
// fields they were created with so later catalog edits never alter history.
package styles

import "strings"

// WritingStyle is a named rewrite preset applied to a transcript.
type WritingStyle struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

var catalog = []WritingStyle{
	{
		ID:   "informal-email",
		Name: "Informal Email",
		Description: "Write a friendly, casual email. Keep the message clear and concise, " +
			"maintaining a baseline of professionalism and respect. Be brief unless more detail is necessary.",
		Prompt: "Rewrite the transcript as a friendly, casual email. Keep it clear, concise, " +
			"respectful, and only include details that matter.",
	},
	{
		ID:   "self-reflection",
		Name: "Self Reflection",
		Description: "Identify and state the fundamental issue I'm describing. Use simple, " +
			"flowing sentences and prioritize absolute clarity above all else.",
		Prompt: "Transform the transcript into a self-reflection entry. Focus on the core issue " +
			"and use simple flowing sentences with maximum clarity.",
	},
	{
		ID:   "transcribed-voice-message",
		Name: "Transcribed Voice Message",
		Description: "Convert my spoken words into a readable text. Keep the exact same words, " +
			"rhythm, and style. Only remove filler sounds (like 'hm,' 'uh') and add punctuation " +
			"and spacing for easy reading.",
		Prompt: "Turn the transcript into a readable text message that keeps the same wording and " +
			"rhythm. Only remove filler sounds and add punctuation and spacing for easy reading.",
	},
	{
		ID:   "cut-fluff",
		Name: "Cut Fluff",
		Description: "Extract the core meaning from my text, cutting all unnecessary words. " +
			"Deliver the main point in one or two focused sentences, using my own vocabulary.",
		Prompt: "Reduce the transcript to the most essential idea in one or two sentences, using " +
			"the speaker's vocabulary and removing any fluff.",
	},
}

// All returns the full catalog in display order.
func All() []WritingStyle {
	out := make([]WritingStyle, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a catalog entry by its identifier.
func ByID(id string) (WritingStyle, bool) {
	trimmed := strings.TrimSpace(id)
	for _, style := range catalog {
		if style.ID == trimmed {
			return style, true
		}
	}
	return WritingStyle{}, false
}
