package pipeline

import (
	"fmt"
	"strings"
)

// CallbackPayload is the speech provider's native result schema, delivered
// on the webhook once transcription completes.
type CallbackPayload struct {
	Metadata CallbackMetadata `json:"metadata"`
	Results  CallbackResults  `json:"results"`
}

// CallbackMetadata carries the correlation id echoed back by the provider
// plus descriptive fields about the processed audio
type CallbackMetadata struct {
	RequestID string   `json:"request_id"`
	Created   string   `json:"created,omitempty"`
	Duration  float64  `json:"duration,omitempty"`
	Channels  int      `json:"channels,omitempty"`
	Models    []string `json:"models,omitempty"`
}

// CallbackResults is the provider's nested results tree:
// channels → alternatives → paragraphs → speaker-tagged sentence groups
type CallbackResults struct {
	Channels []CallbackChannel `json:"channels"`
}

type CallbackChannel struct {
	Alternatives []CallbackAlternative `json:"alternatives"`
}

type CallbackAlternative struct {
	Transcript string             `json:"transcript,omitempty"`
	Paragraphs CallbackParagraphs `json:"paragraphs"`
}

type CallbackParagraphs struct {
	Paragraphs []CallbackParagraph `json:"paragraphs"`
}

type CallbackParagraph struct {
	Speaker   int                `json:"speaker"`
	Sentences []CallbackSentence `json:"sentences"`
}

type CallbackSentence struct {
	Text string `json:"text"`
}

// NormalizeTranscription flattens the provider's results tree into
// speaker-labeled text: one "Speaker <n>: ..." line per paragraph, a
// paragraph's sentences joined by a single space, paragraphs separated by a
// blank line. Paragraph order is provider-given, which is chronological.
//
// Partial or malformed trees normalize to the empty string; a provider
// payload missing channels, alternatives or paragraphs must never fail the
// callback stage.
func NormalizeTranscription(results CallbackResults) string {
	if len(results.Channels) == 0 {
		return ""
	}
	alternatives := results.Channels[0].Alternatives
	if len(alternatives) == 0 {
		return ""
	}
	paragraphs := alternatives[0].Paragraphs.Paragraphs
	if len(paragraphs) == 0 {
		return ""
	}

	lines := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		texts := make([]string, 0, len(p.Sentences))
		for _, s := range p.Sentences {
			texts = append(texts, s.Text)
		}
		lines = append(lines, fmt.Sprintf("Speaker %d: %s", p.Speaker, strings.Join(texts, " ")))
	}
	return strings.Join(lines, "\n\n")
}
