package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Generation delimiters
// ============================================================================

// Markers the writer model is told to emit. The parser looks for these
// literal strings in the raw completion.
const (
	MarkerTitle    = "===TITLE==="
	MarkerTeaser   = "===TEASER==="
	MarkerContent  = "===CONTENT==="
	MarkerLanguage = "===LANGUAGE==="
)

// ============================================================================
// Tone presets
// ============================================================================

// DefaultTone is used when neither the request nor the configuration names one.
const DefaultTone = "authentic"

// TonePresets are the built-in style instructions. The vibe_brain admin entry
// may override or extend them.
var TonePresets = map[string]string{
	"authentic":    "Keep the speaker's own voice. Light edits only: remove filler words, fix grammar, keep their phrasing and humour.",
	"professional": "Polished and clear, suitable for a company blog. Confident, concise, no slang.",
	"casual":       "Relaxed and conversational, like a note to a friend. Short paragraphs.",
	"humorous":     "Playful and witty. Keep the facts, add light jokes where they fit naturally.",
	"inspiring":    "Uplifting and motivational. Emphasise lessons and forward-looking takeaways.",
	"analytical":   "Structured and thoughtful. Use headings and lists where they help the argument.",
	"storytelling": "Narrative arc with a clear beginning, middle and end. Vivid but faithful to what was said.",
	"dramatic":     "Bold and emotive. Heightened language, but never invent events.",
	"poetic":       "Lyrical prose with imagery and rhythm while keeping every point the speaker made.",
}

// ContentTypes maps a requested content type to its structural guidance.
var ContentTypes = map[string]string{
	"blog":    "a blog post with an engaging opening, a body in short sections and a closing thought",
	"journal": "a personal journal entry written in the first person",
	"story":   "a short story told in prose",
	"notes":   "concise notes with bullet points grouped under short headings",
}

// DefaultContentType is used for unknown or empty content types.
const DefaultContentType = "blog"

// ============================================================================
// Writer prompt
// ============================================================================

// GenerationSystemPrompt frames the writer model.
const GenerationSystemPrompt = `You are VibeLog's writer. You turn spoken transcripts and rough notes into publishable posts in Markdown.
Never invent facts the speaker did not state. Write in the same language as the transcript.`

// GenerationUserPrompt builds the fixed template sent with every transcript.
// toneInstruction is the resolved preset text, not the preset name.
func GenerationUserPrompt(transcript, toneInstruction, contentType string) string {
	shape, ok := ContentTypes[contentType]
	if !ok {
		shape = ContentTypes[DefaultContentType]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the transcript below as %s.\n", shape)
	fmt.Fprintf(&b, "Style: %s\n\n", toneInstruction)
	b.WriteString("Respond with exactly these sections and nothing else:\n")
	fmt.Fprintf(&b, "%s\n<a title under 80 characters, no quotes>\n", MarkerTitle)
	fmt.Fprintf(&b, "%s\n<one or two sentences that make people want to read on>\n", MarkerTeaser)
	fmt.Fprintf(&b, "%s\n<the full post in Markdown, without repeating the title>\n", MarkerContent)
	fmt.Fprintf(&b, "%s\n<ISO 639-1 code of the transcript language>\n\n", MarkerLanguage)
	b.WriteString("Transcript:\n\"\"\"\n")
	b.WriteString(transcript)
	b.WriteString("\n\"\"\"")
	return b.String()
}

// ============================================================================
// Translation prompt
// ============================================================================

// TranslationSystemPrompt frames the translator model.
const TranslationSystemPrompt = `You are a professional translator. Preserve Markdown formatting, links and emoji.
Do not add commentary. Keep proper nouns unchanged.`

// TranslationUserPrompt asks for the three fields in the same delimited format
// the writer uses, so one parser handles both.
func TranslationUserPrompt(title, teaser, content, targetLanguage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the post below into the language with ISO code %q.\n", targetLanguage)
	fmt.Fprintf(&b, "Answer with %s, %s and %s sections only.\n\n", MarkerTitle, MarkerTeaser, MarkerContent)
	fmt.Fprintf(&b, "%s\n%s\n%s\n%s\n%s\n%s", MarkerTitle, title, MarkerTeaser, teaser, MarkerContent, content)
	return b.String()
}

// ============================================================================
// Cover prompt
// ============================================================================

// CoverPrompt describes the illustration generated when no cover is uploaded.
func CoverPrompt(title, teaser string) string {
	return fmt.Sprintf(
		"Editorial illustration for a blog post titled %q. Theme: %s. "+
			"Wide banner composition, soft natural lighting, rich colour. No text, letters or logos in the image.",
		title, teaser,
	)
}

// ============================================================================
// Vibe Brain
// ============================================================================

// DefaultBrainSystemPrompt is used until an admin configures vibe_brain.
const DefaultBrainSystemPrompt = `You are Vibe Brain, the assistant inside VibeLog.
You help creators find ideas, remember what they told you and point them to their own earlier vibelogs.
Be warm and brief. When context from earlier vibelogs is provided, cite their titles.`

// DefaultMemoryPatterns capture simple self-descriptions. The first capture
// group, when present, becomes the stored fact.
var DefaultMemoryPatterns = []string{
	`(?i)\bmy name is ([\p{L}][\p{L}' -]{1,40})`,
	`(?i)\bi(?:'m| am) (?:a|an) ([\p{L} -]{3,60})`,
	`(?i)\bi live in ([\p{L}][\p{L}, -]{1,60})`,
	`(?i)\bi (?:love|like|enjoy) ([\p{L} -]{3,60})`,
}

// BrainContext renders retrieved vibelogs and remembered facts for the system message.
func BrainContext(memories []string, sources []string) string {
	if len(memories) == 0 && len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	if len(memories) > 0 {
		b.WriteString("\n\nWhat you know about this user:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	if len(sources) > 0 {
		b.WriteString("\n\nRelevant vibelogs:\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return b.String()
}
