// Package sanitizer turns fetched body text into content that is safe to
// store and render, and derives message snippets from it.
package sanitizer

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"jaytaylor.com/html2text"

	"github.com/hickar/mailchew/internal/app/chew"
	"github.com/hickar/mailchew/internal/app/mailrep"
)

const (
	// DesiredSnippetLength is the snippet size in characters.
	DesiredSnippetLength = 100

	// maxWordShrink is how many characters truncation may give up to end
	// the snippet on a word boundary.
	maxWordShrink = 8
)

var defaultHTMLToTextOpts = html2text.Options{TextOnly: true}

type Processor struct {
	policy *bluemonday.Policy
	logger *slog.Logger
}

func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Processor{
		policy: bluemonday.UGCPolicy(),
		logger: logger,
	}
}

// ProcessMessageContent implements chew.ContentProcessor.
//
// Plain text content is returned with normalized line breaks. HTML is only
// sanitized once fully downloaded since a truncated document can't be
// sanitized meaningfully; the snippet is derived from partial text either way.
func (p *Processor) ProcessMessageContent(text, repType string, isDownloaded, createSnippet bool) chew.Content {
	var out chew.Content

	switch repType {
	case mailrep.BodyTypePlain:
		out.Content = normalizeNewlines(text)
		if createSnippet {
			out.Snippet = GenerateSnippet(authoredText(out.Content), DesiredSnippetLength)
		}

	case mailrep.BodyTypeHTML:
		if createSnippet {
			plain, err := html2text.FromString(text, defaultHTMLToTextOpts)
			if err != nil {
				p.logger.Warn("html snippet extraction failed", slog.Any("error", err))
			}
			out.Snippet = GenerateSnippet(plain, DesiredSnippetLength)
		}
		if isDownloaded {
			out.Content = p.policy.Sanitize(text)
		}

	default:
		p.logger.Debug("unsupported body rep type", slog.String("type", repType))
	}

	return out
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// authoredText returns the first block of the message that isn't quoted
// reply text or blank.
func authoredText(s string) string {
	var (
		block   []string
		started bool
	)

	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		quoted := strings.HasPrefix(trimmed, ">")

		if quoted || trimmed == "" {
			if started {
				break
			}
			continue
		}

		started = true
		block = append(block, trimmed)
	}

	return strings.Join(block, " ")
}

// GenerateSnippet collapses whitespace in s and truncates it to about
// desiredLength characters, preferring to cut at a space.
func GenerateSnippet(s string, desiredLength int) string {
	if desiredLength <= 0 {
		return ""
	}

	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= desiredLength {
		return s
	}

	runes := []rune(s)
	cut := desiredLength
	for i := desiredLength; i > desiredLength-maxWordShrink && i > 0; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}

	return strings.TrimSpace(string(runes[:cut]))
}
