package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TelegramMaxMessageLen is the Bot API limit on one text message, in UTF-16 code units
const TelegramMaxMessageLen = 4096

var (
	instBlockRe  = regexp.MustCompile(`(?s)\[INST\].*?\[/INST\]`)
	specialTokRe = regexp.MustCompile(`</?s>`)
	blankRunRe   = regexp.MustCompile(`\n[ \t\r]*\n[ \t\r]*\n(?:[ \t\r]*\n)*`)
)

// TextProcessor provides utilities for processing text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText truncates text to at most maxSize bytes without splitting a rune.
// Invalid bytes are left alone; ProcessText removes them first.
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	// back off to the start of the rune straddling the cut
	cut := maxSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	truncated := text[:cut]

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "\n[...]"
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	sanitized := strings.ToValidUTF8(text, "")

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// ProcessText sanitizes then truncates text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.TruncateText(tp.SanitizeUTF8(text), maxSize)
}

// CleanResponse strips instruction-format artifacts the model may echo back
// and collapses runs of blank lines.
func (tp *TextProcessor) CleanResponse(text string) string {
	text = instBlockRe.ReplaceAllString(text, "")
	text = specialTokRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// CapTokens keeps at most maxTokens whitespace-delimited tokens, preserving
// the original spacing of what is kept.
func (tp *TextProcessor) CapTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}

	count := 0
	inToken := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inToken = false
			continue
		}
		if !inToken {
			if count == maxTokens {
				tp.logger.Debug("Response capped", zap.Int("max_tokens", maxTokens))
				return strings.TrimRightFunc(text[:i], unicode.IsSpace)
			}
			count++
			inToken = true
		}
	}
	return text
}

// SplitMessage splits text into chunks of at most maxLen UTF-16 code units,
// the unit Telegram counts in, cutting at a newline or space in the second
// half of a chunk when possible.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for utf16Len(runes) > maxLen {
		n := fitUTF16(runes, maxLen)
		if n == 0 {
			n = 1
		}
		cut := lastBreak(runes[:n], n/2)
		chunk := strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = trimLeftSpace(runes[cut:])
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// UTF16Len returns the length of s in UTF-16 code units
func UTF16Len(s string) int {
	return utf16Len([]rune(s))
}

func utf16Len(runes []rune) int {
	n := 0
	for _, r := range runes {
		n += runeUnits(r)
	}
	return n
}

// fitUTF16 returns how many leading runes fit in maxLen code units
func fitUTF16(runes []rune, maxLen int) int {
	units := 0
	for i, r := range runes {
		units += runeUnits(r)
		if units > maxLen {
			return i
		}
	}
	return len(runes)
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	// invalid runes are sent as U+FFFD
	return 1
}

// lastBreak returns the index just after the last newline, or failing that
// the last space, at or beyond min; otherwise len(window).
func lastBreak(window []rune, min int) int {
	for _, sep := range []rune{'\n', ' '} {
		for i := len(window) - 1; i >= min; i-- {
			if window[i] == sep {
				return i + 1
			}
		}
	}
	return len(window)
}

func trimLeftSpace(r []rune) []rune {
	for len(r) > 0 && unicode.IsSpace(r[0]) {
		r = r[1:]
	}
	return r
}
