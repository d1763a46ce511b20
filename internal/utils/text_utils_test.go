package utils

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap/zaptest"
)

func TestCleanResponse(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"echoed instruction", "<s>[INST] Qu'est-ce qu'un CDI ? [/INST] Un CDI est un contrat.</s>", "Un CDI est un contrat."},
		{"multiline instruction", "[INST] ligne 1\nligne 2 [/INST]\nRéponse", "Réponse"},
		{"blank runs collapsed", "Premier point.\n\n\n\nSecond point.", "Premier point.\n\nSecond point."},
		{"blank runs with spaces", "A\n  \n \n\nB", "A\n\nB"},
		{"plain text untouched", "Réponse simple.", "Réponse simple."},
		{"only artifacts", "<s></s>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tp.CleanResponse(tt.in); got != tt.want {
				t.Errorf("CleanResponse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCapTokens(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	if got := tp.CapTokens("un deux trois quatre", 2); got != "un deux" {
		t.Errorf("CapTokens = %q", got)
	}
	if got := tp.CapTokens("un\n\ndeux\ntrois", 2); got != "un\n\ndeux" {
		t.Errorf("CapTokens kept spacing wrong: %q", got)
	}
	if got := tp.CapTokens("court", 10); got != "court" {
		t.Errorf("CapTokens = %q", got)
	}
	if got := tp.CapTokens("a b c", 0); got != "a b c" {
		t.Errorf("CapTokens with no limit = %q", got)
	}
}

func TestCapTokensNeverExceedsLimit(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("token count bounded", prop.ForAll(
		func(words []string, limit int) bool {
			text := strings.Join(words, " \n")
			out := tp.CapTokens(text, limit)
			return len(strings.Fields(out)) <= limit && strings.HasPrefix(text, out)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

func TestTruncateTextKeepsUTF8(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	out := tp.TruncateText("ééééé", 3)
	if !utf8.ValidString(out) {
		t.Fatalf("TruncateText produced invalid UTF-8: %q", out)
	}
	if !strings.HasPrefix(out, "é") {
		t.Errorf("TruncateText = %q", out)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	if got := tp.SanitizeUTF8("ok\xffok"); got != "okok" {
		t.Errorf("SanitizeUTF8 = %q", got)
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30)

	chunks := SplitMessage(text, 40)
	if len(chunks) != 2 {
		t.Fatalf("SplitMessage returned %d chunks: %q", len(chunks), chunks)
	}
	if chunks[0] != strings.Repeat("a", 30) || chunks[1] != strings.Repeat("b", 30) {
		t.Errorf("SplitMessage = %q", chunks)
	}
}

func TestSplitMessageShortText(t *testing.T) {
	chunks := SplitMessage("bonjour", TelegramMaxMessageLen)
	if len(chunks) != 1 || chunks[0] != "bonjour" {
		t.Errorf("SplitMessage = %q", chunks)
	}
}

func TestSplitMessageChunksBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("every chunk within limit and no content lost", prop.ForAll(
		func(words []string, limit int) bool {
			text := strings.Join(words, " ")
			chunks := SplitMessage(text, limit)
			for _, c := range chunks {
				if UTF16Len(c) > limit {
					return false
				}
			}
			joined := strings.Join(chunks, "")
			return strings.ReplaceAll(joined, " ", "") == strings.ReplaceAll(text, " ", "")
		},
		gen.SliceOf(gen.UnicodeString(unicode.Latin)),
		gen.IntRange(5, 80),
	))

	properties.TestingRun(t)
}

func TestSplitMessageCountsUTF16Units(t *testing.T) {
	// each emoji is one rune but two UTF-16 code units
	text := strings.Repeat("⚖️😀 ", 1500)
	if utf8.RuneCountInString(text) > TelegramMaxMessageLen*2 || UTF16Len(text) <= TelegramMaxMessageLen {
		t.Fatalf("fixture has %d runes and %d units", utf8.RuneCountInString(text), UTF16Len(text))
	}

	chunks := SplitMessage(text, TelegramMaxMessageLen)
	if len(chunks) < 2 {
		t.Fatalf("SplitMessage returned %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if n := UTF16Len(c); n > TelegramMaxMessageLen {
			t.Errorf("chunk %d is %d UTF-16 units, limit %d", i, n, TelegramMaxMessageLen)
		}
	}
	if strings.ReplaceAll(strings.Join(chunks, ""), " ", "") != strings.ReplaceAll(text, " ", "") {
		t.Error("content lost across chunks")
	}
}

func TestUTF16Len(t *testing.T) {
	tests := map[string]int{
		"":     0,
		"abc":  3,
		"é":    1,
		"😀":    2,
		"a😀b":  4,
		"\xff": 1,
	}
	for in, want := range tests {
		if got := UTF16Len(in); got != want {
			t.Errorf("UTF16Len(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestTruncateTextIgnoresInvalidBytesBeforeCut(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))
	text := "Bonjour \xff" + strings.Repeat("contrat ", 20)

	out := tp.TruncateText(text, 40)
	if !strings.HasPrefix(out, "Bonjour ") || !strings.HasSuffix(out, "\n[...]") {
		t.Errorf("TruncateText = %q, want the leading text kept", out)
	}

	out = tp.ProcessText(text, 40)
	if !utf8.ValidString(out) {
		t.Fatalf("ProcessText produced invalid UTF-8: %q", out)
	}
	if !strings.HasPrefix(out, "Bonjour contrat") || !strings.HasSuffix(out, "\n[...]") {
		t.Errorf("ProcessText = %q", out)
	}
	if len(out) != 40+len("\n[...]") {
		t.Errorf("ProcessText kept %d bytes, want 40 plus the marker", len(out)-len("\n[...]"))
	}
}
