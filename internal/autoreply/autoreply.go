package autoreply

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Reasons reported by Check
const (
	ReasonNone          = ""
	ReasonSubject       = "subject"
	ReasonSender        = "sender"
	ReasonSenderDomain  = "sender_domain"
	ReasonHeader        = "header"
	ReasonOwnAddress    = "own_address"
	ReasonShortBody     = "short_body"
	ReasonMissingSender = "missing_sender"
)

// Subject fragments are stored folded: lowercase, no accents.
var subjectMarkers = []string{
	"auto-reply",
	"autoreply",
	"auto reply",
	"automatic reply",
	"out of office",
	"out-of-office",
	"absence du bureau",
	"absent du bureau",
	"reponse automatique",
	"message automatique",
	"delivery status notification",
	"undeliverable",
	"undelivered mail",
	"mail delivery failed",
	"mail delivery failure",
	"returned mail",
	"message non remis",
	"message non delivre",
	"non distribuable",
	"noreply",
	"no-reply",
}

var senderMarkers = []string{
	"mailer-daemon",
	"postmaster",
	"noreply",
	"no-reply",
	"donotreply",
	"do-not-reply",
	"bounce",
}

var flagHeaders = []string{
	"List-Id",
	"List-Unsubscribe",
	"X-Autoreply",
	"X-Autorespond",
	"X-Auto-Response-Suppress",
}

// Rules configures a Checker
type Rules struct {
	OwnAddress     string
	IgnoredDomains []string
	MinBodyLength  int
}

// Checker decides whether an incoming email must be left without a reply
type Checker struct {
	ownAddress    string
	domains       []string
	minBodyLength int
	logger        *zap.Logger
}

// NewChecker creates a new automated mail checker
func NewChecker(rules Rules, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, 0, len(rules.IgnoredDomains))
	for _, domain := range rules.IgnoredDomains {
		domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
		if domain != "" {
			normalizedDomains = append(normalizedDomains, domain)
		}
	}

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Info("Initialized sender domain filter", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		ownAddress:    strings.ToLower(strings.TrimSpace(rules.OwnAddress)),
		domains:       normalizedDomains,
		minBodyLength: rules.MinBodyLength,
		logger:        logger,
	}
}

// Check returns a non-empty reason when the message must be skipped
func (c *Checker) Check(msg *core.IncomingMessage) string {
	reason := c.check(msg)
	if reason != ReasonNone && c.logger != nil {
		c.logger.Debug("Skipping automated or unanswerable message",
			zap.String("reason", reason),
			zap.String("from", msg.From),
			zap.String("subject", msg.Subject))
	}
	return reason
}

func (c *Checker) check(msg *core.IncomingMessage) string {
	sender := AddressOf(msg.From)
	if sender == "" {
		return ReasonMissingSender
	}
	if c.ownAddress != "" && sender == c.ownAddress {
		return ReasonOwnAddress
	}
	if IsAutomatedSubject(msg.Subject) {
		return ReasonSubject
	}

	local, domain, _ := strings.Cut(sender, "@")
	for _, marker := range senderMarkers {
		if strings.Contains(local, marker) {
			return ReasonSender
		}
	}
	for _, blocked := range c.domains {
		if domain == blocked || strings.HasSuffix(domain, "."+blocked) {
			return ReasonSenderDomain
		}
	}

	if hasAutomationHeaders(msg.Headers) {
		return ReasonHeader
	}

	if utf8.RuneCountInString(strings.TrimSpace(msg.Body)) < c.minBodyLength {
		return ReasonShortBody
	}

	return ReasonNone
}

// IsAutomatedSubject matches the subject against the known markers, ignoring case and accents
func IsAutomatedSubject(subject string) bool {
	folded := Fold(subject)
	for _, marker := range subjectMarkers {
		if strings.Contains(folded, marker) {
			return true
		}
	}
	return false
}

func hasAutomationHeaders(headers map[string][]string) bool {
	if len(headers) == 0 {
		return false
	}
	get := func(key string) (string, bool) {
		for k, v := range headers {
			if strings.EqualFold(k, key) {
				if len(v) == 0 {
					return "", true
				}
				return v[0], true
			}
		}
		return "", false
	}

	if v, ok := get("Auto-Submitted"); ok {
		if !strings.EqualFold(strings.TrimSpace(v), "no") {
			return true
		}
	}
	if v, ok := get("Precedence"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "bulk", "junk", "list", "auto_reply":
			return true
		}
	}
	for _, h := range flagHeaders {
		if _, ok := get(h); ok {
			return true
		}
	}
	return false
}

// Fold lowercases s and strips combining marks
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

// AddressOf extracts the bare, lowercased address from a From header value
func AddressOf(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	if i := strings.LastIndex(from, "<"); i >= 0 {
		j := strings.LastIndex(from, ">")
		if j < i {
			return ""
		}
		from = from[i+1 : j]
	}
	if !strings.Contains(from, "@") {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(from))
}
