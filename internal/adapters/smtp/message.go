package smtp

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/mikey/llm-answer-bot/internal/core"
)

// ComposeMessage renders a reply as a UTF-8 quoted-printable text/plain message
func ComposeMessage(reply *core.OutgoingReply, domain string, now time.Time) ([]byte, error) {
	from, err := mail.ParseAddress(reply.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", reply.From, err)
	}
	to, err := mail.ParseAddress(reply.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", reply.To, err)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(reply.Subject)
	h.SetMessageID(uuid.NewString() + "@" + domainOf(domain, from.Address))
	if id := stripAngles(reply.InReplyTo); id != "" {
		h.SetMsgIDList("In-Reply-To", []string{id})
	}
	if refs := msgIDs(reply.References); len(refs) > 0 {
		h.SetMsgIDList("References", refs)
	}
	h.Set("MIME-Version", "1.0")
	h.Set("Auto-Submitted", "auto-replied")
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := w.Write([]byte(reply.Body)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return buf.Bytes(), nil
}

func domainOf(domain, address string) string {
	if domain != "" {
		return domain
	}
	if _, d, ok := strings.Cut(address, "@"); ok {
		return d
	}
	return "localhost"
}

func stripAngles(id string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(id), "<"), ">")
}

func msgIDs(refs []string) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		for _, field := range strings.Fields(ref) {
			if id := stripAngles(field); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
