package email

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/mikey/llm-answer-bot/internal/core"
	"golang.org/x/net/html"
)

// maxBodyBytes bounds how much of a single part is read
const maxBodyBytes = 1 << 20

// ParseMessage extracts the fields needed to answer a raw message. A body
// that cannot be decoded yields an empty Body rather than an error; only an
// unreadable header is reported.
func ParseMessage(raw *core.RawMessage) (*core.IncomingMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw.Raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message %d: %w", raw.UID, err)
	}
	defer mr.Close()

	msg := &core.IncomingMessage{
		Channel:    core.ChannelEmail,
		UID:        raw.UID,
		Headers:    make(map[string][]string),
		ReceivedAt: time.Now(),
	}

	fields := mr.Header.Fields()
	for fields.Next() {
		msg.Headers[fields.Key()] = append(msg.Headers[fields.Key()], fields.Value())
	}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	} else {
		msg.From = strings.TrimSpace(mr.Header.Get("From"))
	}
	if replyTo, err := mr.Header.AddressList("Reply-To"); err == nil && len(replyTo) > 0 {
		msg.ReplyTo = replyTo[0].Address
	}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	} else {
		msg.Subject = strings.TrimSpace(mr.Header.Get("Subject"))
	}
	if id, err := mr.Header.MessageID(); err == nil {
		msg.MessageID = id
	}
	if refs, err := mr.Header.MsgIDList("References"); err == nil {
		msg.References = refs
	}
	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		msg.ReceivedAt = date
	}

	msg.Body = strings.TrimSpace(extractBody(mr))
	return msg, nil
}

// extractBody prefers the first text/plain part and falls back to the first text/html part
func extractBody(mr *mail.Reader) string {
	var plain, htmlBody string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			break
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		switch {
		case ct == "text/plain" && plain == "":
			plain = readPart(p.Body)
		case ct == "text/html" && htmlBody == "":
			htmlBody = readPart(p.Body)
		}
	}

	if strings.TrimSpace(plain) != "" {
		return plain
	}
	if htmlBody != "" {
		return HTMLToText(htmlBody)
	}
	return ""
}

func readPart(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(b), "")
}

// HTMLToText renders the visible text of an HTML document
func HTMLToText(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head":
				return
			case "br":
				sb.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
				sb.WriteString("\n")
			}
		}
	}
	walk(doc)

	lines := strings.Split(sb.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" && (len(out) == 0 || out[len(out)-1] == "") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// MessageKey identifies a message for the reply ledger
func MessageKey(msg *core.IncomingMessage) string {
	if msg.MessageID != "" {
		return msg.MessageID
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s", msg.UID, msg.Subject, msg.From)))
	return "sha256:" + hex.EncodeToString(sum[:])
}
