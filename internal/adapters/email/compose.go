package email

import (
	"fmt"
	"strings"

	"github.com/mikey/llm-answer-bot/internal/core"
)

const (
	replyIntro = "Merci pour votre question concernant le Code du Travail français. " +
		"Voici ma réponse basée sur ma connaissance spécialisée du droit du travail :\n\n"
	answerHeading = "📋 **Réponse détaillée :**\n\n"

	// FallbackAnswer is sent when the model produced nothing usable
	FallbackAnswer = "Je n'ai pas pu générer une réponse appropriée à votre question. Pourriez-vous la reformuler ?"

	expertPrompt = "Vous êtes un expert juridique spécialisé dans le Code du Travail français. " +
		"Répondez de manière complète, précise et détaillée à la question suivante. " +
		"Structurez votre réponse avec des sections claires et citez les articles pertinents du Code du Travail si applicable.\n\n" +
		"Question: %s"
)

// Template holds the fixed parts of every reply
type Template struct {
	Greeting   string
	Disclaimer string
	Signature  string
}

// ReplySubject prefixes "Re: " unless the subject already carries it
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if len(subject) >= 3 && strings.EqualFold(subject[:3], "re:") {
		return subject
	}
	return "Re: " + subject
}

// ReplyBody assembles greeting, answer, disclaimer and signature in that order
func (t Template) ReplyBody(answer string) string {
	var sb strings.Builder
	sb.WriteString(t.Greeting)
	sb.WriteString("\n\n")
	sb.WriteString(replyIntro)
	sb.WriteString(answerHeading)
	sb.WriteString(strings.TrimSpace(answer))
	sb.WriteString("\n\n---\n\n")
	fmt.Fprintf(&sb, "⚠️ **Avertissement :** %s\n\n", t.Disclaimer)
	sb.WriteString("Cordialement,\n")
	sb.WriteString(t.Signature)
	return sb.String()
}

// BuildPrompt frames an email question for the model
func BuildPrompt(msg *core.IncomingMessage) string {
	return fmt.Sprintf(expertPrompt, msg.Body)
}

// BuildReply creates the outgoing reply for msg
func BuildReply(from string, msg *core.IncomingMessage, body string) *core.OutgoingReply {
	to := msg.ReplyTo
	if to == "" {
		to = msg.From
	}

	var refs []string
	refs = append(refs, msg.References...)
	if msg.MessageID != "" {
		refs = append(refs, msg.MessageID)
	}

	return &core.OutgoingReply{
		From:       from,
		To:         to,
		Subject:    ReplySubject(msg.Subject),
		Body:       body,
		InReplyTo:  msg.MessageID,
		References: refs,
	}
}
