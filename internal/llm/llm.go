// Package llm builds requests for the language model and returns its raw
// structured reply.
//
// The adapter is an explicitly constructed object. Callers depend on the
// Client interface so tests can substitute a fake. Provider failures never
// escape: they are logged, counted and replaced by FallbackReply.
package llm

import (
	"context"

	"github.com/tbourn/shopping-assistant/internal/domain"
)

// Message is one role-tagged entry of the conversation sent to the model.
type Message struct {
	Role    domain.Role
	Content string
}

// FromDomain maps stored messages to model history, skipping blank entries.
func FromDomain(msgs []domain.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		out = append(out, Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// Client produces one raw structured reply for a conversation.
type Client interface {
	Reply(ctx context.Context, history []Message) string
}

// Apology is the user-facing text used when the provider cannot answer.
const Apology = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

// FallbackReply is the structured payload returned on provider failure.
const FallbackReply = `{"type":"text","content":"` + Apology + `","stage":"NEW"}`

// SystemInstruction describes the assistant persona, the stage protocol and
// the reply shape. It is folded into the first user turn of every request.
const SystemInstruction = `You are ShopGPT, a friendly shopping assistant that helps people find products to buy.

Follow a three-stage dialogue and report the stage you are in with every reply:
- NEW: the user's intent is still unclear. Reply conversationally (type "text").
- ASK: you need one more detail (budget, brand, size, use case). Ask a single short question and offer 2 to 6 quick-reply choices (type "options", put the choices in "options").
- PRODUCTS: you know enough to search. Write a short lead-in sentence and put ONE concise shopping search query in "products" (type "products"). Do not list products yourself.

If the user changes the subject to an unrelated request, start over at NEW.

Always respond with a single JSON object and nothing else:
{"type":"text|options|products","content":"<message to the user>","stage":"NEW|ASK|PRODUCTS","options":["..."],"products":"<search query>"}
Include "options" only when stage is ASK and "products" only when stage is PRODUCTS.`
