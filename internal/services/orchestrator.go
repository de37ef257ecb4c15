package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/llm"
	"github.com/tbourn/shopping-assistant/internal/observability"
	"github.com/tbourn/shopping-assistant/internal/reply"
	"github.com/tbourn/shopping-assistant/internal/shopping"
	"github.com/tbourn/shopping-assistant/internal/store"
)

// Orchestrator turns a conversation history into the next model message. It
// holds no per-conversation state and is safe for concurrent use.
type Orchestrator struct {
	// LLM produces the raw structured reply.
	LLM llm.Client
	// Search resolves the query of a products reply.
	Search shopping.Searcher

	// Ceiling bounds the history sent to the model; see store.Trim.
	Ceiling int
	// MaxQueryRunes rejects longer queries when > 0.
	MaxQueryRunes int
}

// Outcome is the result of one stateless turn.
type Outcome struct {
	Turn    reply.Turn
	Message domain.Message
	// History is the input history followed by the user and model messages.
	History []domain.Message
}

// NormalizeQuery trims q and enforces the emptiness and length rules.
func (o *Orchestrator) NormalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrEmptyQuery
	}
	if o.MaxQueryRunes > 0 && utf8.RuneCountInString(q) > o.MaxQueryRunes {
		return "", ErrTooLong
	}
	return q, nil
}

// Process answers query given the prior history without touching any store.
func (o *Orchestrator) Process(ctx context.Context, history []domain.Message, query string) (Outcome, error) {
	tr := otel.Tracer("services/Orchestrator")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(attribute.Int("history.len", len(history))),
	)
	defer span.End()

	q, err := o.NormalizeQuery(query)
	if err != nil {
		return Outcome{}, err
	}

	now := time.Now().UTC()
	user := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   q,
		Type:      domain.TypeText,
		CreatedAt: now,
		UpdatedAt: now,
	}
	full := append(append(make([]domain.Message, 0, len(history)+2), history...), user)

	msg, turn := o.Respond(ctx, full)
	msg.ID = uuid.NewString()
	msg.CreatedAt, msg.UpdatedAt = time.Now().UTC(), time.Now().UTC()

	return Outcome{Turn: turn, Message: msg, History: append(full, msg)}, nil
}

// Respond runs the model over history, which must already end with the user
// message, and builds the model message for the interpreted reply. For a
// products reply the search runs after the model returns. The returned
// message has no id or timestamps.
func (o *Orchestrator) Respond(ctx context.Context, history []domain.Message) (domain.Message, reply.Turn) {
	ceiling := o.Ceiling
	if ceiling <= 0 {
		ceiling = store.DefaultCeiling
	}
	return o.respondTrimmed(ctx, store.Trim(history, ceiling))
}

// respondTrimmed is Respond for a history the caller has already trimmed.
func (o *Orchestrator) respondTrimmed(ctx context.Context, history []domain.Message) (domain.Message, reply.Turn) {
	tr := otel.Tracer("services/Orchestrator")
	ctx, span := tr.Start(ctx, "Respond")
	defer span.End()

	raw := o.LLM.Reply(ctx, llm.FromDomain(history))

	turn := reply.Parse(raw)
	observability.ReplyParseTier.WithLabelValues(turn.Tier.String()).Inc()
	span.SetAttributes(
		attribute.String("reply.type", string(turn.Type)),
		attribute.String("reply.stage", string(turn.Stage)),
		attribute.String("reply.tier", turn.Tier.String()),
	)

	msg := domain.Message{
		Role:    domain.RoleModel,
		Content: turn.Content,
		Type:    turn.Type,
		Stage:   turn.Stage,
	}
	switch turn.Type {
	case domain.TypeProducts:
		res := o.Search.Search(ctx, turn.Query)
		msg.ProductSource = res.Source
		msg.Products = res.Products
		span.SetAttributes(attribute.Int("products.count", res.Len()))
	case domain.TypeOptions:
		msg.Options = turn.Options
	}

	observability.AssistantTurns.WithLabelValues(string(msg.Type), string(msg.Stage)).Inc()
	return msg, turn
}
