// Package domain defines the conversation records owned by the thread store:
// threads, messages, and the product listings attached to assistant turns.
// These types are serialized as JSON into the key/value persistence layer and
// returned verbatim by the HTTP API.
package domain

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModel, RoleSystem:
		return true
	}
	return false
}

// MessageType selects which auxiliary field of a Message is populated and
// how clients render it.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeProducts MessageType = "products"
	TypeOptions  MessageType = "options"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeProducts, TypeOptions:
		return true
	}
	return false
}

// Stage is the dialogue-progress marker attached to model-authored messages.
//
//   - NEW:      the assistant is still forming the user's intent
//   - ASK:      the assistant posed a clarifying question or quick-reply options
//   - PRODUCTS: the assistant committed to a search query and shows results
type Stage string

const (
	StageNew      Stage = "NEW"
	StageAsk      Stage = "ASK"
	StageProducts Stage = "PRODUCTS"
)

// Valid reports whether s is one of the canonical stages.
func (s Stage) Valid() bool {
	switch s {
	case StageNew, StageAsk, StageProducts:
		return true
	}
	return false
}

// DefaultThreadTitle is the label given to new and cleared threads.
const DefaultThreadTitle = "New chat"

// Thread groups an ordered sequence of messages.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a single utterance in a thread.
//
// Products is populated only for TypeProducts and Options only for
// TypeOptions; Stage is set on model-authored messages only. ProductSource
// tags which listing shape Products carries.
type Message struct {
	ID            string
	ThreadID      string
	Role          Role
	Content       string
	Type          MessageType
	ProductSource ProductSource
	Products      []Product
	Options       []string
	Stage         Stage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// messageJSON is the wire shape of Message. Pointer slices let an empty
// products/options array survive a round trip while keeping the field absent
// for other message types.
type messageJSON struct {
	ID            string        `json:"id"`
	ThreadID      string        `json:"threadId"`
	Role          Role          `json:"role"`
	Content       string        `json:"content"`
	Type          MessageType   `json:"type"`
	ProductSource ProductSource `json:"productSource,omitempty"`
	Products      *[]Product    `json:"products,omitempty"`
	Options       *[]string     `json:"options,omitempty"`
	Stage         Stage         `json:"stage,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	w := messageJSON{
		ID:            m.ID,
		ThreadID:      m.ThreadID,
		Role:          m.Role,
		Content:       m.Content,
		Type:          m.Type,
		ProductSource: m.ProductSource,
		Stage:         m.Stage,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	switch m.Type {
	case TypeProducts:
		p := m.Products
		if p == nil {
			p = []Product{}
		}
		w.Products = &p
	case TypeOptions:
		o := m.Options
		if o == nil {
			o = []string{}
		}
		w.Options = &o
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w messageJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Message{
		ID:            w.ID,
		ThreadID:      w.ThreadID,
		Role:          w.Role,
		Content:       w.Content,
		Type:          w.Type,
		ProductSource: w.ProductSource,
		Stage:         w.Stage,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
	if w.Products != nil {
		m.Products = *w.Products
	}
	if w.Options != nil {
		m.Options = *w.Options
	}
	return nil
}
