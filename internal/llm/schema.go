package llm

import "google.golang.org/genai"

// ReplySchema is the structured-output schema attached to every reply
// request. Only type, content and stage are required; options and products
// are populated by stage and the interpreter ignores them otherwise.
func ReplySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"type": {
				Type: genai.TypeString,
				Enum: []string{"text", "options", "products"},
			},
			"content": {
				Type:        genai.TypeString,
				Description: "Message shown to the user",
			},
			"stage": {
				Type: genai.TypeString,
				Enum: []string{"NEW", "ASK", "PRODUCTS"},
			},
			"options": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Quick-reply choices, only when stage is ASK",
			},
			"products": {
				Type:        genai.TypeString,
				Description: "One shopping search query, only when stage is PRODUCTS",
			},
		},
		Required:         []string{"type", "content", "stage"},
		PropertyOrdering: []string{"type", "content", "stage", "options", "products"},
	}
}
