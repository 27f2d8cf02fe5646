package templates

import (
	"context"
	"time"
)

// RenderUser identifies the recipient inside a personalization context.
type RenderUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

// RenderEnv carries the ambient rendering facts.
type RenderEnv struct {
	Timestamp time.Time `json:"timestamp"`
	Timezone  string    `json:"timezone,omitempty"`
	Locale    string    `json:"locale,omitempty"`
}

// PersonalizationContext is the input to a template render.
type PersonalizationContext struct {
	User    RenderUser     `json:"user"`
	Context RenderEnv      `json:"context"`
	Data    map[string]any `json:"data,omitempty"`
}

// Rendered is the channel-shaped output of a template render.
type Rendered struct {
	Subject  string `json:"subject,omitempty"`
	Title    string `json:"title,omitempty"`
	Body     string `json:"body"`
	HTMLBody string `json:"html_body,omitempty"`
}

// Renderer turns a template reference plus personalization context into
// channel-ready content. Adapters treat it as an opaque collaborator.
type Renderer interface {
	Render(ctx context.Context, templateID string, pctx PersonalizationContext, channel string) (*Rendered, error)
}
