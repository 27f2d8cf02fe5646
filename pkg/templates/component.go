package templates

import (
	"context"
	"strings"
	"sync"

	"github.com/a-h/templ"
)

// Definition describes one registered template variant. Body produces the
// plain-text rendering; HTML, when set, produces the templ component for the
// HTML rendering.
type Definition struct {
	Subject string
	Title   string
	Body    func(PersonalizationContext) string
	HTML    func(PersonalizationContext) templ.Component
}

// ComponentRenderer is a Renderer backed by registered templ components.
// Lookup tries the (templateID, channel) variant first and falls back to the
// channel-agnostic (templateID, "") registration.
type ComponentRenderer struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewComponentRenderer creates an empty component renderer.
func NewComponentRenderer() *ComponentRenderer {
	return &ComponentRenderer{defs: make(map[string]Definition)}
}

func defKey(templateID, channel string) string {
	return templateID + "\x00" + channel
}

// Register adds or replaces a template variant. An empty channel registers
// the channel-agnostic fallback.
func (r *ComponentRenderer) Register(templateID, channel string, def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[defKey(templateID, channel)] = def
}

func (r *ComponentRenderer) Render(ctx context.Context, templateID string, pctx PersonalizationContext, channel string) (*Rendered, error) {
	r.mu.RLock()
	def, ok := r.defs[defKey(templateID, channel)]
	if !ok {
		def, ok = r.defs[defKey(templateID, "")]
	}
	r.mu.RUnlock()
	if !ok {
		return nil, ErrTemplateNotFound
	}

	out := &Rendered{Subject: def.Subject, Title: def.Title}
	if def.Body != nil {
		out.Body = def.Body(pctx)
	}
	if def.HTML != nil {
		html, err := renderComponent(ctx, def.HTML(pctx))
		if err != nil {
			return nil, err
		}
		out.HTMLBody = html
	}
	return out, nil
}

// renderComponent renders a templ component to a string.
func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
