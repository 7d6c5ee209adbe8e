package queue

import (
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Personalizer renders queued subject/body templates at send time.
// Templates use Liquid syntax; the two supported bindings are {{name}}
// (falling back to "there" when the recipient has no name) and {{email}}.
// Parsed templates are cached since automation steps repeat across many
// recipients.
type Personalizer struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

// NewPersonalizer creates a Personalizer with a fresh Liquid engine.
func NewPersonalizer() *Personalizer {
	return &Personalizer{engine: liquid.NewEngine()}
}

// Render substitutes recipient bindings into one template string. A template
// that fails to parse is rendered with plain string replacement instead, so
// a malformed step never blocks a send.
func (p *Personalizer) Render(tmpl, recipientName, recipientEmail string) string {
	name := recipientName
	if name == "" {
		name = "there"
	}

	parsed, err := p.template(tmpl)
	if err != nil {
		return fallbackRender(tmpl, name, recipientEmail)
	}

	out, err := parsed.RenderString(map[string]any{
		"name":  name,
		"email": recipientEmail,
	})
	if err != nil {
		return fallbackRender(tmpl, name, recipientEmail)
	}
	return out
}

func (p *Personalizer) template(src string) (*liquid.Template, error) {
	if cached, ok := p.cache.Load(src); ok {
		return cached.(*liquid.Template), nil
	}
	parsed, err := p.engine.ParseString(src)
	if err != nil {
		return nil, err
	}
	p.cache.Store(src, parsed)
	return parsed, nil
}

func fallbackRender(tmpl, name, email string) string {
	return strings.NewReplacer(
		"{{name}}", name,
		"{{ name }}", name,
		"{{email}}", email,
		"{{ email }}", email,
	).Replace(tmpl)
}
