package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSubstitutesBindings(t *testing.T) {
	p := NewPersonalizer()

	out := p.Render("Hi {{name}}, confirm {{email}}.", "Ava", "ava@example.com")
	assert.Equal(t, "Hi Ava, confirm ava@example.com.", out)

	// Spaced form too.
	out = p.Render("Hi {{ name }}!", "Ava", "ava@example.com")
	assert.Equal(t, "Hi Ava!", out)
}

func TestRenderNameFallback(t *testing.T) {
	p := NewPersonalizer()

	out := p.Render("Hi {{name}}!", "", "ava@example.com")
	assert.Equal(t, "Hi there!", out)
}

func TestRenderPlainTextPassesThrough(t *testing.T) {
	p := NewPersonalizer()

	const body = "<p>No placeholders here.</p>"
	assert.Equal(t, body, p.Render(body, "Ava", "ava@example.com"))
}

func TestRenderMalformedTemplateFallsBack(t *testing.T) {
	p := NewPersonalizer()

	// Unterminated tag breaks the parser; plain replacement still happens.
	out := p.Render("Hi {{name}} {% if", "Ava", "ava@example.com")
	assert.Contains(t, out, "Hi Ava")
}

func TestRenderCachesTemplates(t *testing.T) {
	p := NewPersonalizer()

	const tmpl = "Hi {{name}}"
	p.Render(tmpl, "Ava", "a@example.com")
	_, ok := p.cache.Load(tmpl)
	assert.True(t, ok)

	// Same template, different recipient.
	assert.Equal(t, "Hi Ben", p.Render(tmpl, "Ben", "b@example.com"))
}
