// Package flow implements trigger matching for the bakery bot flows.
package flow

import "strings"

// Matcher maps normalized free-text input to a flow by keyword matching.
//
// Declaration order is significant: the numeric triggers ("0".."4") and broad
// keywords overlap under substring containment, so earlier flows shadow later
// ones. Menu is checked first so "0" or "oi" always win.
type Matcher struct {
	flows []Flow
}

// NewMatcher creates a Matcher with the default flow catalog.
func NewMatcher() *Matcher {
	return &Matcher{flows: []Flow{
		{
			Name:     "menu",
			State:    StateNone,
			Reply:    ReplyMenu,
			Triggers: []string{"oi", "olá", "ola", "menu", "começar", "comecar", "inicio", "início", "0"},
		},
		{
			Name:     "catalogo",
			State:    StateCatalog,
			Reply:    ReplyCatalog,
			Triggers: []string{"1", "catalogo", "catálogo", "produtos", "cardapio", "cardápio"},
		},
		{
			Name:     "orcamento",
			State:    StateQuote,
			Reply:    ReplyQuote,
			Triggers: []string{"2", "orçamento", "orcamento", "preço", "preco", "quanto custa", "valor"},
		},
		{
			Name:     "atendente",
			State:    StateAgent,
			Reply:    ReplyAgent,
			Triggers: []string{"3", "atendente", "humano", "falar", "pessoa"},
		},
		{
			Name:     "depoimentos",
			State:    StateTestimonials,
			Reply:    ReplyTestimonials,
			Triggers: []string{"4", "depoimentos", "avaliacoes", "avaliações", "reviews"},
		},
		{
			Name:     "fotos",
			State:    StatePhotos,
			Reply:    ReplyPhotos,
			Triggers: []string{"fotos", "imagens", "ver fotos", "galeria", "instagram", "insta"},
		},
	}}
}

// Match returns the first flow whose keyword list matches the normalized
// input, or nil if none matches. A keyword matches on exact equality or
// substring containment; no scoring, first match wins.
func (m *Matcher) Match(normalized string) *Flow {
	for i := range m.flows {
		for _, kw := range m.flows[i].Triggers {
			if normalized == kw || strings.Contains(normalized, kw) {
				return &m.flows[i]
			}
		}
	}
	return nil
}

// Normalize lower-cases and trims an inbound message for matching.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
