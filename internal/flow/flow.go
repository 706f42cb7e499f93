// Package flow implements the conversational core of the bakery bot: the
// trigger matcher, the per-sender session store, and the flow router that
// turns an inbound message into a reply and an optional quote-persistence
// signal.
package flow

// StateType represents the conversational state of a sender.
type StateType string

const (
	// StateNone is the implicit start state: the sender is at the main menu
	// or has no active conversation.
	StateNone StateType = ""
	// StateCatalog means the sender is browsing the product catalog.
	StateCatalog StateType = "CATALOGO"
	// StateQuote means the sender was asked to describe their quote request.
	StateQuote StateType = "ORCAMENTO"
	// StateAgent means the sender asked to talk to a human.
	StateAgent StateType = "ATENDENTE"
	// StateTestimonials means the sender is reading customer testimonials.
	StateTestimonials StateType = "DEPOIMENTOS"
	// StatePhotos means the sender asked for the photo gallery.
	StatePhotos StateType = "FOTOS"
)

// Flow is a static catalog entry: a named conversational state with a canned
// reply and the keywords that trigger it.
type Flow struct {
	Name     string
	State    StateType // session state set when the flow triggers
	Reply    string
	Triggers []string
}

// Canned reply texts. Customer-facing content is Portuguese product copy and
// is kept verbatim.
const (
	ReplyMenu = `Olá! 👋 Bem-vindo à *Sabores da Dori*!

Como posso te ajudar hoje?

1️⃣ Ver catálogo
2️⃣ Fazer orçamento
3️⃣ Falar com atendente
4️⃣ Ver depoimentos

Digite o número da opção desejada.`

	ReplyCatalog = `📋 *Nosso Catálogo:*

🎂 *BOLOS DECORADOS*
- Chocolate com ganache (R$ 80 - 1kg)
- Cenoura com brigadeiro (R$ 70 - 1kg)
- Red Velvet (R$ 120 - 1kg)
- Mesclado (R$ 90 - 1kg)

🧁 *DOCES FINOS* (mínimo 50 unidades)
- Brigadeiro gourmet (R$ 3,50/un)
- Beijinho de coco (R$ 3,50/un)
- Cajuzinho (R$ 3,50/un)
- Brownie bite (R$ 5/un)

🍰 *TORTAS*
- Torta de limão (R$ 95)
- Torta de morango (R$ 115)
- Torta holandesa (R$ 105)

🎉 *KITS FESTAS*
- Kit 50 pessoas (R$ 350)
- Kit 100 pessoas (R$ 650)

📸 Quer ver fotos? Digite *fotos*
💰 Fazer orçamento? Digite *2*
🏠 Menu principal? Digite *0*`

	ReplyQuote = `💰 *Orçamento Personalizado*

Para fazer seu orçamento, preciso saber:

📝 *Formato sugerido:*
------------------
Produto: (bolo/doces/torta/kit)
Sabor:
Quantidade: (kg ou unidades)
Data do evento:
Entrega: (retirada ou endereço)
------------------

Você também pode me enviar uma *foto de referência* se tiver!

Após enviar, preparo seu orçamento em até 2 horas. ⏰`

	ReplyAgent = `👤 *Atendimento Humano*

Vou te conectar com nossa equipe!

Horário de atendimento:
🕐 Segunda a Sexta: 9h às 18h
🕐 Sábado: 9h às 13h

Fora desse horário, deixe sua mensagem que retornamos assim que possível! 📱`

	ReplyTestimonials = `⭐ *O que dizem nossos clientes:*

"Bolo de chocolate perfeito! Todos adoraram!" - Maria S.

"Doces finos lindos e deliciosos!" - João P.

"Entrega pontual e bolo como pedi!" - Ana L.

⭐⭐⭐⭐⭐ Nota: 4.9/5.0

Digite *1* para catálogo
Digite *2* para orçamento`

	ReplyPhotos = `📸 *Galeria de Produtos*

📱 Instagram: @docesdamamae
📘 Facebook: /docesdamamae

Ou digite *3* para pedir fotos específicas!

Menu? Digite *0*`

	ReplyNotUnderstood = `Desculpe, não entendi 😅

Digite *menu* para ver as opções!
Ou *3* para falar com atendente.`

	ReplyQuoteReceived = `✅ Orçamento recebido com sucesso!

Nossa equipe vai analisar e retornar em até 2 horas.

Enquanto isso, que tal ver nosso catálogo? Digite *1*

Ou volte ao menu principal: Digite *0*`

	ReplyForwarded = `Mensagem encaminhada para nossa equipe! ✅

Retornaremos em breve.

Menu principal? Digite *0*`
)
