package services

import "strings"

// ReplyCategory identifies which canned acknowledgment goes back to the
// customer while the AI service works on the real answer.
type ReplyCategory string

const (
	ReplyMedia   ReplyCategory = "MEDIA"
	ReplyOrder   ReplyCategory = "ORDER"
	ReplyHelp    ReplyCategory = "HELP"
	ReplyWelcome ReplyCategory = "WELCOME"
)

// UnreadableReplyText goes out when the webhook form could not be read
// at all, so classification never ran.
const UnreadableReplyText = "Lo sentimos, no pudimos leer tu mensaje. Por favor intenta de nuevo. 🙏"

// Order intent keywords, Spanish first. Matching is substring based, so
// singular forms cover plurals ("caja" covers "cajas").
var orderKeywords = []string{
	"pedido", "pedir", "quiero", "necesito", "comprar", "ordenar", "orden",
	"mandame", "mándame", "enviame", "envíame",
	"caja", "botella", "bulto", "paquete", "docena", "kilo", "litro",
	"order", "buy", "need", "purchase", "send me",
	"box", "case", "bottle", "pack", "dozen",
}

var helpKeywords = []string{
	"ayuda", "duda", "soporte", "horario", "precio", "catalogo", "catálogo", "informacion", "información",
	"help", "support", "hours", "price", "catalog", "question",
}

// ClassifyReply picks the acknowledgment category for an inbound
// message. Media wins over everything because attachments are almost
// always order evidence (photos of shelves, voice notes), then order
// keywords, then help keywords, and anything else gets the welcome.
// Matching is case-insensitive and the first hit wins.
func ClassifyReply(body string, hasMedia bool) ReplyCategory {
	if hasMedia {
		return ReplyMedia
	}

	lower := strings.ToLower(body)
	for _, kw := range orderKeywords {
		if strings.Contains(lower, kw) {
			return ReplyOrder
		}
	}
	for _, kw := range helpKeywords {
		if strings.Contains(lower, kw) {
			return ReplyHelp
		}
	}

	return ReplyWelcome
}

// ReplyText maps a category to the canned message body.
func ReplyText(c ReplyCategory) string {
	switch c {
	case ReplyMedia:
		return "📷 ¡Recibimos tu archivo! Un asesor lo revisará en breve. Si es parte de un pedido, cuéntanos qué productos necesitas."
	case ReplyOrder:
		return "✅ ¡Gracias por tu pedido! Lo estamos revisando y te confirmamos en unos minutos."
	case ReplyHelp:
		return "👋 ¡Con gusto te ayudamos! Un asesor te responde pronto. También puedes escribirnos los productos que necesitas y armamos tu pedido."
	default:
		return "¡Hola! 👋 Gracias por escribirnos. Envíanos tu pedido o escribe 'ayuda' si necesitas otra cosa."
	}
}
