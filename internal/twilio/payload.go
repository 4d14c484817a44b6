package twilio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tamosreddi/orders-sub001/internal/model"
)

const whatsappPrefix = "whatsapp:"

// InboundMessage is a webhook payload that passed structural
// validation. Addresses are normalized: the transport prefix is
// stripped and recorded as the channel.
type InboundMessage struct {
	From        string
	To          string
	Body        string
	NumMedia    int
	ExternalID  string
	ProfileName string
	SmsStatus   string
	Channel     model.Channel
	Attachments []model.Attachment
}

// ValidationError reports which field of an authenticated payload was
// missing or malformed. It is a benign condition, not a security event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Reason)
}

// ParseInbound validates the form parameters of an authenticated
// webhook delivery and normalizes them into an InboundMessage. It
// returns *ValidationError describing the first offending field.
func ParseInbound(form map[string]string) (*InboundMessage, *ValidationError) {
	from := strings.TrimSpace(form["From"])
	if from == "" {
		return nil, &ValidationError{Field: "From", Reason: "sender address is required"}
	}
	to := strings.TrimSpace(form["To"])
	if to == "" {
		return nil, &ValidationError{Field: "To", Reason: "recipient address is required"}
	}
	externalID := strings.TrimSpace(form["MessageSid"])
	if externalID == "" {
		return nil, &ValidationError{Field: "MessageSid", Reason: "provider message id is required"}
	}

	numMedia := 0
	if raw, ok := form["NumMedia"]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, &ValidationError{Field: "NumMedia", Reason: "media count must be a non-negative integer"}
		}
		numMedia = n
	}

	body := form["Body"]
	if strings.TrimSpace(body) == "" && numMedia == 0 {
		return nil, &ValidationError{Field: "Body", Reason: "message body or media is required"}
	}

	msg := &InboundMessage{
		From:        from,
		To:          to,
		Body:        body,
		NumMedia:    numMedia,
		ExternalID:  externalID,
		ProfileName: form["ProfileName"],
		SmsStatus:   form["SmsStatus"],
		Channel:     model.ChannelSMS,
	}
	if strings.HasPrefix(from, whatsappPrefix) {
		msg.Channel = model.ChannelWhatsApp
		msg.From = strings.TrimPrefix(from, whatsappPrefix)
	}
	if strings.HasPrefix(to, whatsappPrefix) {
		msg.To = strings.TrimPrefix(to, whatsappPrefix)
	}

	for i := 0; i < numMedia; i++ {
		url := form[fmt.Sprintf("MediaUrl%d", i)]
		if url == "" {
			continue
		}
		msg.Attachments = append(msg.Attachments, model.Attachment{
			URL:         url,
			ContentType: form[fmt.Sprintf("MediaContentType%d", i)],
		})
	}

	return msg, nil
}

// Status maps the provider's delivery metadata onto the message
// lifecycle. Anything short of a confirmed delivery counts as SENT.
func (m *InboundMessage) Status() model.MessageStatus {
	switch strings.ToLower(m.SmsStatus) {
	case "received", "delivered":
		return model.MessageStatusDelivered
	default:
		return model.MessageStatusSent
	}
}

// Type is MEDIA whenever at least one attachment came along.
func (m *InboundMessage) Type() model.MessageType {
	if m.NumMedia > 0 {
		return model.MessageTypeMedia
	}
	return model.MessageTypeText
}
