package fixtures

import (
	"fmt"
	"time"

	"github.com/tamosreddi/orders-sub001/internal/model"
)

const (
	TestDistributorID  = "d7f3b2a0-4c11-4a7e-9b64-2f8a5c0d1e33"
	TestDistributorID2 = "a1b5c9d3-7e22-4f60-8a15-6d4b3c2e1f00"
)

var (
	TestCustomerMaria = model.Customer{
		ID:            "c0a80001-0001-4000-8000-000000000001",
		DistributorID: TestDistributorID,
		Phone:         "+5215550001111",
		Name:          "Maria Lopez",
		Code:          "CUST-0001",
	}

	TestCustomerJose = model.Customer{
		ID:            "c0a80001-0002-4000-8000-000000000002",
		DistributorID: TestDistributorID,
		Phone:         "+5215550002222",
		Name:          "Jose Ramirez",
		Code:          "CUST-0002",
	}

	// Sender with no profile name, as delivered by plain SMS.
	TestCustomerAnonymous = model.Customer{
		ID:            "c0a80001-0003-4000-8000-000000000003",
		DistributorID: TestDistributorID2,
		Phone:         "+5215550009999",
	}
)

func NewTestConversation(customerID string) *model.Conversation {
	return &model.Conversation{
		ID:            "b0a80001-0001-4000-8000-000000000010",
		CustomerID:    customerID,
		DistributorID: TestDistributorID,
		Channel:       model.ChannelWhatsApp,
		Status:        model.ConversationStatusActive,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func NewTestMessage(conversationID, content, externalID string) *model.Message {
	return &model.Message{
		ID:                "a0a80001-0001-4000-8000-000000000100",
		ConversationID:    conversationID,
		Content:           content,
		IsFromCustomer:    true,
		Type:              model.MessageTypeText,
		Status:            model.MessageStatusDelivered,
		ExternalMessageID: externalID,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
}

func NewTestAnnotation() *model.AnnotationRequest {
	confidence := 0.92
	return &model.AnnotationRequest{
		Confidence:      &confidence,
		ExtractedIntent: "BUY",
		ExtractedProducts: []model.ExtractedProduct{
			{Name: "leche", Quantity: 10, Unit: "cajas"},
		},
		SuggestedResponses: []string{
			"Claro, ¿confirmo 10 cajas de leche?",
		},
	}
}

var (
	ValidPhoneNumbers = []string{
		"+5215550001111",
		"+5215512345678",
		"+14155552671",
		"+442071838750",
	}

	ValidMessageContents = []string{
		"hola",
		"necesito 10 cajas de leche",
		"quiero 5 kilos de tortilla y 2 litros de crema",
		"¿tienen aceite en oferta?",
	}

	BlankMessageContents = []string{
		"",
		"   ",
		"\n\t",
	}
)

// WebhookForm builds the parameter set of a plain inbound WhatsApp text
// delivery. Callers mutate the map for variants.
func WebhookForm(sid string) map[string]string {
	return map[string]string{
		"MessageSid":  sid,
		"AccountSid":  "AC00000000000000000000000000000000",
		"From":        "whatsapp:+5215550001111",
		"To":          "whatsapp:+14155238886",
		"Body":        "necesito 10 cajas de leche",
		"NumMedia":    "0",
		"ProfileName": "Maria Lopez",
		"SmsStatus":   "received",
	}
}

// WebhookFormWithMedia builds a delivery carrying n attachments and no
// text body.
func WebhookFormWithMedia(sid string, n int) map[string]string {
	form := WebhookForm(sid)
	form["Body"] = ""
	form["NumMedia"] = fmt.Sprintf("%d", n)
	for i := 0; i < n; i++ {
		form[fmt.Sprintf("MediaUrl%d", i)] = fmt.Sprintf("https://api.twilio.com/media/%s/%d", sid, i)
		form[fmt.Sprintf("MediaContentType%d", i)] = "image/jpeg"
	}
	return form
}

// WebhookFormMissing builds a delivery with one required field removed.
func WebhookFormMissing(sid, field string) map[string]string {
	form := WebhookForm(sid)
	delete(form, field)
	return form
}

func ConversationFilterForDistributor(distributorID string) model.ConversationFilter {
	return model.ConversationFilter{
		DistributorID: distributorID,
		Statuses:      []model.ConversationStatus{model.ConversationStatusActive},
		Limit:         50,
		Offset:        0,
	}
}

func ConversationFilterWithPagination(distributorID string, limit, offset int) model.ConversationFilter {
	return model.ConversationFilter{
		DistributorID: distributorID,
		Limit:         limit,
		Offset:        offset,
	}
}

func MessageFilterForThread(conversationID string) model.MessageFilter {
	return model.MessageFilter{
		ConversationID: conversationID,
		Limit:          200,
		Offset:         0,
		Desc:           true,
	}
}

func MessageFilterWithPagination(conversationID string, limit, offset int) model.MessageFilter {
	return model.MessageFilter{
		ConversationID: conversationID,
		Limit:          limit,
		Offset:         offset,
		Desc:           false,
	}
}
