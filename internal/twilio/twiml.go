package twilio

import "encoding/xml"

// ContentTypeXML is the response content type the provider expects on
// webhook acknowledgments.
const ContentTypeXML = "text/xml; charset=utf-8"

type messagingResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// Reply renders the acknowledgment document instructing the provider
// to answer the sender with body.
func Reply(body string) []byte {
	out, _ := xml.Marshal(messagingResponse{Message: body})
	return append([]byte(xml.Header), out...)
}

// Empty renders the acknowledgment that stays silent toward the
// sender. Used when ingestion failed and we do not want provider
// retries.
func Empty() []byte {
	return Reply("")
}
