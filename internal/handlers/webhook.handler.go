package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/services"
	"github.com/tamosreddi/orders-sub001/internal/twilio"
	xhttp "github.com/tamosreddi/orders-sub001/pkg/http"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
	"github.com/tamosreddi/orders-sub001/pkg/prom"
)

const signatureHeader = "X-Twilio-Signature"

type IngestService interface {
	Ingest(ctx context.Context, distributorID string, in *twilio.InboundMessage) (*services.IngestResult, error)
}

type Dispatcher interface {
	DispatchAsync(conversation *model.Conversation, msg *model.Message)
}

type SignatureValidator interface {
	Valid(url string, params map[string]string, signature string) bool
}

// WebhookHandler terminates the Twilio webhook. Whatever happens after
// the signature check, the answer is HTTP 200 with TwiML: Twilio
// retries non-2xx responses and the customer would get double replies.
type WebhookHandler struct {
	signatures    SignatureValidator
	ingest        IngestService
	dispatcher    Dispatcher
	distributorID string
	publicURL     string
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/twilio", h.HandleInbound)
	e.GET("/webhooks/twilio", h.GetStatus)
}

func NewWebhookHandler(signatures SignatureValidator, ingest IngestService, dispatcher Dispatcher, distributorID, publicURL string) *WebhookHandler {
	return &WebhookHandler{
		signatures:    signatures,
		ingest:        ingest,
		dispatcher:    dispatcher,
		distributorID: distributorID,
		publicURL:     publicURL,
	}
}

/* --------------------------------- Routes ----------------------------------- */

func (h *WebhookHandler) HandleInbound(ctx *xhttp.RequestCtx) {
	start := time.Now()

	params := formParams(ctx)
	signature := string(ctx.Request.Header.Peek(signatureHeader))
	if !h.signatures.Valid(h.publicURL, params, signature) {
		prom.IncWebhookInbound("unauthorized")
		logger.Warn("webhook signature rejected", "remote_addr", ctx.RemoteAddr().String())
		ctx.SetStatusCode(xhttp.StatusUnauthorized)
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("signature validation failed")
		return
	}

	in, verr := twilio.ParseInbound(params)
	if verr != nil {
		// Authenticated but malformed. Answer the sender instead of
		// making Twilio retry a payload that will never parse.
		prom.IncWebhookInbound("invalid")
		logger.Warn("webhook payload rejected", "field", verr.Field, "reason", verr.Reason)
		replyTwiML(ctx, services.UnreadableReplyText)
		return
	}

	result, err := h.ingest.Ingest(ctx, h.distributorID, in)
	if err != nil {
		// The message is lost for now; Twilio gets an empty ack so the
		// customer sees no error text. The redelivery carries the same
		// MessageSid and lands cleanly once the store recovers.
		prom.IncWebhookInbound("failed")
		logger.Error("webhook ingest failed",
			"external_message_id", in.ExternalID,
			"error", err)
		replyTwiML(ctx, "")
		return
	}

	if result.Duplicate {
		prom.IncWebhookInbound("duplicate")
	} else {
		prom.IncWebhookInbound("accepted")
		prom.ObserveIngestDuration(time.Since(start).Seconds())
		h.dispatcher.DispatchAsync(result.Conversation, result.Message)
	}

	replyTwiML(ctx, services.ReplyText(services.ClassifyReply(in.Body, in.NumMedia > 0)))
}

func (h *WebhookHandler) GetStatus(ctx *xhttp.RequestCtx) {
	writeJSON(ctx, xhttp.StatusOK, map[string]string{
		"status":  "ok",
		"service": "webhook",
	})
}

func formParams(ctx *xhttp.RequestCtx) map[string]string {
	params := make(map[string]string)
	ctx.PostArgs().VisitAll(func(k, v []byte) {
		params[string(k)] = string(v)
	})
	return params
}

func replyTwiML(ctx *xhttp.RequestCtx, body string) {
	ctx.SetStatusCode(xhttp.StatusOK)
	ctx.SetContentType(twilio.ContentTypeXML)
	if body == "" {
		ctx.Response.SetBodyRaw(twilio.Empty())
		return
	}
	ctx.Response.SetBodyRaw(twilio.Reply(body))
}
