package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/realtime"
	"github.com/tamosreddi/orders-sub001/internal/repository"
	xhttp "github.com/tamosreddi/orders-sub001/pkg/http"
)

type ConversationService interface {
	List(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationSummary, int64, error)
	Get(ctx context.Context, id string) (*model.Conversation, error)
	Messages(ctx context.Context, conversationID string, f model.MessageFilter) ([]*model.Message, int64, error)
	MarkRead(ctx context.Context, conversationID string) (int64, error)
	Archive(ctx context.Context, conversationID string) error
}

type OrderSessionSource interface {
	Read(ctx context.Context, conversationID string) *model.OrderSession
}

type ConversationHandler struct {
	svc           ConversationService
	sessions      OrderSessionSource
	hub           realtime.Subscriber
	distributorID string
	pollInterval  time.Duration
}

func RegisterConversationRoutes(e *router.Group, h *ConversationHandler) {
	e.GET("/conversations", h.ListConversations)
	e.GET("/conversations/stream", h.StreamConversations)
	e.GET("/conversations/{id}/messages", h.ListThreadMessages)
	e.GET("/conversations/{id}/order-session", h.GetOrderSession)
	e.GET("/conversations/{id}/stream", h.StreamThread)
	e.POST("/conversations/{id}/read", h.MarkRead)
	e.POST("/conversations/{id}/archive", h.Archive)
}

func NewConversationHandler(svc ConversationService, sessions OrderSessionSource, hub realtime.Subscriber, distributorID string, pollInterval time.Duration) *ConversationHandler {
	if pollInterval <= 0 {
		pollInterval = realtime.DefaultPollInterval
	}
	return &ConversationHandler{
		svc:           svc,
		sessions:      sessions,
		hub:           hub,
		distributorID: distributorID,
		pollInterval:  pollInterval,
	}
}

type conversationListResponse struct {
	Items []*model.ConversationSummary `json:"items"`
	Total int64                        `json:"total"`
}

type threadResponse struct {
	Items        []*model.Message    `json:"items"`
	Total        int64               `json:"total"`
	OrderSession *model.OrderSession `json:"order_session,omitempty"`
}

type markReadResponse struct {
	Updated int64 `json:"updated"`
}

type orderSessionResponse struct {
	OrderSession *model.OrderSession `json:"order_session"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *ConversationHandler) ListConversations(ctx *xhttp.RequestCtx) {
	f := h.conversationFilter(ctx)

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, conversationListResponse{Items: items, Total: total})
}

func (h *ConversationHandler) ListThreadMessages(ctx *xhttp.RequestCtx) {
	id := pathParam(ctx, "id")
	f := messageFilter(ctx)

	items, total, err := h.svc.Messages(ctx, id, f)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	resp := threadResponse{Items: items, Total: total}
	if h.sessions != nil {
		resp.OrderSession = h.sessions.Read(ctx, id)
	}
	writeJSON(ctx, xhttp.StatusOK, resp)
}

func (h *ConversationHandler) MarkRead(ctx *xhttp.RequestCtx) {
	id := pathParam(ctx, "id")

	updated, err := h.svc.MarkRead(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, markReadResponse{Updated: updated})
}

func (h *ConversationHandler) Archive(ctx *xhttp.RequestCtx) {
	id := pathParam(ctx, "id")

	if err := h.svc.Archive(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}

func (h *ConversationHandler) GetOrderSession(ctx *xhttp.RequestCtx) {
	id := pathParam(ctx, "id")

	if _, err := h.svc.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	var session *model.OrderSession
	if h.sessions != nil {
		session = h.sessions.Read(ctx, id)
	}
	writeJSON(ctx, xhttp.StatusOK, orderSessionResponse{OrderSession: session})
}

// StreamConversations pushes list snapshots over SSE until the client
// goes away.
func (h *ConversationHandler) StreamConversations(ctx *xhttp.RequestCtx) {
	engine := realtime.NewListEngine(h.svc, h.hub, h.distributorID, h.conversationFilter(ctx), h.pollInterval)
	h.stream(ctx, engine)
}

// StreamThread pushes one conversation's snapshots over SSE.
func (h *ConversationHandler) StreamThread(ctx *xhttp.RequestCtx) {
	id := pathParam(ctx, "id")

	if _, err := h.svc.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	engine := realtime.NewThreadEngine(h.svc, h.sessions, h.hub, id, messageFilter(ctx), h.pollInterval)
	h.stream(ctx, engine)
}

func (h *ConversationHandler) stream(ctx *xhttp.RequestCtx, engine *realtime.Engine) {
	// Clients that open the stream hidden (background tab) still get
	// push, they just skip the poll until they declare themselves
	// visible again by reconnecting.
	if strings.EqualFold(query(ctx, "visibility"), "background") {
		engine.SetForeground(false)
	}

	ctx.SetStatusCode(xhttp.StatusOK)
	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		engine.Start(context.Background())
		defer engine.Close()

		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case u, ok := <-engine.Updates():
				if !ok {
					return
				}
				if err := writeSSE(w, u); err != nil {
					return
				}
			case <-heartbeat.C:
				// Also how we notice the client hung up.
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}

func writeSSE(w *bufio.Writer, u realtime.Update) error {
	if u.Err != nil {
		payload, _ := json.Marshal(map[string]string{"error": u.Err.Error()})
		if _, err := fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload); err != nil {
			return err
		}
		return w.Flush()
	}

	payload, err := json.Marshal(u.Snapshot)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func (h *ConversationHandler) conversationFilter(ctx *xhttp.RequestCtx) model.ConversationFilter {
	f := model.ConversationFilter{DistributorID: h.distributorID}

	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.ConversationStatus(strings.ToUpper(parts[i])))
			}
		}
	}
	if v := query(ctx, "channel"); v != "" {
		ch := model.Channel(strings.ToUpper(v))
		f.Channel = &ch
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}

	return f
}

func messageFilter(ctx *xhttp.RequestCtx) model.MessageFilter {
	var f model.MessageFilter

	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	return f
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
