package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/repository"
	xhttp "github.com/tamosreddi/orders-sub001/pkg/http"
)

type AnnotationService interface {
	Annotate(ctx context.Context, messageID string, req model.AnnotationRequest) (*model.Message, error)
}

// AnnotationHandler receives the AI service's write-backs: extracted
// intent, products and suggested responses for a processed message.
type AnnotationHandler struct {
	svc AnnotationService
}

func RegisterAnnotationRoutes(e *router.Group, h *AnnotationHandler) {
	e.POST("/messages/{id}/annotations", h.ApplyAnnotations)
}

func NewAnnotationHandler(svc AnnotationService) *AnnotationHandler {
	return &AnnotationHandler{
		svc: svc,
	}
}

/* --------------------------------- Routes ----------------------------------- */

func (h *AnnotationHandler) ApplyAnnotations(ctx *xhttp.RequestCtx) {
	id := pathParam(ctx, "id")

	var req model.AnnotationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	msg, err := h.svc.Annotate(ctx, id, req)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, msg)
}
