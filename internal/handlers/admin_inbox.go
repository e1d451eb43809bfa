package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/platform/pagination"
	"github.com/templatemart/api/internal/services"
)

type messageListResponse struct {
	Messages      []messagePayload `json:"messages"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func (h *AdminHandlers) inboxReady(w http.ResponseWriter, r *http.Request) bool {
	if h.messages == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("inbox_unavailable", "message service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *AdminHandlers) listMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.inboxReady(w, r) {
		return
	}
	values := r.URL.Query()
	page, err := pagination.Parse(values, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
		return
	}
	var unreadOnly bool
	if raw := strings.TrimSpace(values.Get("unread")); raw != "" {
		unreadOnly, err = strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_query", "unread must be a boolean", http.StatusBadRequest))
			return
		}
	}

	result, err := h.messages.List(ctx, services.MessageListFilter{
		UnreadOnly: unreadOnly,
		Pagination: domain.Pagination{PageSize: page.PageSize, PageToken: page.PageToken},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := messageListResponse{Messages: make([]messagePayload, 0, len(result.Items)), NextPageToken: result.NextPageToken}
	for _, m := range result.Items {
		resp.Messages = append(resp.Messages, newMessagePayload(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandlers) getMessage(w http.ResponseWriter, r *http.Request) {
	if !h.inboxReady(w, r) {
		return
	}
	msg, err := h.messages.Get(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newMessagePayload(msg))
}

func (h *AdminHandlers) markMessageRead(w http.ResponseWriter, r *http.Request) {
	if !h.inboxReady(w, r) {
		return
	}
	msg, err := h.messages.MarkRead(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newMessagePayload(msg))
}

func (h *AdminHandlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if !h.inboxReady(w, r) {
		return
	}
	if err := h.messages.Delete(r.Context(), chi.URLParam(r, "messageID")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
