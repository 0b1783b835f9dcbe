package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Rrens/apex-chat/internal/api/middleware"
	"github.com/Rrens/apex-chat/internal/api/response"
	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/Rrens/apex-chat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ChatHandler serves chat sessions and their transcripts
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// List returns the user's chats
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	chats, err := h.chatService.ListChats(r.Context(), account.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list chats")
		response.InternalError(w, "Failed to list chats")
		return
	}

	response.OK(w, map[string][]domain.Chat{"chats": chats})
}

// Create creates a new chat
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	// body is optional
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid request body")
		return
	}

	chat, err := h.chatService.CreateChat(r.Context(), account.ID, req.Title)
	if err != nil {
		if errors.Is(err, service.ErrTitleTooLong) {
			response.BadRequest(w, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to create chat")
		response.InternalError(w, "Failed to create chat")
		return
	}

	response.Created(w, map[string]*domain.Chat{"chat": chat})
}

// Messages returns the transcript of a chat owned by the user
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		response.NotFound(w, "Chat not found")
		return
	}

	messages, err := h.chatService.ListMessages(r.Context(), account.ID, chatID)
	if err != nil {
		if errors.Is(err, service.ErrChatNotFound) {
			response.NotFound(w, "Chat not found")
			return
		}
		log.Error().Err(err).Str("chat_id", chatID.String()).Msg("Failed to fetch messages")
		response.InternalError(w, "Failed to fetch messages")
		return
	}

	response.OK(w, map[string][]domain.ChatMessage{"messages": messages})
}
