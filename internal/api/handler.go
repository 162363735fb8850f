package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/domain"
	"github.com/wabridge/wabridge/internal/biz/repo"
	"github.com/wabridge/wabridge/internal/biz/usecase"
)

const chatMediaListLimit = 200

// Handler provides the REST API surface over the bridge usecases.
type Handler struct {
	sessions *usecase.SessionUsecase
	sender   *usecase.SendPipeline
	pager    *usecase.HistoryPager
	pins     *usecase.PinBoard
	client   repo.ClientRepo
	archive  repo.ArchiveRepo
	log      zerolog.Logger
}

// NewHandler creates the handler.
func NewHandler(
	sessions *usecase.SessionUsecase,
	sender *usecase.SendPipeline,
	pager *usecase.HistoryPager,
	pins *usecase.PinBoard,
	client repo.ClientRepo,
	archive repo.ArchiveRepo,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		sessions: sessions,
		sender:   sender,
		pager:    pager,
		pins:     pins,
		client:   client,
		archive:  archive,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/send-message", h.handleSendMessage)
	mux.HandleFunc("/contacts", h.handleContacts)
	mux.HandleFunc("/chats", h.handleChats)
	mux.HandleFunc("/chat-messages/", h.handleChatMessages)
	mux.HandleFunc("/profile-picture/", h.handleProfilePicture)
	mux.HandleFunc("/pin-message", h.handlePinMessage)
	mux.HandleFunc("/pinned-messages/", h.handlePinnedMessages)
	mux.HandleFunc("/chat-media/", h.handleChatMedia)
	mux.HandleFunc("/mark-chat-seen/", h.handleMarkChatSeen)
	mux.HandleFunc("/health", h.handleHealth)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w)
		return
	}
	snap := h.sessions.Snapshot()
	resp := map[string]any{
		"isAuthenticated": snap.IsAuthenticated,
		"isReady":         snap.IsReady,
		"state":           snap.State,
	}
	if snap.QRCode != "" {
		resp["qrCode"] = snap.QRCode
	} else {
		resp["qrCode"] = nil
	}
	h.writeJSON(w, resp)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w)
		return
	}
	var req usecase.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &domain.PreconditionError{Reason: "request body is not valid JSON"})
		return
	}

	res, err := h.sender.Send(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := map[string]any{
		"success": true,
		"message": "message sent",
		"method":  res.Method,
	}
	if res.Partial {
		resp["partial"] = true
		resp["message"] = "original delivery failed, recipient was notified"
	}
	h.writeJSON(w, resp)
}

func (h *Handler) handleContacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w)
		return
	}
	if err := h.requireReady(w); err != nil {
		return
	}
	contacts, err := h.client.ListContacts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]domain.Contact, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, domain.Contact{
			ID:         c.ID,
			Name:       c.Name,
			Number:     c.Number,
			IsGroup:    c.IsGroup,
			IsBusiness: c.IsBusiness,
		})
	}
	h.writeJSON(w, map[string]any{"contacts": out})
}

func (h *Handler) handleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w)
		return
	}
	if err := h.requireReady(w); err != nil {
		return
	}
	chats, err := h.client.ListChats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]domain.Chat, 0, len(chats))
	for _, c := range chats {
		out = append(out, domain.Chat{
			ID:           c.ID,
			Name:         c.Name,
			IsGroup:      c.IsGroup,
			UnreadCount:  c.UnreadCount,
			LastMessage:  c.LastMessage,
			TimestampSec: c.TimestampSec,
		})
	}
	h.writeJSON(w, map[string]any{"chats": out})
}

func (h *Handler) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w)
		return
	}
	chatID := strings.TrimPrefix(r.URL.Path, "/chat-messages/")
	if chatID == "" {
		h.writeError(w, &domain.PreconditionError{Reason: "chat id is required"})
		return
	}
	if err := h.requireReady(w); err != nil {
		return
	}

	cursor := usecase.PageCursor{
		BeforeMessageID: r.URL.Query().Get("beforeId"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			h.writeError(w, &domain.ValidationError{Field: "limit", Reason: "must be an integer"})
			return
		}
		cursor.PageSize = n
	}

	msgs, err := h.pager.FetchPage(r.Context(), chatID, cursor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	h.writeJSON(w, map[string]any{"messages": msgs})
}

func (h *Handler) handleProfilePicture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/profile-picture/")
	chatID, wantImage := strings.CutSuffix(rest, "/image")
	if chatID == "" {
		h.writeError(w, &domain.PreconditionError{Reason: "chat id is required"})
		return
	}
	if err := h.requireReady(w); err != nil {
		return
	}

	if wantImage {
		img, contentType, err := h.client.ProfilePictureImage(r.Context(), chatID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(img)
		return
	}

	picURL, err := h.client.ProfilePictureURL(r.Context(), chatID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := map[string]any{"profilePicUrl": nil}
	if picURL != "" {
		resp["profilePicUrl"] = picURL
	}
	h.writeJSON(w, resp)
}

type pinRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Action    string `json:"action"` // pin | unpin
}

func (h *Handler) handlePinMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w)
		return
	}
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &domain.PreconditionError{Reason: "request body is not valid JSON"})
		return
	}
	if req.ChatID == "" || req.MessageID == "" {
		h.writeError(w, &domain.PreconditionError{Reason: "chatId and messageId are required"})
		return
	}

	switch req.Action {
	case "pin", "":
		msg, err := h.archive.GetMessage(r.Context(), req.MessageID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if msg == nil || msg.ChatID != req.ChatID {
			h.writeError(w, &domain.NotFoundError{Resource: "message", ID: req.MessageID})
			return
		}
		h.writeJSON(w, map[string]any{"success": true, "pinnedMessages": h.pins.Pin(msg)})
	case "unpin":
		h.writeJSON(w, map[string]any{"success": true, "pinnedMessages": h.pins.Unpin(req.ChatID, req.MessageID)})
	default:
		h.writeError(w, &domain.ValidationError{Field: "action", Reason: "must be pin or unpin"})
	}
}

func (h *Handler) handlePinnedMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w)
		return
	}
	chatID := strings.TrimPrefix(r.URL.Path, "/pinned-messages/")
	if chatID == "" {
		h.writeError(w, &domain.PreconditionError{Reason: "chat id is required"})
		return
	}
	h.writeJSON(w, map[string]any{"pinnedMessages": h.pins.List(chatID)})
}

func (h *Handler) handleChatMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w)
		return
	}
	chatID := strings.TrimPrefix(r.URL.Path, "/chat-media/")
	if chatID == "" {
		h.writeError(w, &domain.PreconditionError{Reason: "chat id is required"})
		return
	}
	entries, err := h.archive.ListChatMedia(r.Context(), chatID, chatMediaListLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []repo.ArchivedMedia{}
	}
	h.writeJSON(w, map[string]any{"media": entries})
}

func (h *Handler) handleMarkChatSeen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w)
		return
	}
	chatID := strings.TrimPrefix(r.URL.Path, "/mark-chat-seen/")
	if chatID == "" {
		h.writeError(w, &domain.PreconditionError{Reason: "chat id is required"})
		return
	}
	if err := h.requireReady(w); err != nil {
		return
	}
	if err := h.client.MarkChatSeen(r.Context(), chatID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"success": true})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w)
		return
	}
	resp := map[string]any{
		"status":  "ok",
		"session": h.sessions.Snapshot(),
	}
	if stats, err := h.archive.Stats(r.Context()); err == nil {
		resp["archive"] = stats
	} else {
		h.log.Warn().Err(err).Msg("archive stats unavailable")
	}
	h.writeJSON(w, resp)
}

// requireReady rejects operational endpoints while the session cannot serve
// them. Returns the written error so callers can bail with a bare return.
func (h *Handler) requireReady(w http.ResponseWriter) error {
	snap := h.sessions.Snapshot()
	if !snap.IsReady {
		err := &domain.PreconditionError{Reason: "session is not ready (state=" + string(snap.State) + ")"}
		h.writeError(w, err)
		return err
	}
	return nil
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// writeError maps the domain error taxonomy onto HTTP statuses. A session
// precondition answers 503 (retry later), a request precondition 400.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var pErr *domain.PreconditionError
	var vErr *domain.ValidationError
	var nfErr *domain.NotFoundError
	var dErr *domain.DeliveryError
	switch {
	case errors.As(err, &pErr):
		if strings.Contains(pErr.Reason, "session is not ready") {
			status = http.StatusServiceUnavailable
		} else {
			status = http.StatusBadRequest
		}
	case errors.As(err, &vErr):
		if vErr.Oversized {
			status = http.StatusRequestEntityTooLarge
		} else {
			status = http.StatusBadRequest
		}
	case errors.As(err, &nfErr):
		status = http.StatusNotFound
	case errors.As(err, &dErr):
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		h.log.Error().Err(err).Int("status", status).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": err.Error()})
}
