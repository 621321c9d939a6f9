package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"atsboost/internal/auth"
	"atsboost/internal/chat"
	"atsboost/internal/models"
)

// maxUploadSize bounds a single attachment request.
const maxUploadSize = 10 << 20

type chatData struct {
	pageData
	Messages []models.Message
	Draft    string
	Accept   string
	WSPath   string
}

func (h *Handler) ChatPage(w http.ResponseWriter, r *http.Request) {
	h.renderChat(w, r, http.StatusOK, "")
}

func (h *Handler) renderChat(w http.ResponseWriter, r *http.Request, status int, draft string) {
	user := auth.UserFrom(r.Context())

	// Load failures are logged by the service; the page still renders.
	msgs, _ := h.chat.History(r.Context(), user.ID)

	h.render(w, status, "chat", chatData{
		pageData: pageData{User: user},
		Messages: msgs,
		Draft:    draft,
		Accept:   chat.AcceptAttribute(),
		WSPath:   "/ws",
	})
}

// ChatSend posts the compose form. The input is cleared only when the send succeeds.
func (h *Handler) ChatSend(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	content := r.FormValue("content")

	if _, err := h.chat.SendText(r.Context(), user.ID, content); err != nil {
		h.renderChat(w, r, http.StatusOK, content)
		return
	}
	redirect(w, "/chat", http.StatusSeeOther)
}

// ChatUpload posts the file picker form.
func (h *Handler) ChatUpload(w http.ResponseWriter, r *http.Request) {
	if _, err := h.receiveAttachment(w, r); err != nil {
		h.logger.Infow("Attachment not sent", "error", err)
	}
	redirect(w, "/chat", http.StatusSeeOther)
}

// GetMessages handles GET /api/messages
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	msgs, err := h.chat.History(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type sendRequest struct {
	Content string `json:"content"`
}

type sendFailure struct {
	Error string `json:"error"`
	Draft string `json:"draft"`
}

// CreateMessage handles POST /api/messages
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.chat.SendText(r.Context(), user.ID, req.Content)
	switch {
	case errors.Is(err, models.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "content is required")
	case err != nil:
		writeJSON(w, http.StatusBadGateway, sendFailure{Error: "Failed to send message", Draft: req.Content})
	default:
		writeJSON(w, http.StatusCreated, msg)
	}
}

// UploadAttachment handles POST /api/messages/attachments
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	msg, err := h.receiveAttachment(w, r)
	switch {
	case errors.Is(err, models.ErrUnsupportedAttachment):
		writeError(w, http.StatusBadRequest, "Only "+chat.AcceptAttribute()+" files are accepted")
	case errors.Is(err, errTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "File is larger than 10 MB")
	case errors.Is(err, errNoFile):
		writeError(w, http.StatusBadRequest, "file is required")
	case err != nil:
		writeError(w, http.StatusBadGateway, "Failed to upload file")
	default:
		writeJSON(w, http.StatusCreated, msg)
	}
}

var (
	errNoFile   = errors.New("no file in request")
	errTooLarge = errors.New("upload exceeds size limit")
)

func (h *Handler) receiveAttachment(w http.ResponseWriter, r *http.Request) (*models.Message, error) {
	user := auth.UserFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errTooLarge
		}
		return nil, errNoFile
	}
	defer file.Close()

	if !chat.IsAcceptedFile(header.Filename) {
		return nil, models.ErrUnsupportedAttachment
	}

	return h.chat.SendFile(r.Context(), user.ID, auth.TokenFromRequest(r), chat.Attachment{
		Name: header.Filename,
		Body: file,
	})
}

// HandleWebSocket handles GET /ws
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.ws.Serve(w, r, auth.UserFrom(r.Context()).ID)
}
