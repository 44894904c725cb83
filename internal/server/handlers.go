package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/walknote/backend/internal/billing"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/styles"
)

const (
	defaultPage     = 1
	defaultPageSize = 6

	maxAudioBytes = 32 << 20
)

func (h *httpHandler) handleInitUser(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	user, err := h.users.Ensure(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to init user",
			zap.String("code", "users.init_failed"),
			zap.String("user_id", userID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to init user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	page := coercePositive(c.Query("page"), defaultPage)
	pageSize := coercePositive(c.Query("pageSize"), defaultPageSize)

	isPremium, err := h.users.IsPremium(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to fetch user for premium check",
			zap.String("code", "notes.list.user_fetch_failed"),
			zap.String("user_id", userID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to verify user status."})
		return
	}

	result, err := h.notes.List(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.logger.Error("failed to fetch notes list",
			zap.String("code", "notes.list.failed"),
			zap.String("user_id", userID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notes."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notes":     result.Notes,
		"page":      result.Page,
		"pageSize":  result.PageSize,
		"total":     result.Total,
		"styles":    styles.All(),
		"isPremium": isPremium,
	})
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	styleID := strings.TrimSpace(c.PostForm("styleId"))
	if _, ok := styles.ByID(styleID); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid style selection."})
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided."})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes+1))
	if err != nil || len(audio) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided."})
		return
	}
	if len(audio) > maxAudioBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Audio file is too large."})
		return
	}

	note, err := h.notes.Create(c.Request.Context(), notes.CreateRequest{
		UserID:   userID,
		StyleID:  styleID,
		Audio:    audio,
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		h.respondNoteError(c, userID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"note": note})
}

type updateNotePayload struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	noteID := c.Param("id")

	var payload updateNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
		return
	}

	note, err := h.notes.Update(c.Request.Context(), userID, noteID, notes.UpdatePatch{
		Title:   payload.Title,
		Content: payload.Content,
	})
	if err != nil {
		h.respondNoteError(c, userID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"note": note})
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	noteID := c.Param("id")

	if err := h.notes.Delete(c.Request.Context(), userID, noteID); err != nil {
		h.respondNoteError(c, userID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleBillingWebhook(c *gin.Context) {
	if h.webhooks == nil {
		h.logger.Error("billing webhook secret not configured",
			zap.String("code", "billing.webhook.missing_secret"))
		c.Status(http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	err = h.webhooks.Process(c.Request.Context(), body, c.Request.Header)
	if errors.Is(err, billing.ErrInvalidSignature) {
		c.Status(http.StatusForbidden)
		return
	}
	if err != nil {
		h.logger.Error("failed processing webhook",
			zap.String("code", "billing.webhook.error"),
			zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusAccepted)
}

// respondNoteError maps the service taxonomy onto HTTP statuses. Raw
// dependency errors stay in the logs; clients only get short copy.
func (h *httpHandler) respondNoteError(c *gin.Context, userID string, err error) {
	switch {
	case errors.Is(err, notes.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": "LIMIT_REACHED", "message": notes.QuotaMessage})
	case errors.Is(err, notes.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request."})
	case errors.Is(err, notes.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, notes.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found."})
	default:
		h.logger.Error("note operation failed",
			zap.String("code", "notes.request_failed"),
			zap.String("user_id", userID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
	}
}

// coercePositive parses a positive integer query value, falling back to
// the default on anything non-numeric or non-positive.
func coercePositive(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
