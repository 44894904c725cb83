package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/walknote/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/billing"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/users"
)

const userIDContextKey = "walknote_user_id"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingNotesService     = errors.New("notes service dependency required")
	errMissingUsersService     = errors.New("users service dependency required")
)

// SessionValidator validates the session token carried by a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// Dependencies wires the HTTP layer to the application services. Webhooks
// may be nil when no billing secret is configured; the endpoint then
// reports a server error, never a silent accept.
type Dependencies struct {
	Sessions     SessionValidator
	NotesService *notes.Service
	UsersService *users.Service
	Webhooks     *billing.Processor
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router for the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.NotesService == nil {
		return nil, errMissingNotesService
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		sessions: deps.Sessions,
		notes:    deps.NotesService,
		users:    deps.UsersService,
		webhooks: deps.Webhooks,
		logger:   logger,
	}

	router.POST("/billing/webhook", handler.handleBillingWebhook)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/users/init", handler.handleInitUser)
	protected.GET("/notes", handler.handleListNotes)
	protected.POST("/notes", handler.handleCreateNote)
	protected.PATCH("/notes/:id", handler.handleUpdateNote)
	protected.DELETE("/notes/:id", handler.handleDeleteNote)

	return router, nil
}

type httpHandler struct {
	sessions SessionValidator
	notes    *notes.Service
	users    *users.Service
	webhooks *billing.Processor
	logger   *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.UserID())
	c.Next()
}
