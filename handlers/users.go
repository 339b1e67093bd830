package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
	"github.com/imaginify/imaginify/backend/go-services/internal/users"
	"github.com/imaginify/imaginify/backend/go-services/pkg/middleware"
)

// UsersHandler exposes the user actions to authenticated callers.
type UsersHandler struct {
	svc *users.Service
}

func NewUsersHandler(svc *users.Service) *UsersHandler {
	return &UsersHandler{svc: svc}
}

// Register routes under /users. pageCache, when non-nil, fronts the
// per-user read.
func (h *UsersHandler) Register(rg *gin.RouterGroup, auth, pageCache gin.HandlerFunc) {
	u := rg.Group("/users", auth)
	u.GET("/me", h.Me)
	read := []gin.HandlerFunc{requireSelf}
	if pageCache != nil {
		read = append(read, pageCache)
	}
	u.GET("/:id", append(read, h.Get)...)
	u.POST("/:id/credits", h.AdjustCredits)
}

// requireSelf runs ahead of the page cache so cached records are only
// served to their owner.
func requireSelf(c *gin.Context) {
	if c.Param("id") != middleware.Subject(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperror.HTTPStatus(err), gin.H{"error": apperror.Message(err)})
}

// Me returns the caller's own record.
func (h *UsersHandler) Me(c *gin.Context) {
	u, err := h.svc.GetByExternalID(c.Request.Context(), middleware.Subject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Get returns a record by identity provider id.
func (h *UsersHandler) Get(c *gin.Context) {
	u, err := h.svc.GetByExternalID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type creditsRequest struct {
	Amount int64 `json:"amount"`
}

// AdjustCredits applies {amount} to the caller's balance. The path carries
// the local user id.
func (h *UsersHandler) AdjustCredits(c *gin.Context) {
	var req creditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.svc.AdjustOwnCredits(c.Request.Context(), middleware.Subject(c), c.Param("id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
