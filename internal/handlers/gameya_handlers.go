package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"istqrar/internal/models"
	"istqrar/internal/service"
)

type GameyaService interface {
	Create(ctx context.Context, creatorID uuid.UUID, req models.CreateGameyaRequest) (models.Gameya, error)
	Get(ctx context.Context, id uuid.UUID) (models.Gameya, error)
	List(ctx context.Context) ([]models.Gameya, error)
	MyGameyas(ctx context.Context, userID uuid.UUID) ([]models.Gameya, error)
	Join(ctx context.Context, gameyaID, userID uuid.UUID) (models.Membership, error)
	Leave(ctx context.Context, gameyaID, userID uuid.UUID) error
	Contribute(ctx context.Context, gameyaID, userID uuid.UUID, round int, amount *decimal.Decimal) (models.Contribution, error)
	Payout(ctx context.Context, actor service.Actor, gameyaID uuid.UUID) (models.PayoutResult, error)
	ContributionHistory(ctx context.Context, gameyaID, userID uuid.UUID) ([]models.Contribution, error)
	Summary(ctx context.Context, gameyaID uuid.UUID) (service.ActiveSummary, error)
}

type GameyaHTTPHandler struct {
	service GameyaService
}

func NewGameyaHTTPHandler(service GameyaService) *GameyaHTTPHandler {
	return &GameyaHTTPHandler{service: service}
}

func (h *GameyaHTTPHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/gameyas", h.HandleCreate)
	r.GET("/gameyas", h.HandleList)
	r.GET("/gameyas/mine", h.HandleMine)
	r.GET("/gameyas/:gameya_id", h.HandleGet)
	r.GET("/gameyas/:gameya_id/summary", h.HandleSummary)
	r.GET("/gameyas/:gameya_id/contributions", h.HandleContributions)
	r.POST("/gameyas/:gameya_id/join", h.HandleJoin)
	r.POST("/gameyas/:gameya_id/leave", h.HandleLeave)
	r.POST("/gameyas/:gameya_id/contribute", h.HandleContribute)
	r.POST("/gameyas/:gameya_id/payout", h.HandlePayout)
}

func gameyaID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("gameya_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gameya_id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *GameyaHTTPHandler) HandleCreate(c *gin.Context) {
	var req models.CreateGameyaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	g, err := h.service.Create(c.Request.Context(), actor(c).UserID, req)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *GameyaHTTPHandler) HandleList(c *gin.Context) {
	gs, err := h.service.List(c.Request.Context())
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameyas": gs})
}

func (h *GameyaHTTPHandler) HandleMine(c *gin.Context) {
	gs, err := h.service.MyGameyas(c.Request.Context(), actor(c).UserID)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameyas": gs})
}

func (h *GameyaHTTPHandler) HandleGet(c *gin.Context) {
	id, ok := gameyaID(c)
	if !ok {
		return
	}
	g, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GameyaHTTPHandler) HandleSummary(c *gin.Context) {
	id, ok := gameyaID(c)
	if !ok {
		return
	}
	s, err := h.service.Summary(c.Request.Context(), id)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *GameyaHTTPHandler) HandleContributions(c *gin.Context) {
	id, ok := gameyaID(c)
	if !ok {
		return
	}
	cs, err := h.service.ContributionHistory(c.Request.Context(), id, actor(c).UserID)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contributions": cs})
}

func (h *GameyaHTTPHandler) HandleJoin(c *gin.Context) {
	id, ok := gameyaID(c)
	if !ok {
		return
	}
	m, err := h.service.Join(c.Request.Context(), id, actor(c).UserID)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *GameyaHTTPHandler) HandleLeave(c *gin.Context) {
	id, ok := gameyaID(c)
	if !ok {
		return
	}
	if err := h.service.Leave(c.Request.Context(), id, actor(c).UserID); err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "You have left the Gameya."})
}

func (h *GameyaHTTPHandler) HandleContribute(c *gin.Context) {
	id, ok := gameyaID(c)
	if !ok {
		return
	}
	// Body is optional; round and amount default to the gameya's own.
	var req models.ContributeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
			return
		}
	}
	contribution, err := h.service.Contribute(c.Request.Context(), id, actor(c).UserID, req.Round, req.Amount)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, contribution)
}

func (h *GameyaHTTPHandler) HandlePayout(c *gin.Context) {
	id, ok := gameyaID(c)
	if !ok {
		return
	}
	res, err := h.service.Payout(c.Request.Context(), actor(c), id)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
