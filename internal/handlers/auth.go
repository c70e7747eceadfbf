package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"istqrar/internal/repository"
	"istqrar/internal/service"
)

// ActorFromHeaders reads the caller identity set by the upstream auth
// layer. Requests without a valid X-User-ID are rejected.
func ActorFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetHeader("X-User-ID"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID"})
			return
		}
		c.Set("actor", service.Actor{
			UserID: userID,
			Role:   c.GetHeader("X-User-Role"),
		})
		c.Next()
	}
}

func actor(c *gin.Context) service.Actor {
	a, _ := c.Get("actor")
	return a.(service.Actor)
}

func statusFromErr(err error) int {
	switch {
	case errors.Is(err, repository.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrWalletNotFound),
		errors.Is(err, repository.ErrGameyaNotFound),
		errors.Is(err, repository.ErrLoanNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrInsufficientFunds),
		errors.Is(err, repository.ErrGameyaNotActive),
		errors.Is(err, repository.ErrGameyaFull),
		errors.Is(err, repository.ErrAlreadyMember),
		errors.Is(err, repository.ErrNotAMember),
		errors.Is(err, repository.ErrAlreadyContributed),
		errors.Is(err, repository.ErrNoEligibleBeneficiary),
		errors.Is(err, repository.ErrAlreadyProcessed),
		errors.Is(err, repository.ErrNotRepayable),
		errors.Is(err, repository.ErrOverRepayment),
		errors.Is(err, repository.ErrActiveLoanExists),
		errors.Is(err, repository.ErrTrustScoreTooLow):
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func abortWithErr(c *gin.Context, err error) {
	c.JSON(statusFromErr(err), gin.H{"error": err.Error()})
}
