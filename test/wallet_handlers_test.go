package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"istqrar/internal/handlers"
	"istqrar/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func setupRouter(mockService *MockWalletService) *gin.Engine {
	r := gin.Default()
	v1 := r.Group("/api/v1", handlers.ActorFromHeaders())
	handlers.NewWalletHTTPHandler(mockService).RegisterRoutes(v1)
	return r
}

func doWalletOp(r *gin.Engine, userID uuid.UUID, op, amount string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]interface{}{
		"operationType": op,
		"amount":        amount,
	})
	req, _ := http.NewRequest("POST", "/api/v1/wallet", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID.String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleWalletOperation_Deposit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockService := NewMockWalletService(ctrl)
	r := setupRouter(mockService)

	userID := uuid.New()
	mockService.EXPECT().
		Deposit(gomock.Any(), userID, decimal.NewFromInt(100)).
		Return(decimal.NewFromInt(200), nil)

	w := doWalletOp(r, userID, "DEPOSIT", "100")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "200")
}

func TestHandleWalletOperation_Withdraw_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockService := NewMockWalletService(ctrl)
	r := setupRouter(mockService)

	userID := uuid.New()
	mockService.EXPECT().
		Withdraw(gomock.Any(), userID, decimal.NewFromInt(100)).
		Return(decimal.NewFromInt(0), repository.ErrInsufficientFunds)

	w := doWalletOp(r, userID, "WITHDRAW", "100")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient funds")
}

func TestHandleWalletOperation_InvalidOperationType(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockService := NewMockWalletService(ctrl)
	r := setupRouter(mockService)

	w := doWalletOp(r, uuid.New(), "TRANSFER", "100")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleWalletOperation_NonPositiveAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockService := NewMockWalletService(ctrl)
	r := setupRouter(mockService)

	w := doWalletOp(r, uuid.New(), "DEPOSIT", "-5")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleWalletOperation_MissingActor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockService := NewMockWalletService(ctrl)
	r := setupRouter(mockService)

	body, _ := json.Marshal(map[string]interface{}{
		"operationType": "DEPOSIT",
		"amount":        "100",
	})
	req, _ := http.NewRequest("POST", "/api/v1/wallet", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
