package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"istqrar/internal/models"
	"istqrar/internal/repository"
	"istqrar/internal/service"
	"istqrar/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupIntegrationRouter(t *testing.T) (*gin.Engine, func()) {
	pool, teardown := testutil.SetupTestDB(t)
	walletRepo := repository.NewWalletPGRepository(pool, testLogger)
	gameyaRepo := repository.NewGameyaPGRepository(pool, testLogger)
	loanRepo := repository.NewLoanPGRepository(pool, testLogger)
	trustRepo := repository.NewTrustPGRepository(pool, testLogger)

	r := gin.Default()
	v1 := r.Group("/api/v1", ActorFromHeaders())
	NewWalletHTTPHandler(service.NewWalletService(walletRepo, testLogger)).RegisterRoutes(v1)
	NewGameyaHTTPHandler(service.NewGameyaService(gameyaRepo, trustRepo, testLogger)).RegisterRoutes(v1)
	NewLoanHTTPHandler(service.NewLoanService(loanRepo, trustRepo, testLogger)).RegisterRoutes(v1)
	return r, teardown
}

func do(r *gin.Engine, method, path string, userID uuid.UUID, role string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewBuffer(b)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID.String())
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIntegration_DepositAndWithdraw(t *testing.T) {
	r, teardown := setupIntegrationRouter(t)
	defer teardown()
	userID := uuid.New()

	w := do(r, "POST", "/api/v1/wallet", userID, "", map[string]any{
		"operationType": "DEPOSIT",
		"amount":        "100.50",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct{ Balance string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	d, _ := decimal.NewFromString(resp.Balance)
	assert.True(t, d.Equal(decimal.NewFromFloat(100.5)))

	w = do(r, "POST", "/api/v1/wallet", userID, "", map[string]any{
		"operationType": "WITHDRAW",
		"amount":        "50.25",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	d, _ = decimal.NewFromString(resp.Balance)
	assert.True(t, d.Equal(decimal.NewFromFloat(50.25)))

	w = do(r, "POST", "/api/v1/wallet", userID, "", map[string]any{
		"operationType": "WITHDRAW",
		"amount":        "1000",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestIntegration_GameyaLifecycle(t *testing.T) {
	r, teardown := setupIntegrationRouter(t)
	defer teardown()
	creator, member := uuid.New(), uuid.New()

	w := do(r, "POST", "/api/v1/gameyas", creator, "", map[string]any{
		"name":               "Neighbors",
		"contributionAmount": "100",
		"durationRounds":     2,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var g models.Gameya
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))

	w = do(r, "POST", "/api/v1/gameyas/"+g.ID.String()+"/join", member, "", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	// Contribute without funds.
	w = do(r, "POST", "/api/v1/gameyas/"+g.ID.String()+"/contribute", member, "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	do(r, "POST", "/api/v1/wallet", member, "", map[string]any{
		"operationType": "DEPOSIT",
		"amount":        "100",
	})
	w = do(r, "POST", "/api/v1/gameyas/"+g.ID.String()+"/contribute", member, "", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	// Duplicate contribution for the same round.
	w = do(r, "POST", "/api/v1/gameyas/"+g.ID.String()+"/contribute", member, "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Payout by a non-creator is forbidden.
	w = do(r, "POST", "/api/v1/gameyas/"+g.ID.String()+"/payout", member, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, "POST", "/api/v1/gameyas/"+g.ID.String()+"/payout", creator, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var res models.PayoutResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Round)
	assert.Equal(t, member, res.BeneficiaryID)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(100)))
}

func TestIntegration_LoanLifecycle(t *testing.T) {
	r, teardown := setupIntegrationRouter(t)
	defer teardown()
	borrower := uuid.New()
	admin := uuid.New()

	// Default trust score 50 is below the application threshold.
	w := do(r, "POST", "/api/v1/loans", borrower, "", map[string]any{
		"amount":                "1000",
		"purpose":               "inventory",
		"repaymentPeriodMonths": 6,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Build trust by contributing to a gameya.
	wG := do(r, "POST", "/api/v1/gameyas", borrower, "", map[string]any{
		"name":               "Trust builder",
		"contributionAmount": "10",
		"durationRounds":     3,
	})
	require.Equal(t, http.StatusCreated, wG.Code)
	var g models.Gameya
	require.NoError(t, json.Unmarshal(wG.Body.Bytes(), &g))
	do(r, "POST", "/api/v1/gameyas/"+g.ID.String()+"/join", borrower, "", nil)
	do(r, "POST", "/api/v1/wallet", borrower, "", map[string]any{"operationType": "DEPOSIT", "amount": "30"})
	for round := 1; round <= 2; round++ {
		w = do(r, "POST", "/api/v1/gameyas/"+g.ID.String()+"/contribute", borrower, "", map[string]any{"round": round})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	// 50 + 5 + 5 = 60, right at the threshold.

	w = do(r, "POST", "/api/v1/loans", borrower, "", map[string]any{
		"amount":                "1000",
		"purpose":               "inventory",
		"repaymentPeriodMonths": 6,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var l models.Loan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &l))

	w = do(r, "POST", "/api/v1/loans/"+l.ID.String()+"/approve", admin, "admin", map[string]any{
		"interestRate": "10",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, "POST", "/api/v1/wallet", borrower, "", map[string]any{"operationType": "DEPOSIT", "amount": "90"})
	require.Equal(t, http.StatusOK, w.Code)

	// 1000 disbursed + 10 left from the deposit + 90 = 1100 = total due.
	w = do(r, "POST", "/api/v1/loans/"+l.ID.String()+"/repay", borrower, "", map[string]any{"amount": "1100"})
	require.Equal(t, http.StatusOK, w.Code)
	var repayResp struct {
		Loan models.Loan `json:"loan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &repayResp))
	assert.Equal(t, models.LoanPaid, repayResp.Loan.Status)
}
