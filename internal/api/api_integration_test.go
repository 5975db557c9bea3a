// internal/api/api_integration_test.go
package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "lotto-ledger/internal"
	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository/sqlstore"
)

// testApp is the global application instance for testing.
var testApp *app.Application

// testServer is the httptest server.
var testServer *httptest.Server

// TestMain is the special entry point for Go tests, executed once before all tests.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "lotto-ledger-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create test directory: %v\n", err)
		os.Exit(1)
	}

	// 1. Point the application at a throwaway SQLite database.
	setupEnvVars(filepath.Join(dir, "ledger.db"))

	// 2. Initialize the application.
	testApp = app.NewApplication()
	if err := testApp.Initialize(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize test application: %v\n", err)
		os.Exit(1)
	}

	// 3. Start an httptest server to test the HTTP handling layer.
	testServer = httptest.NewServer(testApp.HTTPHandler)

	// 4. Run all tests.
	code := m.Run()

	// 5. Shut down application resources after tests.
	testServer.Close()
	if err := testApp.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shutdown test application: %v\n", err)
		code = 1
	}
	_ = os.RemoveAll(dir)

	os.Exit(code)
}

func setupEnvVars(dbPath string) {
	os.Setenv("DB_DRIVER", "sqlite3")
	os.Setenv("DB_PATH", dbPath)
	os.Setenv("LOG_LEVEL", "error")
	os.Setenv("LEDGER_DEFAULT_CURRENCY", "XAF")
	os.Setenv("LEDGER_DEFAULT_PAYMENT_LIMIT", "50000")
	os.Setenv("LEDGER_CANCELLATION_FEE_PERCENT", "0")
	os.Unsetenv("REDIS_ADDR")
}

// clearDatabase empties every ledger table so each test starts from a clean state.
func clearDatabase(t *testing.T) {
	tables := []string{
		"agent_wallets", "agent_commission_wallets", "agent_transactions", "agent_commissions",
		"staff_wallets", "staff_commission_wallets", "staff_transactions", "staff_commissions",
		"actors", "payment_limits", "wallet_credit_history", "lotto_participations",
	}
	for _, table := range tables {
		_, err := testApp.DB.Exec("DELETE FROM " + table)
		require.NoError(t, err, "Failed to clear table %s", table)
	}
}

// createTicket inserts a ticket directly, bypassing the wallet lookup.
func createTicket(t *testing.T, id, owner string, kind domain.ActorKind, stake int64) {
	now := time.Now().UTC()
	p := &domain.Participation{
		ID:           id,
		UserID:       owner,
		UserType:     kind,
		BetType:      domain.BetTypeSimple,
		Stake:        decimal.NewFromInt(stake),
		Currency:     "XAF",
		PurchaseDate: now,
		WinAmount:    decimal.Zero,
		Status:       domain.ParticipationActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := sqlstore.NewParticipationRepository().CreateParticipation(context.Background(), testApp.DB, p)
	require.NoError(t, err)
}

// makeRequest helper function: sends an HTTP request to the test server.
func makeRequest(t *testing.T, method, path, body string) (*http.Response, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, testServer.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(respBody)
}

func decodeMap(t *testing.T, body string) map[string]interface{} {
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &m), body)
	return m
}

func decimalAt(t *testing.T, m map[string]interface{}, keys ...string) decimal.Decimal {
	var cur interface{} = m
	for _, k := range keys {
		obj, ok := cur.(map[string]interface{})
		require.True(t, ok, "expected object at %s", k)
		cur = obj[k]
	}
	s, ok := cur.(string)
	require.True(t, ok, "expected decimal string at %v, got %v", keys, cur)
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestHealthAndMetrics(t *testing.T) {
	resp, body := makeRequest(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)

	resp, body = makeRequest(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "go_goroutines")
}

func TestWalletLifecycleIntegration(t *testing.T) {
	clearDatabase(t)
	const base = "/actors/agent/ag-1"

	resp, body := makeRequest(t, http.MethodPost, base+"/wallets", `{"email": "ag-1@shop.test"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assertDecimal(t, "0", decimalAt(t, decodeMap(t, body), "main", "balance"))

	t.Run("CreditWithAudit", func(t *testing.T) {
		resp, body := makeRequest(t, http.MethodPost, base+"/credits", `{"amount": "1000", "admin_id": "admin-1", "admin_email": "boss@shop.test"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		m := decodeMap(t, body)
		assert.Equal(t, "Credit successful", m["message"])
		assertDecimal(t, "1000", decimalAt(t, m, "new_balance"))

		resp, body = makeRequest(t, http.MethodGet, "/credit-history?recipient_id=ag-1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		history := decodeMap(t, body)
		assert.EqualValues(t, 1, history["total_count"])
	})

	t.Run("BetWithCommission", func(t *testing.T) {
		resp, body := makeRequest(t, http.MethodPut, "/commissions/agent/simple", `{"percentage": "10"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)

		resp, body = makeRequest(t, http.MethodPost, base+"/bets", `{"amount": "200", "reference_id": "bet-1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		m := decodeMap(t, body)
		assertDecimal(t, "800", decimalAt(t, m, "main", "balance"))
		assertDecimal(t, "20", decimalAt(t, m, "commission", "balance"))
		assertDecimal(t, "820", decimalAt(t, m, "total"))
	})

	t.Run("HistoryMatchesBalances", func(t *testing.T) {
		resp, body := makeRequest(t, http.MethodGet, base+"/transactions?limit=10&offset=0", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		m := decodeMap(t, body)
		assert.EqualValues(t, 3, m["total_count"])

		sum := decimal.Zero
		for _, raw := range m["data"].([]interface{}) {
			record := raw.(map[string]interface{})
			amount := decimal.RequireFromString(record["amount"].(string))
			if record["type"] == string(domain.TransactionTypeDebit) {
				amount = amount.Neg()
			}
			sum = sum.Add(amount)
		}
		assertDecimal(t, "820", sum)
	})

	t.Run("Rejections", func(t *testing.T) {
		cases := []struct {
			name, method, path, body string
			status                   int
			contains                 string
		}{
			{"NegativeCredit", http.MethodPost, base + "/credits", `{"amount": "-10"}`, http.StatusBadRequest, "INVALID_AMOUNT"},
			{"MissingAmount", http.MethodPost, base + "/credits", `{}`, http.StatusBadRequest, "Amount is required"},
			{"MalformedBody", http.MethodPost, base + "/credits", `{"amount": `, http.StatusBadRequest, "malformed request body"},
			{"UnknownKind", http.MethodGet, "/actors/robot/ag-1/wallets", "", http.StatusBadRequest, "unknown actor kind"},
			{"UnknownWallet", http.MethodGet, "/actors/agent/nobody/wallets", "", http.StatusNotFound, "WALLET_NOT_FOUND"},
			{"InsufficientBalance", http.MethodPost, base + "/bets", `{"amount": "5000"}`, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE"},
			{"StaffCannotBet", http.MethodPost, "/actors/staff/ag-1/bets", `{"amount": "1"}`, http.StatusBadRequest, "OPERATION_NOT_SUPPORTED"},
			{"CommissionOutOfRange", http.MethodPut, "/commissions/agent/simple", `{"percentage": "101"}`, http.StatusBadRequest, ""},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				resp, body := makeRequest(t, tc.method, tc.path, tc.body)
				assert.Equal(t, tc.status, resp.StatusCode, body)
				assert.Contains(t, body, tc.contains)
			})
		}
	})
}

func TestFractionalAmountsIntegration(t *testing.T) {
	clearDatabase(t)
	const base = "/actors/agent/ag-9"

	resp, body := makeRequest(t, http.MethodPost, base+"/wallets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var m map[string]interface{}
	for i := 0; i < 3; i++ {
		resp, body = makeRequest(t, http.MethodPost, base+"/credits", `{"amount": "0.1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		m = decodeMap(t, body)
	}
	assert.Equal(t, "0.3", m["new_balance"])

	resp, body = makeRequest(t, http.MethodPost, base+"/bets", `{"amount": "0.3"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	m = decodeMap(t, body)
	assert.Equal(t, "0", decimalAt(t, m, "main", "balance").String())

	resp, body = makeRequest(t, http.MethodPost, base+"/bets", `{"amount": "0.0001"}`)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode, body)

	resp, body = makeRequest(t, http.MethodPost, base+"/credits", `{"amount": "0.00001"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
}

func TestRegisterParticipationIntegration(t *testing.T) {
	clearDatabase(t)
	const base = "/actors/staff/st-4"

	resp, body := makeRequest(t, http.MethodPost, base+"/participations", `{"ticket_id": "t-40", "stake": "5"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, body)

	resp, body = makeRequest(t, http.MethodPost, base+"/wallets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = makeRequest(t, http.MethodPost, base+"/participations", `{"ticket_id": "t-40", "bet_type": "double", "stake": "5.25"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	m := decodeMap(t, body)
	assert.Equal(t, "t-40", m["id"])
	assert.Equal(t, string(domain.ParticipationActive), m["status"])
	assertDecimal(t, "5.25", decimalAt(t, m, "stake"))

	resp, body = makeRequest(t, http.MethodPost, base+"/participations", `{"ticket_id": "t-40", "stake": "1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)

	resp, body = makeRequest(t, http.MethodPost, "/participations/t-40/draw-result", `{"is_winner": false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, string(domain.ParticipationCompleted), decodeMap(t, body)["status"])
}

func TestRecordCreditHistoryIntegration(t *testing.T) {
	clearDatabase(t)

	resp, body := makeRequest(t, http.MethodPost, "/credit-history",
		`{"admin_id": "admin-7", "recipient_id": "st-7", "recipient_type": "staff", "amount": "12.5", "currency": "XAF"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	id := decodeMap(t, body)["id"]
	assert.NotEmpty(t, id)

	resp, body = makeRequest(t, http.MethodPost, "/credit-history",
		`{"admin_id": "admin-7", "recipient_id": "st-7", "recipient_type": "staff", "amount": "12.5"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = makeRequest(t, http.MethodGet, "/credit-history?recipient_id=st-7", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	history := decodeMap(t, body)
	assert.EqualValues(t, 1, history["total_count"])
	data, ok := history["data"].([]interface{})
	require.True(t, ok, body)
	require.Len(t, data, 1)
	assert.Equal(t, id, data[0].(map[string]interface{})["id"])
}

func TestPayoutIntegration(t *testing.T) {
	clearDatabase(t)
	const base = "/actors/agent/ag-2"

	resp, body := makeRequest(t, http.MethodPost, base+"/wallets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	resp, body = makeRequest(t, http.MethodPost, base+"/credits", `{"amount": "2000"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	createTicket(t, "t-1", "player-1", domain.ActorKindAgent, 100)
	resp, body = makeRequest(t, http.MethodPost, "/participations/t-1/draw-result", `{"is_winner": true, "win_amount": "1000"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, string(domain.ParticipationCompleted), decodeMap(t, body)["status"])

	t.Run("PaysOnce", func(t *testing.T) {
		resp, body := makeRequest(t, http.MethodPost, base+"/payouts", `{"ticket_id": "t-1", "win_amount": "1000"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		m := decodeMap(t, body)
		assertDecimal(t, "1000", decimalAt(t, m, "payment_amount"))
		assertDecimal(t, "20", decimalAt(t, m, "commission_amount"))
		assertDecimal(t, "3000", decimalAt(t, m, "wallets", "main", "balance"))
		assertDecimal(t, "20", decimalAt(t, m, "wallets", "commission", "balance"))

		resp, body = makeRequest(t, http.MethodPost, base+"/payouts", `{"ticket_id": "t-1", "win_amount": "1000"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, body, "ALREADY_PAID")
	})

	t.Run("LimitOverride", func(t *testing.T) {
		resp, body := makeRequest(t, http.MethodPut, "/payment-limits/ag-2", `{"max_payment_amount": "100", "updated_by": "admin-1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)

		createTicket(t, "t-2", "player-2", domain.ActorKindAgent, 50)
		resp, body = makeRequest(t, http.MethodPost, "/participations/t-2/draw-result", `{"is_winner": true, "win_amount": "500"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)

		resp, body = makeRequest(t, http.MethodPost, base+"/payouts", `{"ticket_id": "t-2", "win_amount": "500"}`)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, body)
		assertDecimal(t, "100", decimalAt(t, decodeMap(t, body), "limit"))

		resp, _ = makeRequest(t, http.MethodDelete, "/payment-limits/ag-2", "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, body = makeRequest(t, http.MethodGet, "/payment-limits/ag-2", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		m := decodeMap(t, body)
		assert.Equal(t, string(domain.LimitScopeGlobal), m["scope"])
		assertDecimal(t, "50000", decimalAt(t, m, "max_payment_amount"))

		resp, body = makeRequest(t, http.MethodPost, base+"/payouts", `{"ticket_id": "t-2", "win_amount": "500"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode, body)
	})

	t.Run("GlobalLimitCannotBeRemoved", func(t *testing.T) {
		resp, _ := makeRequest(t, http.MethodDelete, "/payment-limits/global", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ConvertCommission", func(t *testing.T) {
		resp, body := makeRequest(t, http.MethodPost, base+"/commission-conversions", `{"amount": "30"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		m := decodeMap(t, body)
		assertDecimal(t, "0", decimalAt(t, m, "commission", "balance"))

		resp, body = makeRequest(t, http.MethodPost, base+"/commission-conversions", `{"amount": "1"}`)
		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		assert.Contains(t, body, "INSUFFICIENT_COMMISSION_BALANCE")

		resp, body = makeRequest(t, http.MethodPut, "/actors/staff/ag-2/permissions", `{"can_convert_commission": false}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "an agent profile is not reachable through the staff route")

		resp, body = makeRequest(t, http.MethodPut, base+"/permissions", `{"can_convert_commission": false}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.Equal(t, false, decodeMap(t, body)["can_convert_commission"])

		resp, body = makeRequest(t, http.MethodPost, base+"/commission-conversions", `{"amount": "1"}`)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Contains(t, body, "CONVERSION_DISABLED")
	})
}

func TestCancelIntegration(t *testing.T) {
	clearDatabase(t)
	createTicket(t, "t-c", "ag-3", domain.ActorKindAgent, 100)

	resp, body := makeRequest(t, http.MethodPost, "/participations/t-c/cancel", `{"actor_id": "ag-4", "kind": "agent"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "NOT_OWNER")

	resp, body = makeRequest(t, http.MethodPost, "/participations/t-c/cancel", `{"actor_id": "ag-3", "kind": "lottery"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = makeRequest(t, http.MethodPost, "/participations/t-c/cancel", `{"actor_id": "ag-3", "kind": "agent"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, string(domain.ParticipationCancelled), decodeMap(t, body)["status"])

	resp, body = makeRequest(t, http.MethodPost, "/participations/t-c/cancel", `{"actor_id": "ag-3", "kind": "agent"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "ALREADY_FINAL")

	resp, body = makeRequest(t, http.MethodPost, "/participations/missing/cancel", `{"actor_id": "ag-3", "kind": "agent"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "TICKET_NOT_FOUND")
}
