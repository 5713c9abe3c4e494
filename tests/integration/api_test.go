package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"invest-ledger/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed), "body: %s", raw)
	}
	return resp, parsed
}

// Full deposit round trip over HTTP: user stages a transfer, admin confirms
// it, user sees the credited balance.
func TestHTTPDepositRoundTrip(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.newUser(t)
	adminID := app.newAdmin(t)
	userToken := app.token(t, userID, domain.RoleUser)
	adminToken := app.token(t, adminID, domain.RoleAdmin)

	resp, body := app.do(t, http.MethodPost, "/api/v1/transfers", userToken, map[string]interface{}{
		"type":          "deposit",
		"usd_value":     "500",
		"crypto_amount": "0.008",
		"currency":      "BTC",
		"tx_hash":       "0xhttpdeposit1",
		"confirmations": 3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pendingID := body["data"].(map[string]interface{})["id"].(string)

	resp, _ = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/transfers/%s/confirm", pendingID), adminToken,
		map[string]interface{}{"notes": "verified on-chain"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = app.do(t, http.MethodGet, "/api/v1/ledger/balance", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "500", data["main_balance"])
	assert.Equal(t, "500", data["total_balance"])

	resp, body = app.do(t, http.MethodGet, "/api/v1/ledger/transactions", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["data"].(map[string]interface{})["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "completed", items[0].(map[string]interface{})["status"])
}

func TestHTTPAdminRoutesRejectUsers(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.newUser(t)
	userToken := app.token(t, userID, domain.RoleUser)

	resp, body := app.do(t, http.MethodPost, "/api/v1/admin/sweeps/expiry", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "AUTH_002", body["error_code"])
}

func TestHTTPRequiresToken(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, body := app.do(t, http.MethodGet, "/api/v1/ledger/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTH_001", body["error_code"])
}

func TestHTTPWithdrawalPipeline(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.newUser(t)
	adminID := app.newAdmin(t)
	userToken := app.token(t, userID, domain.RoleUser)
	adminToken := app.token(t, adminID, domain.RoleAdmin)

	// Fund via confirmed deposit.
	resp, body := app.do(t, http.MethodPost, "/api/v1/transfers", userToken, map[string]interface{}{
		"type":          "deposit",
		"usd_value":     "500",
		"crypto_amount": "0.008",
		"currency":      "BTC",
		"tx_hash":       "0xhttpdeposit2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pendingID := body["data"].(map[string]interface{})["id"].(string)
	resp, _ = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/transfers/%s/confirm", pendingID), adminToken, map[string]interface{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = app.do(t, http.MethodPost, "/api/v1/withdrawals", userToken, map[string]interface{}{
		"balance_type":   "main",
		"amount":         "400",
		"crypto_amount":  "0.006",
		"wallet_address": "bc1qhttp",
		"chain":          "bitcoin",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	wdID := body["data"].(map[string]interface{})["id"].(string)

	resp, _ = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%s/approve", wdID), adminToken, map[string]interface{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%s/process", wdID), adminToken,
		map[string]interface{}{"tx_hash": "0xhttpbroadcast"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = app.do(t, http.MethodGet, "/api/v1/ledger/balance", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "100", body["data"].(map[string]interface{})["main_balance"])

	resp, body = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%s/complete", wdID), adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["data"].(map[string]interface{})["status"])

	// Completing twice is an illegal transition.
	resp, body = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%s/complete", wdID), adminToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "LED_002", body["error_code"])
}

func TestHTTPManualSweep(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	adminID := app.newAdmin(t)
	adminToken := app.token(t, adminID, domain.RoleAdmin)

	resp, body := app.do(t, http.MethodPost, "/api/v1/admin/sweeps/expiry", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["data"].(map[string]interface{})["processed"])
}

func TestHTTPValidationFailure(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.newUser(t)
	userToken := app.token(t, userID, domain.RoleUser)

	// tx_hash with a space fails the safe_id validator.
	resp, body := app.do(t, http.MethodPost, "/api/v1/transfers", userToken, map[string]interface{}{
		"type":          "deposit",
		"usd_value":     "500",
		"crypto_amount": "0.008",
		"currency":      "BTC",
		"tx_hash":       "0xbad hash",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "LED_004", body["error_code"])
}
