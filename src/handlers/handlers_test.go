package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/processors"
	"github.com/username/tradejournal/backend/src/security"
	"github.com/username/tradejournal/backend/src/services"
)

const csvHeader = "Run Date,Action,Symbol,Description,Type,Quantity,Price ($),Commission ($),Fees ($),Accrued Interest ($),Amount ($),Settlement Date\n"

const tradesExport = csvHeader +
	"01/02/2024,YOU BOUGHT OPENING TRANSACTION,AAPL,APPLE INC,Cash,10,150,0,0,,-1500,01/04/2024\n" +
	"01/10/2024,YOU SOLD CLOSING TRANSACTION,AAPL,APPLE INC,Cash,-10,160,0,0.02,,1599.98,01/12/2024\n" +
	"02/01/2024,YOU BOUGHT OPENING TRANSACTION,MSFT,MICROSOFT CORP,Cash,20,400,0,0,,-8000,02/05/2024\n" +
	"03/01/2024,YOU SOLD CLOSING TRANSACTION,NVDA,NVIDIA CORP,Cash,-5,900,0,0,,4500,03/04/2024\n"

type stubQuotes struct{}

func (stubQuotes) GetCurrentPrices(ctx context.Context, tickers []string) (map[string]services.QuoteInfo, error) {
	return map[string]services.QuoteInfo{}, nil
}

func (stubQuotes) GetHistoricalPrices(ctx context.Context, ticker string) ([]models.PricePoint, error) {
	return nil, fmt.Errorf("%w: empty history for %s", services.ErrQuoteUnavailable, ticker)
}

type apiClient struct {
	t           *testing.T
	server      *httptest.Server
	csrf        string
	accessToken string
}

func newTestAPI(t *testing.T) (*apiClient, *services.MockEmailService) {
	t.Helper()
	config.Cfg = &config.AppConfig{
		JWTSecret:                "handler-test-secret-handler-test-secret",
		CSRFAuthKey:              []byte("csrf-test-key"),
		OAuthStateString:         "state",
		AccessTokenExpiry:        time.Hour,
		RefreshTokenExpiry:       24 * time.Hour,
		MaxUploadSizeBytes:       1 << 20,
		VerificationTokenExpiry:  time.Hour,
		PasswordResetTokenExpiry: time.Hour,
		FrontendBaseURL:          "http://localhost:3000",
		AllowedOrigins:           []string{"http://localhost:3000"},
	}

	db, err := database.Open(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	previous := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = previous
		db.Close()
	})

	reportCache := services.NewReportCache(time.Minute)
	journal := services.NewJournalService(db, processors.NewMetricsProcessor(), processors.NewFeeProcessor(), stubQuotes{}, reportCache)
	imports := services.NewImportService(db, processors.NewTransactionProcessor(), processors.NewPositionReconciler(), reportCache)
	analysis := services.NewAnalysisService(stubQuotes{}, processors.NewAnalysisProcessor())
	email := &services.MockEmailService{}

	router := &Router{
		User:           NewUserHandler(security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry), email, journal, services.NewMFAService()),
		CSRF:           NewCSRFHandler(config.Cfg.CSRFAuthKey),
		Import:         NewImportHandler(imports),
		Journal:        NewJournalHandler(journal),
		Dashboard:      NewDashboardHandler(journal),
		Analysis:       NewAnalysisHandler(analysis),
		AllowedOrigins: config.Cfg.AllowedOrigins,
	}
	server := httptest.NewServer(router.Handler())
	t.Cleanup(server.Close)

	c := &apiClient{t: t, server: server}
	c.fetchCSRF()
	return c, email
}

func (c *apiClient) fetchCSRF() {
	resp, err := http.Get(c.server.URL + "/api/auth/csrf")
	require.NoError(c.t, err)
	defer resp.Body.Close()
	var body map[string]string
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&body))
	c.csrf = body["csrfToken"]
	require.NotEmpty(c.t, c.csrf)
}

func (c *apiClient) do(method, path string, body []byte, contentType string, header http.Header) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.server.URL+path, bytes.NewReader(body))
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.csrf != "" {
		req.Header.Set(csrfHeaderName, c.csrf)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: c.csrf})
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	for k, values := range header {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (c *apiClient) json(method, path string, payload interface{}) *http.Response {
	c.t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(c.t, err)
	}
	return c.do(method, path, body, "application/json", nil)
}

func (c *apiClient) upload(filename, content string) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", "text/csv")
	part, err := mw.CreatePart(h)
	require.NoError(c.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(c.t, err)
	require.NoError(c.t, mw.WriteField("source", "fidelity"))
	require.NoError(c.t, mw.Close())
	return c.do(http.MethodPost, "/api/imports", buf.Bytes(), mw.FormDataContentType(), nil)
}

func decode(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

// registerAndLogin creates a verified account and stores its access token on the client.
func (c *apiClient) registerAndLogin(email, password string) map[string]interface{} {
	c.t.Helper()
	resp := c.json(http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)

	var token string
	require.NoError(c.t, database.DB.QueryRow(`SELECT email_verification_token FROM users WHERE email = ?`, email).Scan(&token))
	resp = c.do(http.MethodGet, "/api/auth/verify-email?token="+token, nil, "", nil)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	resp = c.json(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decode(c.t, resp, &body)
	c.accessToken = body["access_token"].(string)
	return body
}

func TestStateChangingRequestsRequireCSRF(t *testing.T) {
	api, _ := newTestAPI(t)
	api.csrf = ""

	resp := api.json(http.MethodPost, "/api/auth/login", map[string]string{"email": "a@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	forged := api.do(http.MethodPost, "/api/auth/login", []byte(`{}`), "application/json", http.Header{
		csrfHeaderName: {"forged.value"},
		"Cookie":       {csrfCookieName + "=forged.value"},
	})
	assert.Equal(t, http.StatusForbidden, forged.StatusCode)
}

func TestRegistrationLoginAndSessionLifecycle(t *testing.T) {
	api, email := newTestAPI(t)

	resp := api.json(http.MethodPost, "/api/auth/register", map[string]string{"email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, email.Sent, 1)

	resp = api.json(http.MethodPost, "/api/auth/register", map[string]string{"email": "ana@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/auth/login", map[string]string{"email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	var unverified map[string]string
	decode(t, resp, &unverified)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", unverified["code"])
	assert.Len(t, email.Sent, 2, "a new verification link is sent")

	var token string
	require.NoError(t, database.DB.QueryRow(`SELECT email_verification_token FROM users WHERE email = ?`, "ana@example.com").Scan(&token))
	resp = api.do(http.MethodGet, "/api/auth/verify-email?token="+token, nil, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/auth/login", map[string]string{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/auth/login", map[string]string{"email": "ANA@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		AccessToken  string                 `json:"access_token"`
		RefreshToken string                 `json:"refresh_token"`
		User         map[string]interface{} `json:"user"`
	}
	decode(t, resp, &login)
	assert.Equal(t, "ana", login.User["username"])
	api.accessToken = login.AccessToken

	resp = api.json(http.MethodGet, "/api/user/has-data", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hasData map[string]bool
	decode(t, resp, &hasData)
	assert.False(t, hasData["hasData"])

	resp = api.json(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rotated sessionTokens
	decode(t, resp, &rotated)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	resp = api.json(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "a refresh token is single use")

	api.accessToken = rotated.AccessToken
	resp = api.json(http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.json(http.MethodGet, "/api/positions", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "logged out token is revoked")
}

func TestImportAndJournalEndpoints(t *testing.T) {
	api, _ := newTestAPI(t)
	api.registerAndLogin("trader@example.com", "secret1")

	resp := api.upload("history.csv", tradesExport)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result services.ImportResult
	decode(t, resp, &result)
	assert.Equal(t, 4, result.RowCount)
	assert.Len(t, result.Positions, 2)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, models.IssueOrphanedExit, result.Issues[0].Kind)
	assert.Equal(t, 5, result.Issues[0].Line)

	resp = api.json(http.MethodGet, "/api/imports", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []map[string]interface{}
	decode(t, resp, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "history.csv", history[0]["filename"])

	resp = api.json(http.MethodGet, "/api/positions?status=OPEN", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var open []models.Position
	decode(t, resp, &open)
	require.Len(t, open, 1)
	assert.Equal(t, "MSFT", open[0].Instrument.Symbol)

	resp = api.json(http.MethodGet, "/api/positions?status=WHATEVER", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.json(http.MethodGet, "/api/positions?from=2024-02-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recent []models.Position
	decode(t, resp, &recent)
	assert.Len(t, recent, 1)

	path := fmt.Sprintf("/api/positions/%d", open[0].ID)
	resp = api.json(http.MethodPatch, path, map[string]interface{}{
		"notes": "<b>breakout</b> entry",
		"tags":  []string{"Momentum", "momentum", " swing "},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var annotated models.Position
	decode(t, resp, &annotated)
	assert.Equal(t, "breakout entry", annotated.Notes)
	assert.Equal(t, []string{"momentum", "swing"}, annotated.Tags)
	assert.Equal(t, open[0].RemainingQuantity.String(), annotated.RemainingQuantity.String())

	resp = api.json(http.MethodGet, "/api/positions/999999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.json(http.MethodGet, "/api/positions/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")

	resp = api.json(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = api.json(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.json(http.MethodDelete, "/api/positions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = api.json(http.MethodGet, "/api/user/has-data", nil)
	var hasData map[string]bool
	decode(t, resp, &hasData)
	assert.False(t, hasData["hasData"])
}

func TestReuploadIsIdempotent(t *testing.T) {
	api, _ := newTestAPI(t)
	api.registerAndLogin("trader@example.com", "secret1")

	require.Equal(t, http.StatusOK, api.upload("history.csv", tradesExport).StatusCode)

	resp := api.upload("history.csv", tradesExport)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second services.ImportResult
	decode(t, resp, &second)
	assert.Equal(t, 3, second.DuplicateRows)
	assert.Empty(t, second.Positions)

	resp = api.json(http.MethodGet, "/api/positions", nil)
	var positions []models.Position
	decode(t, resp, &positions)
	assert.Len(t, positions, 2)
}

func TestUnparsableImportReturnsIssues(t *testing.T) {
	api, _ := newTestAPI(t)
	api.registerAndLogin("trader@example.com", "secret1")

	resp := api.upload("bad.csv", csvHeader+"01/02/2024,YOU BOUGHT OPENING TRANSACTION,AAPL,APPLE INC,Cash,abc,150,0,0,,-1500,01/04/2024\n")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body struct {
		Error   string               `json:"error"`
		Details []models.ImportIssue `json:"details"`
	}
	decode(t, resp, &body)
	assert.Contains(t, body.Error, services.ErrParsingFailed.Error())
	require.Len(t, body.Details, 1)
	assert.Equal(t, 2, body.Details[0].Line)

	resp = api.upload("empty.csv", csvHeader)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboardMetricsUseETag(t *testing.T) {
	api, _ := newTestAPI(t)
	api.registerAndLogin("trader@example.com", "secret1")
	require.Equal(t, http.StatusOK, api.upload("history.csv", tradesExport).StatusCode)

	resp := api.json(http.MethodGet, "/api/dashboard/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	var metrics models.DashboardMetrics
	decode(t, resp, &metrics)
	assert.Equal(t, 2, metrics.TotalPositions)
	assert.Equal(t, "100", metrics.TotalRealizedPnL.String())

	resp = api.do(http.MethodGet, "/api/dashboard/metrics", nil, "", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	resp = api.json(http.MethodGet, "/api/dashboard/fees", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fees models.FeeReport
	decode(t, resp, &fees)
	assert.Equal(t, "0.02", fees.Summary.TotalFees.String())

	resp = api.json(http.MethodGet, "/api/valuation", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var valuations []models.PositionValuation
	decode(t, resp, &valuations)
	require.Len(t, valuations, 1)
	assert.Equal(t, "UNAVAILABLE", valuations[0].Status)
}

func TestAnalysisEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	api.registerAndLogin("trader@example.com", "secret1")

	assert.Equal(t, http.StatusBadRequest, api.json(http.MethodGet, "/api/analysis/$$$", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, api.json(http.MethodGet, "/api/analysis/AAPL", nil).StatusCode)
}

func TestMFAProtectsLogin(t *testing.T) {
	api, _ := newTestAPI(t)
	api.registerAndLogin("mfa@example.com", "secret1")

	resp := api.json(http.MethodGet, "/api/user/mfa/setup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var setup map[string]string
	decode(t, resp, &setup)
	secret := setup["secret"]
	require.NotEmpty(t, secret)
	assert.NotEmpty(t, setup["qr_code"])

	resp = api.json(http.MethodPost, "/api/user/mfa/enable", map[string]string{"code": "not-a-code"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	resp = api.json(http.MethodPost, "/api/user/mfa/enable", map[string]string{"code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/auth/login", map[string]string{"email": "mfa@example.com", "password": "secret1"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var challenge map[string]string
	decode(t, resp, &challenge)
	assert.Equal(t, "MFA_REQUIRED", challenge["code"])

	code, err = totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	resp = api.json(http.MethodPost, "/api/auth/login", map[string]string{"email": "mfa@example.com", "password": "secret1", "mfa_code": code})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPasswordResetFlow(t *testing.T) {
	api, email := newTestAPI(t)
	api.registerAndLogin("reset@example.com", "secret1")
	sentBefore := len(email.Sent)

	resp := api.json(http.MethodPost, "/api/auth/request-password-reset", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, email.Sent, sentBefore, "unknown addresses get the same answer and no mail")

	resp = api.json(http.MethodPost, "/api/auth/request-password-reset", map[string]string{"email": "reset@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, email.Sent, sentBefore+1)

	var token string
	require.NoError(t, database.DB.QueryRow(`SELECT password_reset_token FROM users WHERE email = ?`, "reset@example.com").Scan(&token))

	resp = api.json(http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "newsecret", "confirm_password": "other"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "newsecret", "confirm_password": "newsecret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.json(http.MethodGet, "/api/user/has-data", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "a reset revokes existing sessions")

	api.accessToken = ""
	resp = api.json(http.MethodPost, "/api/auth/login", map[string]string{"email": "reset@example.com", "password": "newsecret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChangePasswordAndDeleteAccount(t *testing.T) {
	api, _ := newTestAPI(t)
	api.registerAndLogin("owner@example.com", "secret1")
	require.Equal(t, http.StatusOK, api.upload("history.csv", tradesExport).StatusCode)

	resp := api.json(http.MethodPost, "/api/user/change-password", ChangePasswordRequest{
		CurrentPassword: "wrong", NewPassword: "secret2", ConfirmNewPassword: "secret2",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/user/change-password", ChangePasswordRequest{
		CurrentPassword: "secret1", NewPassword: "secret2", ConfirmNewPassword: "secret2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/user/delete-account", DeleteAccountRequest{Password: "secret1"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/user/delete-account", DeleteAccountRequest{Password: "secret2"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var positions int
	require.NoError(t, database.DB.QueryRow(`SELECT COUNT(*) FROM positions`).Scan(&positions))
	assert.Zero(t, positions)

	resp = api.json(http.MethodGet, "/api/positions", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.do(http.MethodOptions, "/api/positions", nil, "", http.Header{"Origin": {"http://localhost:3000"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = api.do(http.MethodOptions, "/api/positions", nil, "", http.Header{"Origin": {"https://evil.example"}})
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}
