package app_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/pseudonymizer/internal/app"
	"github.com/allisson/pseudonymizer/internal/config"
	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	"github.com/allisson/pseudonymizer/internal/pseudonym/http/dto"
	"github.com/allisson/pseudonymizer/internal/testutil"
)

type apiTestContext struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
}

func (a *apiTestContext) do(
	t *testing.T,
	method, path string,
	body any,
	headers map[string]string,
) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	//nolint:gosec // controlled test environment with localhost URLs
	resp, err := client.Do(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	return resp, respBody
}

func setupAPITest(t *testing.T, driver string) *apiTestContext {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var db *sql.DB
	var dsn string
	if driver == "postgres" {
		db = testutil.SetupPostgresDB(t)
		dsn = testutil.GetPostgresTestDSN()
	} else {
		db = testutil.SetupMySQLDB(t)
		dsn = testutil.GetMySQLTestDSN()
	}

	masterKey := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(masterKey)
	require.NoError(t, err)

	cfg := &config.Config{
		ServerHost:               "localhost",
		ServerPort:               8080,
		ServerRequestTimeout:     10 * time.Second,
		DBDriver:                 driver,
		DBConnectionString:       dsn,
		DBMaxOpenConnections:     10,
		DBMaxIdleConnections:     5,
		DBConnMaxLifetime:        time.Hour,
		DBQueryTimeout:           5 * time.Second,
		StorageRetryAttempts:     3,
		StorageRetryBaseDelay:    10 * time.Millisecond,
		LogLevel:                 "error",
		MasterKeys:               "test-key-1:" + base64.StdEncoding.EncodeToString(masterKey),
		ActiveMasterKeyID:        "test-key-1",
		EncryptionKeyName:        "pseudonym-encryption-key",
		CryptoTimeout:            5 * time.Second,
		SessionTTL:               time.Hour,
		SessionMaxTTL:            24 * time.Hour,
		SessionCleanupInterval:   time.Hour,
		SessionCleanupBatchSize:  100,
		MaxTextLength:            100000,
		MaxPseudonymsPerSession:  1000,
		RevealConcurrency:        4,
		DetectionHeaderWindow:    1500,
		DetectionSignatureWindow: 2000,
		DetectionSignatureTitles: []string{"Dr.", "Ing."},
		DetectionNameVariants:    true,
	}

	container := app.NewContainer(cfg)
	ctx := context.Background()

	kekUseCase, err := container.KekUseCase()
	require.NoError(t, err)
	masterKeyChain, err := container.MasterKeyChain()
	require.NoError(t, err)
	require.NoError(t, kekUseCase.Create(ctx, masterKeyChain, cryptoDomain.AESGCM))

	encryptionKeyUseCase, err := container.EncryptionKeyUseCase()
	require.NoError(t, err)
	_, err = encryptionKeyUseCase.Create(ctx, cryptoDomain.AESGCM)
	require.NoError(t, err)

	httpServer, err := container.HTTPServer()
	require.NoError(t, err)

	return &apiTestContext{
		container: container,
		db:        db,
		server:    httptest.NewServer(httpServer.GetHandler()),
	}
}

func teardownAPITest(t *testing.T, a *apiTestContext) {
	t.Helper()
	a.server.Close()
	if err := a.container.Shutdown(context.Background()); err != nil {
		t.Logf("container shutdown: %v", err)
	}
	testutil.TeardownDB(t, a.db)
}

func TestAPI_Integration(t *testing.T) {
	drivers := []struct {
		name string
		skip func(t *testing.T)
	}{
		{name: "postgres", skip: testutil.SkipIfNoPostgres},
		{name: "mysql", skip: testutil.SkipIfNoMySQL},
	}

	for _, driver := range drivers {
		t.Run(driver.name, func(t *testing.T) {
			driver.skip(t)
			a := setupAPITest(t, driver.name)
			defer teardownAPITest(t, a)

			original := "please contact juan.perez@example.com about the claim"

			var pseudonymized dto.PseudonymizeResponse
			t.Run("pseudonymize", func(t *testing.T) {
				resp, body := a.do(t, http.MethodPost, "/v1/pseudonymize", map[string]any{
					"text":           original,
					"sessionPurpose": "extraction",
					"callerId":       "service-a",
				}, nil)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
				require.NoError(t, json.Unmarshal(body, &pseudonymized))

				assert.NotContains(t, pseudonymized.SanitizedText, "juan.perez@example.com")
				assert.Equal(t, 1, pseudonymized.EntityCountsByType["email"])
				assert.True(t, pseudonymized.ExpiresAt.After(time.Now()))
				_, err := uuid.Parse(pseudonymized.SessionID)
				require.NoError(t, err)
			})

			t.Run("same-value-same-pseudonym-in-session", func(t *testing.T) {
				resp, body := a.do(t, http.MethodPost, "/v1/pseudonymize", map[string]any{
					"text":           original,
					"sessionPurpose": "extraction",
					"callerId":       "service-a",
					"sessionId":      pseudonymized.SessionID,
				}, nil)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				var again dto.PseudonymizeResponse
				require.NoError(t, json.Unmarshal(body, &again))
				assert.Equal(t, pseudonymized.SessionID, again.SessionID)
				assert.Equal(t, pseudonymized.SanitizedText, again.SanitizedText)
			})

			t.Run("depseudonymize-round-trip", func(t *testing.T) {
				resp, body := a.do(t, http.MethodPost, "/v1/depseudonymize", map[string]any{
					"text":      pseudonymized.SanitizedText,
					"sessionId": pseudonymized.SessionID,
					"callerId":  "service-a",
				}, nil)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				var revealed dto.DepseudonymizeResponse
				require.NoError(t, json.Unmarshal(body, &revealed))
				assert.Equal(t, original, revealed.OriginalText)
				assert.Empty(t, revealed.AnomalousTokens)
			})

			t.Run("other-caller-forbidden", func(t *testing.T) {
				resp, body := a.do(t, http.MethodPost, "/v1/depseudonymize", map[string]any{
					"text":      pseudonymized.SanitizedText,
					"sessionId": pseudonymized.SessionID,
					"callerId":  "service-b",
				}, nil)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(body))
			})

			t.Run("validation-error", func(t *testing.T) {
				resp, _ := a.do(t, http.MethodPost, "/v1/pseudonymize", map[string]any{
					"text":           "   ",
					"sessionPurpose": "marketing",
					"callerId":       "service-a",
				}, nil)
				assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			})

			t.Run("audit-trail-signed", func(t *testing.T) {
				assert.Positive(t, testutil.CountRows(t, a.db, "audit_logs"))

				auditLogUseCase, err := a.container.AuditLogUseCase()
				require.NoError(t, err)
				report, err := auditLogUseCase.VerifyBatch(context.Background(), nil, nil)
				require.NoError(t, err)
				assert.Positive(t, report.Total)
				assert.Zero(t, report.Invalid)
			})

			t.Run("delete-session", func(t *testing.T) {
				path := "/v1/session/" + pseudonymized.SessionID

				resp, _ := a.do(t, http.MethodDelete, path, nil, nil)
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

				resp, _ = a.do(t, http.MethodDelete, path, nil, map[string]string{"X-Caller-Id": "service-b"})
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)

				resp, _ = a.do(t, http.MethodDelete, path, nil, map[string]string{"X-Caller-Id": "service-a"})
				assert.Equal(t, http.StatusNoContent, resp.StatusCode)
				assert.Zero(t, testutil.CountRows(t, a.db, "mappings"))

				resp, body := a.do(t, http.MethodPost, "/v1/depseudonymize", map[string]any{
					"text":      pseudonymized.SanitizedText,
					"sessionId": pseudonymized.SessionID,
					"callerId":  "service-a",
				}, nil)
				assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
			})

			t.Run("probes", func(t *testing.T) {
				resp, _ := a.do(t, http.MethodGet, "/health", nil, nil)
				assert.Equal(t, http.StatusOK, resp.StatusCode)

				resp, body := a.do(t, http.MethodGet, "/ready", nil, nil)
				assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
				assert.True(t, strings.Contains(string(body), "encryption_key"))
			})
		})
	}
}
