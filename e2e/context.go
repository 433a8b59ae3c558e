//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	jwttoken "purchasegate/internal/jwt_token"
	"purchasegate/internal/seeder"
	"purchasegate/pkg/requestcontext"
)

const devSigningKey = "dev-secret-key-change-in-production"

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	SigningKey       string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	SessionToken     string
	PurchaseID       string
}

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	key := os.Getenv("PURCHASEGATE_AUTH_JWT_SIGNING_KEY")
	if key == "" {
		key = devSigningKey
	}

	return &TestContext{
		BaseURL:    baseURL,
		SigningKey: key,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// signIn mints a session for the seeded demo parent.
func (tc *TestContext) signIn() error {
	svc, err := jwttoken.NewJWTService(tc.SigningKey, "purchasegate", "purchasegate-parents", time.Hour)
	if err != nil {
		return err
	}
	ctx := requestcontext.WithTime(context.Background(), time.Now())
	token, _, err := svc.IssueSession(ctx, seeder.DemoParentID, seeder.DemoFamilyID)
	if err != nil {
		return err
	}
	tc.SessionToken = token
	return nil
}

// Do sends a JSON request with the current session, if any, and stores the
// response.
func (tc *TestContext) Do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.SessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.SessionToken)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a top-level field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

func (tc *TestContext) logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func (tc *TestContext) status() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}
