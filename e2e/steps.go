//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	"purchasegate/internal/seeder"
)

// Pack IDs from configs/catalog.yaml.
var packs = map[string]string{
	"ocean-stickers":  "c0000000-0000-4000-8000-000000000001",
	"bedtime-stories": "c0000000-0000-4000-8000-000000000002",
	"space-puzzles":   "c0000000-0000-4000-8000-000000000003",
	"welcome-pack":    "c0000000-0000-4000-8000-000000000004",
	"monster-arena":   "c0000000-0000-4000-8000-000000000005",
}

var children = map[string]string{
	"Mia": seeder.DemoChildIDs[0].String(),
	"Leo": seeder.DemoChildIDs[1].String(),
	"Sam": seeder.DemoChildIDs[2].String(),
}

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^the purchase gateway is running$`, tc.gatewayIsRunning)
	ctx.Step(`^I am signed in as the demo parent$`, tc.signedInAsDemoParent)
	ctx.Step(`^I am not signed in$`, tc.notSignedIn)

	// Purchase flow steps
	ctx.Step(`^"([^"]*)" requests the pack "([^"]*)" for (\d+) ([A-Z]{3})$`, tc.requestPack)
	ctx.Step(`^I (approve|deny) the pending request$`, tc.resolvePending)
	ctx.Step(`^I complete the purchase$`, tc.completePurchase)
	ctx.Step(`^I refund the purchase$`, tc.refundPurchase)
	ctx.Step(`^I GET "([^"]*)"$`, tc.get)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
	ctx.Step(`^the library of "([^"]*)" should contain the pack "([^"]*)"$`, tc.libraryShouldContain)
}

func (tc *TestContext) gatewayIsRunning(context.Context) error {
	if err := tc.Do(http.MethodGet, "/health/live", nil); err != nil {
		return err
	}
	return tc.responseStatusShouldBe(context.Background(), http.StatusOK)
}

func (tc *TestContext) signedInAsDemoParent(context.Context) error {
	return tc.signIn()
}

func (tc *TestContext) notSignedIn(context.Context) error {
	tc.SessionToken = ""
	return nil
}

func (tc *TestContext) requestPack(_ context.Context, child, pack string, price int64, currency string) error {
	childID, ok := children[child]
	if !ok {
		return fmt.Errorf("unknown demo child %q", child)
	}
	packID, ok := packs[pack]
	if !ok {
		return fmt.Errorf("unknown pack %q", pack)
	}
	body := map[string]any{
		"child_id":             childID,
		"pack_id":              packID,
		"expected_price":       price,
		"currency":             currency,
		"payment_method_token": "tok_e2e_visa",
	}
	if err := tc.Do(http.MethodPost, "/v1/purchases", body); err != nil {
		return err
	}
	if id, err := tc.GetResponseField("id"); err == nil {
		tc.PurchaseID, _ = id.(string)
	}
	return nil
}

func (tc *TestContext) resolvePending(_ context.Context, decision string) error {
	if tc.PurchaseID == "" {
		return fmt.Errorf("no purchase in flight")
	}
	if err := tc.Do(http.MethodGet, "/v1/approvals", nil); err != nil {
		return err
	}
	var inbox struct {
		Approvals []struct {
			Token      string `json:"token"`
			PurchaseID string `json:"purchase_id"`
		} `json:"approvals"`
	}
	if err := json.Unmarshal(tc.LastResponseBody, &inbox); err != nil {
		return fmt.Errorf("failed to decode inbox: %w", err)
	}
	for _, a := range inbox.Approvals {
		if a.PurchaseID == tc.PurchaseID {
			return tc.Do(http.MethodPost, "/v1/approvals/"+a.Token+"/resolve", map[string]any{"decision": decision})
		}
	}
	return fmt.Errorf("no pending approval for purchase %s", tc.PurchaseID)
}

func (tc *TestContext) completePurchase(context.Context) error {
	return tc.Do(http.MethodPost, "/v1/purchases/"+tc.PurchaseID+"/complete", map[string]any{})
}

func (tc *TestContext) refundPurchase(context.Context) error {
	return tc.Do(http.MethodPost, "/v1/purchases/"+tc.PurchaseID+"/refund", map[string]any{})
}

func (tc *TestContext) get(_ context.Context, path string) error {
	return tc.Do(http.MethodGet, path, nil)
}

func (tc *TestContext) responseStatusShouldBe(_ context.Context, expected int) error {
	if got := tc.status(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(_ context.Context, field, expected string) error {
	value, err := tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(value); got != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, got)
	}
	return nil
}

func (tc *TestContext) libraryShouldContain(_ context.Context, child, pack string) error {
	if err := tc.Do(http.MethodGet, "/v1/children/"+children[child]+"/library", nil); err != nil {
		return err
	}
	if err := tc.responseStatusShouldBe(context.Background(), http.StatusOK); err != nil {
		return err
	}
	if !strings.Contains(string(tc.LastResponseBody), packs[pack]) {
		return fmt.Errorf("library of %s does not contain %s: %s", child, pack, string(tc.LastResponseBody))
	}
	return nil
}
