// Package main provides a CLI tool for minting parent session tokens and
// approval deep links against a local purchasegate server.
// These use the dev signing key and will NOT work in production.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"purchasegate/internal/approval/link"
	jwttoken "purchasegate/internal/jwt_token"
	"purchasegate/internal/seeder"
	"purchasegate/pkg/domain"
	"purchasegate/pkg/requestcontext"
)

const (
	// Dev signing key - matches config.go when PURCHASEGATE_AUTH_JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultIssuer      = "purchasegate"
	defaultAudience    = "purchasegate-parents"
	defaultLinkBaseURL = "http://localhost:8080/v1/approvals/link"
	defaultSessionTTL  = 12 * time.Hour
	defaultLinkTTL     = 24 * time.Hour
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	sessionCmd := flag.NewFlagSet("session", flag.ExitOnError)
	linkCmd := flag.NewFlagSet("link", flag.ExitOnError)

	sessionParent := sessionCmd.String("parent-id", seeder.DemoParentID.String(), "Parent ID (UUID). Defaults to the seeded demo parent.")
	sessionFamily := sessionCmd.String("family-id", seeder.DemoFamilyID.String(), "Family ID (UUID). Defaults to the seeded demo family.")
	sessionTTL := sessionCmd.Duration("ttl", defaultSessionTTL, "Session time-to-live")
	sessionKey := sessionCmd.String("key", devSigningKey, "Signing secret")
	sessionJSON := sessionCmd.Bool("json", false, "Output as JSON")

	linkToken := linkCmd.String("token", "", "Approval token from the notification (required)")
	linkParent := linkCmd.String("parent-id", seeder.DemoParentID.String(), "Parent ID (UUID) the link is addressed to")
	linkTTL := linkCmd.Duration("ttl", defaultLinkTTL, "Link time-to-live")
	linkKey := linkCmd.String("key", devSigningKey, "Signing secret")
	linkBase := linkCmd.String("base-url", defaultLinkBaseURL, "Deep link base URL")
	linkJSON := linkCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "session":
		_ = sessionCmd.Parse(os.Args[2:])
		generateSession(*sessionParent, *sessionFamily, *sessionKey, *sessionTTL, *sessionJSON)
	case "link":
		_ = linkCmd.Parse(os.Args[2:])
		generateLink(*linkToken, *linkParent, *linkKey, *linkBase, *linkTTL, *linkJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate test credentials for the purchasegate API

WARNING: These use the dev signing key and will NOT work in production.
         Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  session   Mint a parent session token (JWT)
  link      Sign an approval deep link for a pending purchase

Examples:
  # Session for the seeded demo parent
  tokengen session

  # Session for another parent with a short TTL
  tokengen session -parent-id "..." -family-id "..." -ttl 15m

  # Deep link for an approval token taken from the notification log
  tokengen link -token "apv_..."

  # Output as JSON
  tokengen session -json

Use "tokengen <command> -h" for more information about a command.`)
}

func generateSession(parent, fam, key string, ttl time.Duration, jsonOutput bool) {
	parentID := domain.ParentID(parseUUID(parent, "parent-id"))
	familyID := domain.FamilyID(parseUUID(fam, "family-id"))

	svc, err := jwttoken.NewJWTService(key, defaultIssuer, defaultAudience, ttl)
	if err != nil {
		exitf("Error creating token service: %v", err)
	}
	svc.SetEnv("dev")

	ctx := requestcontext.WithTime(context.Background(), time.Now())
	token, jti, err := svc.IssueSession(ctx, parentID, familyID)
	if err != nil {
		exitf("Error generating token: %v", err)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "parent_session",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"sub": parentID.String(),
				"fid": familyID.String(),
				"jti": jti,
			},
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}
	fmt.Println("Parent Session (JWT)")
	fmt.Println("====================")
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Printf("Parent ID:   %s\n", parentID)
	fmt.Printf("Family ID:   %s\n", familyID)
	fmt.Printf("JTI:         %s\n", jti)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/v1/...")
}

func generateLink(token, parent, key, baseURL string, ttl time.Duration, jsonOutput bool) {
	if token == "" {
		exitf("-token is required")
	}
	approvalToken, err := domain.ParseApprovalToken(token)
	if err != nil {
		exitf("Invalid token: %v", err)
	}
	parentID := domain.ParentID(parseUUID(parent, "parent-id"))

	signer, err := link.NewSigner(key, baseURL, defaultIssuer)
	if err != nil {
		exitf("Error creating signer: %v", err)
	}
	now := time.Now()
	signed, err := signer.Sign(approvalToken, parentID, now, now.Add(ttl))
	if err != nil {
		exitf("Error signing link: %v", err)
	}
	url, err := signer.URL(approvalToken, parentID, now, now.Add(ttl))
	if err != nil {
		exitf("Error building link: %v", err)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     signed,
			Type:      "approval_link",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"sub": parentID.String(),
				"url": url,
			},
			Usage: map[string]string{
				"endpoint": "POST /v1/approvals/link",
				"body":     `{"link": "<token>", "decision": "approve"}`,
			},
		})
		return
	}
	fmt.Println("Approval Deep Link")
	fmt.Println("==================")
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Printf("Parent ID:   %s\n", parentID)
	fmt.Printf("URL:         %s\n", url)
	fmt.Println()
	fmt.Println("Signed link:")
	fmt.Println(signed)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println(`  curl -X POST -d '{"link":"<signed>","decision":"approve"}' http://localhost:8080/v1/approvals/link`)
}

func parseUUID(input, fieldName string) uuid.UUID {
	parsed, err := uuid.Parse(input)
	if err != nil {
		exitf("Invalid %s UUID: %s", fieldName, input)
	}
	return parsed
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		exitf("Error encoding JSON: %v", err)
	}
}
