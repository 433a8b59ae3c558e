// Package e2e drives the purchase flow end to end with godog feature files.
// The suite is behind the e2e build tag and expects a dev server on BASE_URL.
package e2e
