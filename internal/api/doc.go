// Package api provides the signed WOO X REST client.
//
// REST endpoints:
//   - Production: https://api.woo.network/v1
//   - Sandbox: https://api.staging.woo.network/v1
//
// Private endpoints are signed with HMAC-SHA256 (see internal/auth) and carry
// the x-api-key, x-api-signature and x-api-timestamp headers. The client also
// serves as the credential holder for the streaming manager.
package api
