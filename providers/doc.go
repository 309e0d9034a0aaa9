// Package providers holds the shared OAuth2 and HTTP plumbing used by the
// Bluesky identity adapter and the GitHub token adapter. Each adapter owns its
// provider's wire format and reports failures as core.ProviderError so the
// orchestrator can classify them.
package providers
