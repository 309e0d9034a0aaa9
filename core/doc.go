// Package core contains the account-linking domain types, collaborator
// contracts, and the Orchestrator that drives the Bluesky sign-in flow, the
// GitHub OAuth and App installation flows, session issuance and GitHub token
// refresh. Provider and storage adapters depend on this package; core must not
// depend on provider-specific or transport-specific adapters.
package core
