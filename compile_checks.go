package accounts

import "github.com/goliatone/go-accounts/core"

var _ CommandQueryService = (*core.Orchestrator)(nil)
