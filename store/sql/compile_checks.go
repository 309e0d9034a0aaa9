package sqlstore

import "github.com/goliatone/go-accounts/core"

var (
	_ core.AccountStore    = (*AccountStore)(nil)
	_ core.AccountStore    = (*CachedAccountStore)(nil)
	_ core.ConnectionStore = (*ConnectionStore)(nil)
)
