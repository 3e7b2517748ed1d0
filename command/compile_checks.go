package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[InitiateMessage]     = (*InitiateCommand)(nil)
	_ gocmd.Commander[ExchangeMessage]     = (*ExchangeCommand)(nil)
	_ gocmd.Commander[RevokeMessage]       = (*RevokeCommand)(nil)
	_ gocmd.Commander[PurgeExpiredMessage] = (*PurgeExpiredCommand)(nil)
)
