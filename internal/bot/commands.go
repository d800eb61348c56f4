package bot

// Command constants for Telegram bot commands.
const (
	CommandStart       = "/start"
	CommandAccept      = "/accept"
	CommandPolicy      = "/policy"
	CommandResetPolicy = "/reset_policy"
	CommandLanguage    = "/language"
	CommandBuy         = "/buy"
	CommandNewsOff     = "/news_off"
	CommandDiag        = "/diag"
	CommandSubs        = "/subs"
	CommandGrant       = "/grant"
	CommandGrantBest   = "/grant_best"
)

// Callback prefix constants for inline button interactions.
const (
	CallbackLanguagePrefix = "lang:"
	CallbackOfferAccept    = "offer:accept"
)
