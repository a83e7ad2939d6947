package handlers

const (
	FlashError   = "error"
	FlashWarning = "warning"
	FlashSuccess = "success"
)

const (
	MsgLoginSucceeded    = "Authenticated successfully as %s."
	MsgSignInAs          = "%s is requesting you to sign in as %s. Please sign in as %s."
	MsgRelMeUnavailable  = "Could not fetch your home page: %v"
	MsgTokenRevoked      = "Your token was revoked."
	MsgAllTokensRevoked  = "Revoked %d tokens."
	MsgTokenRevokeFailed = "There was an error revoking your token: %v"
	MsgTokenNotFound     = "No token found."
	MsgInvalidAPIKey     = "Invalid API key."
)
