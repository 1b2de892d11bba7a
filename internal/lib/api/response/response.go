package response

// Canonical public messages. Every failure inside a flow collapses to that
// flow's single message; anything more specific would let callers probe for
// valid emails or tokens.
const (
	MsgLinkSent       = "If an account exists, a login link has been sent."
	MsgLinkInvalid    = "This link has expired or is invalid. Please request a new one."
	MsgSessionExpired = "Session expired. Please log in again."
)

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Ack is the uniform magic-link-request acknowledgment, returned regardless
// of outcome.
func Ack() Response {
	return Response{
		Success: true,
		Message: MsgLinkSent,
	}
}

func Denied(msg string) Response {
	return Response{
		Success: false,
		Message: msg,
	}
}
