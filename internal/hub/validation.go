package hub

import "regexp"

var (
	// roomIDPattern matches the canonical hyphenated form uuid.NewString()
	// produces, which is what both game services mint room ids as.
	roomIDPattern         = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	templateNamePattern   = regexp.MustCompile(`^[a-zA-Z0-9 _()\-.,]{1,100}$`)
	idempotencyKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,64}$`)
)

const maxChatMessageLength = 500

func validRoomID(id string) bool        { return roomIDPattern.MatchString(id) }
func validTemplateName(n string) bool   { return templateNamePattern.MatchString(n) }
func validIdempotencyKey(k string) bool { return idempotencyKeyPattern.MatchString(k) }
