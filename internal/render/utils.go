package render

import "strings"

// maskToken keeps the head and tail of a token so it can be told apart on
// the dashboard without being copied off the screen.
func maskToken(token string) string {
	const head, tail = 8, 4
	if len(token) <= head+tail {
		if len(token) <= 2 {
			return token
		}
		return string(token[0]) + strings.Repeat("*", len(token)-2) + string(token[len(token)-1])
	}
	return token[:head] + "…" + token[len(token)-tail:]
}
