/*
Package randx generates the identifiers that must not be guessable from any
sequence: message ids and their content object keys.
*/
package randx

import (
	"fmt"

	"github.com/google/uuid"
)

// MessageID generates a UUID v4 string used as the shared identifier of both
// halves of a chat message. Globally unique and not derivable from the
// server-assigned sequence.
func MessageID() string {
	return uuid.New().String()
}

// ContentKey maps a message id to its object key in the content store.
func ContentKey(messageID string) string {
	return fmt.Sprintf("messages/%s", messageID)
}

// IsValidMessageID reports whether the given string parses as a UUID.
func IsValidMessageID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
