package santa

import (
	"crypto/rand"
	"fmt"
)

// inviteAlphabet skips lookalike characters (0/O, 1/l/I) so codes survive
// being read aloud or retyped.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

const inviteCodeLen = 8

// NewInviteCode generates a short random token that resolves to one game for
// join-by-link entry. Uniqueness is enforced by the store's unique column;
// at 8 characters over this alphabet collisions are not a practical concern.
func NewInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf), nil
}
