package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cursor is the decoded form of a page token. Offset serves in-memory listings; CreatedAt
// and ID mark the last item of a createdAt-descending Firestore page.
type Cursor struct {
	Offset    int       `json:"o,omitempty"`
	CreatedAt time.Time `json:"t,omitempty"`
	ID        string    `json:"id,omitempty"`
}

// IsZero reports an empty cursor (first page).
func (c Cursor) IsZero() bool {
	return c.Offset == 0 && c.CreatedAt.IsZero() && c.ID == ""
}

// EncodeToken serialises the cursor into a URL-safe page token. The zero cursor encodes to "".
func EncodeToken(cursor Cursor) string {
	if cursor.IsZero() {
		return ""
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by EncodeToken.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.Offset < 0 {
		return Cursor{}, fmt.Errorf("%w: negative offset", ErrInvalidPageToken)
	}
	return cursor, nil
}
