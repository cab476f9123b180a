package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

const cursorSep = "|"

var errMalformed = errors.New("malformed cursor")

// Cursor is the (created_at, id) key of the first row of the next page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit maps non-positive limits to DefaultLimit and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// LimitWithBuffer asks for one extra row so the caller can tell whether a
// next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Split trims rows fetched with LimitWithBuffer to one page. When the extra
// row is present its key becomes the next cursor.
func Split[T any](rows []T, limit int, key func(T) Cursor) ([]T, *Cursor) {
	size := NormalizeLimit(limit)
	if len(rows) <= size {
		return rows, nil
	}
	next := key(rows[size])
	return rows[:size], &next
}

// EncodeCursor returns an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSep + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor reverses EncodeCursor. Blank input means the first page and
// returns nil.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	ts, id, found := strings.Cut(string(raw), cursorSep)
	if !found {
		return nil, errMalformed
	}

	var c Cursor
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", errMalformed, err)
	}
	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: id: %v", errMalformed, err)
	}
	return &c, nil
}
