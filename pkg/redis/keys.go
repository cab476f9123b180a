package redis

import "strings"

const (
	keyNamespace      = "vd"
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
)

// Key joins the non-blank parts under the vd namespace.
func Key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

// IdempotencyKey is vd:idempotency:<scope>:<id>.
func (c *Client) IdempotencyKey(scope, id string) string {
	return Key(idempotencyPrefix, scope, id)
}

// LockKey is vd:lock:<name>:<env>.
func (c *Client) LockKey(name, env string) string {
	return Key(lockPrefix, name, env)
}
