package connector

import (
	"strings"

	"github.com/sells-group/leadenrich-connector/pkg/bettercontact"
)

// Connection is the caller-supplied connection object. Platforms nest the
// key at different depths, so it stays untyped.
type Connection map[string]any

const keyField = "api_key_bearer"

// keyStrategy extracts an API key from one known connection shape.
type keyStrategy func(Connection) (string, bool)

// keyStrategies are tried in order; the first hit wins.
var keyStrategies = []keyStrategy{
	nestedKey(),
	nestedKey("connection_data", "value"),
	nestedKey("connection_data"),
	nestedKey("value"),
}

func nestedKey(path ...string) keyStrategy {
	return func(conn Connection) (string, bool) {
		node := map[string]any(conn)
		for _, p := range path {
			next, ok := node[p].(map[string]any)
			if !ok {
				return "", false
			}
			node = next
		}
		key, ok := node[keyField].(string)
		key = strings.TrimSpace(key)
		return key, ok && key != ""
	}
}

// ResolveAPIKey finds the Provider key in conn.
func ResolveAPIKey(conn Connection) (string, error) {
	for _, strategy := range keyStrategies {
		if key, ok := strategy(conn); ok {
			return key, nil
		}
	}
	return "", bettercontact.NewAuthError("", "API key not found in connection")
}
