package cli

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseParams turns key=value flags into task params. Values that parse as
// JSON keep their type; anything else is a string.
func parseParams(raw []string) (map[string]any, error) {
	params := make(map[string]any, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: expected key=value", kv)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			params[key] = decoded
		} else {
			params[key] = value
		}
	}
	return params, nil
}
