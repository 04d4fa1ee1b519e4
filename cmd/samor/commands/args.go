package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"samor/internal/domain"
	"samor/internal/services/message"
)

// parseRequest turns ["method", "k=v", ...] into a request. A single argument
// starting with '{' is taken as the raw JSON args object.
func parseRequest(words []string) (domain.Request, error) {
	if len(words) == 0 {
		return domain.Request{}, message.ErrNoMethod
	}
	method, rest := words[0], words[1:]
	if len(rest) == 0 {
		return message.NewRequest(method, nil)
	}
	if len(rest) == 1 && strings.HasPrefix(rest[0], "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(rest[0]), &obj); err != nil {
			return domain.Request{}, fmt.Errorf("args: %w", err)
		}
		return message.NewRequest(method, obj)
	}

	args := make(map[string]any, len(rest))
	for _, kv := range rest {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return domain.Request{}, fmt.Errorf("argument %q is not key=value", kv)
		}
		args[k] = argValue(v)
	}
	return message.NewRequest(method, args)
}

// argValue keeps numbers, booleans, null, arrays and objects as JSON and
// everything else as a string.
func argValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		if _, isString := v.(string); !isString {
			return v
		}
	}
	return s
}
