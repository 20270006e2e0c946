package config

import (
	"strconv"
	"strings"
)

// secretKeys are the flat keys whose values never appear in clear text
// in CLI output.
var secretKeys = map[string]struct{}{
	"auth.password": {},
}

// IsSecretKey reports whether the dot-separated key holds a secret.
func IsSecretKey(key string) bool {
	_, ok := secretKeys[key]
	return ok
}

// Flatten turns the nested config map into a single level keyed by
// dot-separated paths, e.g. {"server": {"base_url": "x"}} becomes
// {"server.base_url": "x"}.
func Flatten(nested map[string]any) map[string]any {
	flat := make(map[string]any)
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for key, value := range node {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			if child, ok := value.(map[string]any); ok {
				walk(path, child)
				continue
			}
			flat[path] = value
		}
	}
	walk("", nested)
	return flat
}

// Unflatten rebuilds the nested map from dot-separated keys.
func Unflatten(flat map[string]any) map[string]any {
	nested := make(map[string]any)
	for key, value := range flat {
		parts := strings.Split(key, ".")
		node := nested
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return nested
}

// MaskSecrets copies the flat map, replacing secret values with
// "***" plus the last four characters so the owner can still tell
// which secret is set. Empty secrets stay empty.
func MaskSecrets(flat map[string]any) map[string]any {
	masked := make(map[string]any, len(flat))
	for key, value := range flat {
		masked[key] = value
		if !IsSecretKey(key) {
			continue
		}
		secret, ok := value.(string)
		if !ok || secret == "" {
			continue
		}
		tail := secret
		if len(tail) > 4 {
			tail = tail[len(tail)-4:]
		}
		masked[key] = "***" + tail
	}
	return masked
}

// coerce interprets a CLI-supplied value as bool, integer, float, or
// plain string, in that order, so `config set` writes typed JSON.
func coerce(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
