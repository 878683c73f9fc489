package config

import (
	"net/url"
	"strings"
)

// secrets maps dot-separated keys to the function that masks their value.
var secrets = map[string]func(string) string{
	"llm.api_key":       maskTail,
	"http.secret":       maskTail,
	"telegram.token":    maskTail,
	"storage.redis_url": maskURL,
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	_, ok := secrets[key]
	return ok
}

// Flatten turns {"llm": {"model": "x"}} into {"llm.model": "x"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten. A scalar in the way of a nested key
// is replaced by a map.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		node := out
		for {
			head, rest, nested := strings.Cut(key, ".")
			if !nested {
				node[head] = v
				break
			}
			child, ok := node[head].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[head] = child
			}
			node, key = child, rest
		}
	}
	return out
}

// MaskSecrets returns a copy of flat with credential values masked.
// Empty and non-string values pass through.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		mask, secret := secrets[k]
		if s, ok := v.(string); secret && ok && s != "" {
			out[k] = mask(s)
		}
	}
	return out
}

// maskTail keeps the last four characters.
func maskTail(s string) string {
	if len(s) > 4 {
		s = s[len(s)-4:]
	}
	return "***" + s
}

// maskURL hides the password of a connection URL and keeps the host visible.
func maskURL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return maskTail(s)
	}
	return u.Redacted()
}
