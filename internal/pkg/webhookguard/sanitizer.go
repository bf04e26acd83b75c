package webhookguard

import (
	"strings"
)

const maxFieldRunes = 500

// Key names stripped from payloads before forwarding anywhere.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"token":         true,
	"secret":        true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"session":       true,
}

// SanitizePayload returns a copy of the payload safe to forward: oversized
// text fields truncated, well-known sensitive keys removed, email addresses
// partially masked. Nested maps are sanitized recursively.
func SanitizePayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for key, value := range payload {
		if sensitiveKeys[strings.ToLower(key)] {
			continue
		}
		out[key] = sanitizeValue(key, value)
	}
	return out
}

func sanitizeValue(key string, value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if strings.Contains(strings.ToLower(key), "email") {
			return MaskEmail(v)
		}
		return truncateRunes(v, maxFieldRunes)
	case map[string]interface{}:
		return SanitizePayload(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(key, item)
		}
		return out
	default:
		return value
	}
}

// MaskEmail keeps the first two characters of the local part and the domain:
// jean.dupont@example.com becomes je***@example.com.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local := email[:at]
	domain := email[at:]
	if len(local) <= 2 {
		return local[:1] + "***" + domain
	}
	return local[:2] + "***" + domain
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
