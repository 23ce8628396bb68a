// Package metadata packs small key/value payloads into the gateway's
// free-text custom_id field and unpacks them when the webhook comes back.
package metadata

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// MaxLength is the gateway's ceiling for custom_id.
const MaxLength = 255

// Metadata is a decoded custom_id payload.
type Metadata map[string]string

// Get returns the first non-empty value among keys.
func (m Metadata) Get(keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}

// Encode renders payload as k=v pairs joined with "&". Nil values are
// skipped, keys are sorted and the result is cut at MaxLength, which may
// corrupt the final pair.
func Encode(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, escape(k)+"="+escape(fmt.Sprint(payload[k])))
	}

	out := strings.Join(parts, "&")
	if len(out) > MaxLength {
		out = out[:MaxLength]
	}
	return out
}

// Decode parses an encoded payload. It never fails: segments without a key
// or with broken escapes are dropped and empty input yields an empty map.
func Decode(input string) Metadata {
	out := Metadata{}
	if input == "" {
		return out
	}
	for _, seg := range strings.Split(input, "&") {
		if seg == "" {
			continue
		}
		rawKey, rawVal, _ := strings.Cut(seg, "=")
		key, err := url.PathUnescape(rawKey)
		if err != nil || key == "" {
			continue
		}
		val, err := url.PathUnescape(rawVal)
		if err != nil {
			continue
		}
		out[key] = val
	}
	return out
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
