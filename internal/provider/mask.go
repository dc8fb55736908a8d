package provider

import (
	"encoding/json"
	"strings"
)

const maskChar = "*"

var addressKeys = map[string]bool{
	"billing_address":  true,
	"shipping_address": true,
}

var addressNameKeys = map[string]bool{
	"given_name":  true,
	"family_name": true,
}

// MaskValue keeps the first and last character of s and masks the rest.
// Values of one or two characters are masked entirely.
func MaskValue(s string) string {
	r := []rune(s)
	if len(r) <= 2 {
		return strings.Repeat(maskChar, len(r))
	}
	return string(r[0]) + strings.Repeat(maskChar, len(r)-2) + string(r[len(r)-1])
}

// MaskPayload returns a copy of a JSON body safe for logging: every "email"
// value and the given/family names inside billing and shipping addresses are
// masked. Bodies that are not JSON are returned unchanged.
func MaskPayload(body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return body
	}
	masked, err := json.Marshal(maskNode(doc, false))
	if err != nil {
		return body
	}
	return masked
}

// MaskValueOf marshals v and masks it.
func MaskValueOf(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return MaskPayload(b)
}

func maskNode(node any, inAddress bool) any {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			if s, ok := v.(string); ok {
				if k == "email" || (inAddress && addressNameKeys[k]) {
					n[k] = MaskValue(s)
				}
				continue
			}
			n[k] = maskNode(v, addressKeys[k])
		}
		return n
	case []any:
		for i, v := range n {
			n[i] = maskNode(v, inAddress)
		}
		return n
	}
	return node
}
