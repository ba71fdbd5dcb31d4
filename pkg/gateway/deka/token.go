package deka

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

const (
	// Tokens refresh this long before their computed expiry.
	tokenRefreshMargin = 5 * time.Minute

	// Assumed validity when the token carries no readable exp claim.
	defaultTokenTTL = time.Hour
)

// tokenExpiry derives the expiry of a JWT-shaped token from the exp claim
// in its second segment. Tokens without a readable claim are assumed valid
// for one hour from now.
func tokenExpiry(token string, now time.Time) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return now.Add(defaultTokenTTL)
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return now.Add(defaultTokenTTL)
	}

	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return now.Add(defaultTokenTTL)
	}

	return time.Unix(claims.Exp, 0)
}

// tokenUsable reports whether a token string is still worth using, i.e.
// its expiry minus the refresh margin is in the future.
func tokenUsable(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	return now.Before(tokenExpiry(token, now).Add(-tokenRefreshMargin))
}

// decodeSegment tolerates both standard and URL-safe base64, padded or not.
func decodeSegment(seg string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		if b, err := enc.DecodeString(seg); err == nil {
			return b, nil
		}
	}
	return base64.RawURLEncoding.DecodeString(seg)
}
