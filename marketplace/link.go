package marketplace

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/warp/sales-engine/generic"
)

var ErrEmptyURL = errors.New("listing url is required")

// NormalizeURL lowercases and trims the URL, then drops the scheme, a leading
// "www.", the fragment and the query string. Two submissions that normalize
// to the same string are the same listing.
func NormalizeURL(raw string) string {
	clean := strings.ToLower(strings.TrimSpace(raw))
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(clean, scheme) {
			clean = strings.TrimPrefix(clean, scheme)
			break
		}
	}
	clean = strings.TrimPrefix(clean, "www.")
	if i := strings.IndexByte(clean, '#'); i >= 0 {
		clean = clean[:i]
	}
	if i := strings.IndexByte(clean, '?'); i >= 0 {
		clean = clean[:i]
	}
	return clean
}

// LinkKey is the hex SHA-1 of the normalized URL.
func LinkKey(raw string) string {
	sum := sha1.Sum([]byte(NormalizeURL(raw)))
	return hex.EncodeToString(sum[:])
}

// NewLink builds the record for uid submitting raw at instant now. The week
// is evaluated in loc.
func NewLink(uid generic.UserID, raw string, now time.Time, loc *time.Location) (generic.MarketplaceLink, error) {
	url := strings.TrimSpace(raw)
	if url == "" || NormalizeURL(url) == "" {
		return generic.MarketplaceLink{}, ErrEmptyURL
	}
	return generic.MarketplaceLink{
		Key:  LinkKey(url),
		URL:  url,
		Week: generic.WeekKeyOf(now, loc),
		UID:  uid,
		TS:   now.UnixMilli(),
	}, nil
}
