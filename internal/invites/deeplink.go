// Package invites holds invitation deep links and the per-invite dispatch
// flow state machine.
package invites

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DeepLink is the invitation URL embedded in outbound SMS messages. The
// path segment is either a raw session id or "g-" + group id; the phone
// query parameter lets the receiving client locate the originating invite
// row before the contact has an account.
type DeepLink struct {
	SessionID string
	GroupID   string
	Phone     string
}

const groupPathPrefix = "g-"

var ErrMalformedLink = errors.New("malformed invite link")

// Build renders the deep link against the app's public base URL, e.g.
// https://rallypoint.app/sess_ab12?phone=555-0100&invite=true.
func Build(baseURL string, link DeepLink) (string, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch {
	case link.SessionID != "" && link.GroupID == "":
		base.Path += "/" + link.SessionID
	case link.GroupID != "" && link.SessionID == "":
		base.Path += "/" + groupPathPrefix + link.GroupID
	default:
		return "", errors.New("deep link needs exactly one of session id or group id")
	}

	query := url.Values{}
	query.Set("phone", link.Phone)
	query.Set("invite", "true")
	base.RawQuery = query.Encode()
	return base.String(), nil
}

// Parse recovers the invite coordinates from a received link.
func Parse(raw string) (DeepLink, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return DeepLink{}, ErrMalformedLink
	}
	if parsed.Query().Get("invite") != "true" {
		return DeepLink{}, ErrMalformedLink
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 || segments[len(segments)-1] == "" {
		return DeepLink{}, ErrMalformedLink
	}
	entity := segments[len(segments)-1]

	link := DeepLink{Phone: parsed.Query().Get("phone")}
	if strings.HasPrefix(entity, groupPathPrefix) {
		link.GroupID = strings.TrimPrefix(entity, groupPathPrefix)
		if link.GroupID == "" {
			return DeepLink{}, ErrMalformedLink
		}
	} else {
		link.SessionID = entity
	}
	return link, nil
}
