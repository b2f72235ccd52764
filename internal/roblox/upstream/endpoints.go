package upstream

import (
	"net/url"
	"strings"
)

// Public Roblox API hosts.
const (
	UsersAPI      = "https://users.roblox.com"
	FriendsAPI    = "https://friends.roblox.com"
	GroupsAPI     = "https://groups.roblox.com"
	ThumbnailsAPI = "https://thumbnails.roblox.com"
	PresenceAPI   = "https://presence.roblox.com"
)

// BaseURLs holds the root URL each Roblox API host is served from.
type BaseURLs struct {
	Users      string
	Friends    string
	Groups     string
	Thumbnails string
	Presence   string
}

// DefaultBaseURLs returns the public Roblox API hosts.
func DefaultBaseURLs() BaseURLs {
	return BaseURLs{
		Users:      UsersAPI,
		Friends:    FriendsAPI,
		Groups:     GroupsAPI,
		Thumbnails: ThumbnailsAPI,
		Presence:   PresenceAPI,
	}
}

// WithDefaults fills every empty host with its public default.
func (b BaseURLs) WithDefaults() BaseURLs {
	defaults := DefaultBaseURLs()
	b.Users = orDefault(b.Users, defaults.Users)
	b.Friends = orDefault(b.Friends, defaults.Friends)
	b.Groups = orDefault(b.Groups, defaults.Groups)
	b.Thumbnails = orDefault(b.Thumbnails, defaults.Thumbnails)
	b.Presence = orDefault(b.Presence, defaults.Presence)
	return b
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// forSubdomain returns the configured root for a roblox.com subdomain.
func (b BaseURLs) forSubdomain(subdomain string) string {
	switch subdomain {
	case "users":
		return b.Users
	case "friends":
		return b.Friends
	case "groups":
		return b.Groups
	case "thumbnails":
		return b.Thumbnails
	case "presence":
		return b.Presence
	default:
		return ""
	}
}

// rewrite points a Roblox API URL at the configured root for its host.
// URLs outside roblox.com or for unknown subdomains are returned unchanged.
func (b BaseURLs) rewrite(u *url.URL) *url.URL {
	subdomain, ok := strings.CutSuffix(u.Host, ".roblox.com")
	if !ok {
		return u
	}

	root, err := url.Parse(b.forSubdomain(subdomain))
	if err != nil || root.Host == "" {
		return u
	}

	out := *u
	out.Scheme = root.Scheme
	out.Host = root.Host
	out.Path = strings.TrimRight(root.Path, "/") + u.Path
	out.RawPath = ""

	return &out
}

// Endpoint describes a single upstream call.
type Endpoint struct {
	Name     string     // Short label used in logs and failures
	Method   string     // HTTP method for raw calls
	URL      string     // Fully expanded public URL without query, for raw calls
	Query    url.Values // Optional query parameters
	Body     any        // Optional JSON request body
	Required bool       // Required calls get the long timeout
}
