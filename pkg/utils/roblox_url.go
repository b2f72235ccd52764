package utils

import "strconv"

// ProfileURL returns the public profile link for a user id.
func ProfileURL(userID uint64) string {
	return "https://www.roblox.com/users/" + strconv.FormatUint(userID, 10) + "/profile"
}
