package profile

import (
	"time"

	"github.com/robalyx/roprofile/internal/roblox/fetcher"
	"github.com/robalyx/roprofile/internal/types"
	"github.com/robalyx/roprofile/pkg/utils"
)

// Input is everything gathered for a single profile.
type Input struct {
	Identity   *fetcher.ResolvedUser
	Details    *fetcher.UserDetails
	Enrichment Enrichment
}

// Normalize builds the final profile record. Missing text fields become
// "N/A", missing flags are false and the age is derived from the creation time.
func Normalize(in Input, now time.Time) *types.Profile {
	identity := in.Identity
	if identity == nil {
		identity = &fetcher.ResolvedUser{}
	}
	details := in.Details
	if details == nil {
		details = &fetcher.UserDetails{}
	}

	id := details.ID
	if id == 0 {
		id = identity.ID
	}

	status := types.ActivityStatusActive
	if details.IsBanned {
		status = types.ActivityStatusBanned
	}

	presence := in.Enrichment.Presence
	if presence == "" {
		presence = types.PresenceUnknown
	}

	history := append(make([]string, 0, len(in.Enrichment.PreviousUsernames)), in.Enrichment.PreviousUsernames...)

	ageDays := utils.AccountAgeDays(details.Created, now)

	return &types.Profile{
		ID:                id,
		Username:          utils.OrDefault(firstNonEmpty(details.Name, identity.Name), types.NotAvailable),
		DisplayName:       utils.OrDefault(utils.CompressAllWhitespace(firstNonEmpty(details.DisplayName, identity.DisplayName)), types.NotAvailable),
		Description:       utils.OrDefault(utils.CompressWhitespacePreserveNewlines(details.Description), types.NotAvailable),
		Created:           details.Created.UTC(),
		AccountAge:        utils.FormatAccountAge(ageDays),
		AccountAgeDays:    ageDays,
		IsVerified:        identity.Verified,
		Status:            status,
		Presence:          presence,
		Followers:         in.Enrichment.Followers,
		Followings:        in.Enrichment.Followings,
		Friends:           in.Enrichment.Friends,
		Groups:            in.Enrichment.Groups,
		AvatarURL:         in.Enrichment.AvatarURL,
		PreviousUsernames: history,
		ProfileURL:        utils.ProfileURL(id),
		LastUpdated:       now.UTC(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
