package types

// PresenceStatus is the user's current online state.
type PresenceStatus string

const (
	PresenceOffline  PresenceStatus = "Offline"
	PresenceOnline   PresenceStatus = "Online"
	PresenceInGame   PresenceStatus = "In Game"
	PresenceInStudio PresenceStatus = "In Studio"
	PresenceUnknown  PresenceStatus = "Unknown"
)

// presenceCodes maps the upstream userPresenceType values to their labels.
// Codes missing from this table resolve to PresenceUnknown.
var presenceCodes = map[int]PresenceStatus{
	0: PresenceOffline,
	1: PresenceOnline,
	2: PresenceInGame,
	3: PresenceInStudio,
}

// PresenceFromCode converts an upstream presence code into a status.
// A nil code means the upstream did not report one.
func PresenceFromCode(code *int) PresenceStatus {
	if code == nil {
		return PresenceUnknown
	}

	if status, ok := presenceCodes[*code]; ok {
		return status
	}

	return PresenceUnknown
}
