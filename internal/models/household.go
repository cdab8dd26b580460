package models

// Household is a group of members who share expenses and settle up with each other.
type Household struct {
	// ID is the unique identifier for the household (UUID format).
	ID string

	// Name is the display name of the household (e.g., "Apt 4B").
	Name string

	// InviteCode is the code other users enter to join (e.g., "HOUSE-4821").
	InviteCode string

	// CreatedAt is the Unix timestamp when the household was created.
	CreatedAt int64
}

// Member is one participant of a household.
// Members are identified by their user ID.
type Member struct {
	ID          string
	DisplayName string
}
