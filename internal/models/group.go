package models

// Group is a set of members sharing expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Bali Trip").
	Name string

	// CreatedBy is the user ID of the group admin.
	CreatedBy string

	// Members is populated by reads that load the group with its members.
	Members []Member

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// Member is one participant of a group.
type Member struct {
	// ID is the unique identifier for the member (UUID format). Transactions
	// and splits reference members, never users.
	ID string

	// GroupID is the group this member belongs to.
	GroupID string

	// Name is the display name within the group.
	Name string

	// UserID links the member to a registered account. Empty for a
	// placeholder member added by name.
	UserID string

	// JoinedAt is the Unix timestamp when the member was added.
	JoinedAt int64
}

// IsPlaceholder reports whether the member has no backing account.
func (m Member) IsPlaceholder() bool {
	return m.UserID == ""
}

// MemberIDs returns the IDs of the given members in order.
func MemberIDs(members []Member) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}
