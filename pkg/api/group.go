package api

// Member is one participant of a group. UserID is empty for placeholder
// members added by name.
type Member struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	UserID        string `json:"userId,omitempty"`
	IsPlaceholder bool   `json:"isPlaceholder"`
	JoinedAt      int64  `json:"joinedAt"`
}

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	Members   []*Member `json:"members"`
	CreatedAt int64     `json:"createdAt"`
}

// CreateGroupRequest creates a group with the caller as its first member.
// MemberNames become placeholder members.
type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	MemberNames []string `json:"memberNames" validate:"omitempty,dive,required,max=100"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type RenameGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	Name    string `json:"name" validate:"required,max=100"`
}

type RenameGroupResponse struct {
	Group *Group `json:"group"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type DeleteGroupResponse struct{}

type AddMemberRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	Name    string `json:"name" validate:"required,max=100"`
}

type AddMemberResponse struct {
	Member *Member `json:"member"`
}

type RemoveMemberRequest struct {
	GroupID  string `json:"groupId" validate:"required"`
	MemberID string `json:"memberId" validate:"required"`
}

type RemoveMemberResponse struct{}

// ClaimMemberRequest binds the caller to a placeholder member of a group,
// which makes the caller a member of that group.
type ClaimMemberRequest struct {
	GroupID  string `json:"groupId" validate:"required"`
	MemberID string `json:"memberId" validate:"required"`
}

type ClaimMemberResponse struct {
	Group  *Group  `json:"group"`
	Member *Member `json:"member"`
}

type GetBalancesRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

// MemberBalance is one member's position. NetBalance is positive when the
// member is owed money and negative when the member owes money.
type MemberBalance struct {
	MemberID   string `json:"memberId"`
	Name       string `json:"name"`
	NetBalance int64  `json:"netBalance"`
	TotalPaid  int64  `json:"totalPaid"`
	TotalOwed  int64  `json:"totalOwed"`
}

// Suggestion is one payment of the settlement plan.
type Suggestion struct {
	FromMemberID string `json:"fromMemberId"`
	FromName     string `json:"fromName"`
	ToMemberID   string `json:"toMemberId"`
	ToName       string `json:"toName"`
	Amount       int64  `json:"amount"`
}

type GetBalancesResponse struct {
	Balances    []*MemberBalance `json:"balances"`
	Suggestions []*Suggestion    `json:"suggestions"`
}
