package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// GroupService implements the Connect GroupService
type GroupService struct {
	apiconnect.UnimplementedGroupServiceHandler
	store storage.Store
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// CreateGroup creates a new group with the caller as its first member.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"placeholder_count", len(req.Msg.MemberNames),
	)

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storageError("GetUserByID", err)
	}

	members := make([]models.Member, 0, len(req.Msg.MemberNames)+1)
	members = append(members, models.Member{Name: user.DisplayName, UserID: user.ID})
	for _, name := range req.Msg.MemberNames {
		members = append(members, models.Member{Name: name})
	}

	group := &models.Group{
		Name:      req.Msg.Name,
		CreatedBy: userID,
		Members:   members,
	}

	// Save to storage (generates IDs and CreatedAt)
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, storageError("CreateGroup", err)
	}

	slog.Info("Group created", "group_id", group.ID)

	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group)}), nil
}

// GetGroup retrieves a group with its members.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	group, err := loadGroupForUser(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	return connect.NewResponse(&api.GetGroupResponse{Group: toAPIGroup(group)}), nil
}

// ListGroups retrieves the caller's groups, newest first, without members.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, storageError("ListGroups", err)
	}

	out := make([]*api.Group, len(groups))
	for i, group := range groups {
		out[i] = toAPIGroup(group)
	}

	slog.Info("ListGroups successful", "user_id", userID, "count", len(groups))

	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// RenameGroup changes a group's name. Only the creator may rename.
func (s *GroupService) RenameGroup(ctx context.Context, req *connect.Request[api.RenameGroupRequest]) (*connect.Response[api.RenameGroupResponse], error) {
	group, err := s.loadOwnedGroup(ctx, req.Msg.GroupID, req.Msg)
	if err != nil {
		return nil, err
	}

	if err := s.store.RenameGroup(ctx, group.ID, req.Msg.Name); err != nil {
		return nil, storageError("RenameGroup", err)
	}
	group.Name = req.Msg.Name

	slog.Info("Group renamed", "group_id", group.ID, "name", group.Name)

	return connect.NewResponse(&api.RenameGroupResponse{Group: toAPIGroup(group)}), nil
}

// DeleteGroup removes a group with its members and transactions. Only the
// creator may delete.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	group, err := s.loadOwnedGroup(ctx, req.Msg.GroupID, req.Msg)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteGroup(ctx, group.ID); err != nil {
		return nil, storageError("DeleteGroup", err)
	}

	slog.Info("Group deleted", "group_id", group.ID)

	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// AddMember adds a placeholder member by name.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	if _, err := loadGroupForUser(ctx, s.store, req.Msg.GroupID, userID); err != nil {
		return nil, err
	}

	member := &models.Member{GroupID: req.Msg.GroupID, Name: req.Msg.Name}
	if err := s.store.AddMember(ctx, member); err != nil {
		return nil, storageError("AddMember", err)
	}

	slog.Info("Member added", "group_id", member.GroupID, "member_id", member.ID)

	return connect.NewResponse(&api.AddMemberResponse{Member: toAPIMember(*member)}), nil
}

// RemoveMember deletes a member that never paid and owes nothing. The
// group creator's own member cannot be removed.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	group, err := loadGroupForUser(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}
	member, ok := findMember(group, req.Msg.MemberID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("member not found in group"))
	}
	if member.UserID != "" && member.UserID == group.CreatedBy {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("the group creator cannot be removed"))
	}

	if err := s.store.DeleteMember(ctx, group.ID, member.ID); err != nil {
		slog.Warn("RemoveMember failed", "group_id", group.ID, "member_id", member.ID, "error", err)
		return nil, storageError("RemoveMember", err)
	}

	slog.Info("Member removed", "group_id", group.ID, "member_id", member.ID)

	return connect.NewResponse(&api.RemoveMemberResponse{}), nil
}

// ClaimMember binds the caller to a placeholder member, making them a member
// of its group. The group and member IDs stand in for an invitation.
func (s *GroupService) ClaimMember(ctx context.Context, req *connect.Request[api.ClaimMemberRequest]) (*connect.Response[api.ClaimMemberResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	slog.Info("ClaimMember request received",
		"group_id", req.Msg.GroupID,
		"member_id", req.Msg.MemberID,
		"user_id", userID,
	)

	// The member must belong to the named group
	member, err := s.store.GetMember(ctx, req.Msg.MemberID)
	if err != nil {
		return nil, storageError("GetMember", err)
	}
	if member.GroupID != req.Msg.GroupID {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("member not found in group"))
	}

	if err := s.store.ClaimMember(ctx, member.ID, userID); err != nil {
		slog.Warn("ClaimMember rejected", "member_id", member.ID, "user_id", userID, "error", err)
		return nil, storageError("ClaimMember", err)
	}
	member.UserID = userID

	group, err := s.store.GetGroup(ctx, member.GroupID)
	if err != nil {
		return nil, storageError("GetGroup", err)
	}

	slog.Info("Member claimed", "group_id", group.ID, "member_id", member.ID, "user_id", userID)

	return connect.NewResponse(&api.ClaimMemberResponse{
		Group:  toAPIGroup(group),
		Member: toAPIMember(*member),
	}), nil
}

// GetBalances computes every member's balance and the settlement plan.
func (s *GroupService) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	group, err := loadGroupForUser(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	report, err := ComputeBalances(ctx, s.store, group)
	if err != nil {
		return nil, storageError("GetBalances", err)
	}

	metrics.ObserveDrift(report.Drift)
	metrics.SuggestionsEmitted(len(report.Suggestions))

	resp := &api.GetBalancesResponse{
		Balances:    make([]*api.MemberBalance, len(report.Balances)),
		Suggestions: make([]*api.Suggestion, len(report.Suggestions)),
	}
	for i, b := range report.Balances {
		resp.Balances[i] = &api.MemberBalance{
			MemberID:   b.MemberID,
			Name:       report.MemberName(b.MemberID),
			NetBalance: b.NetBalance,
			TotalPaid:  b.TotalPaid,
			TotalOwed:  b.TotalOwed,
		}
	}
	for i, sg := range report.Suggestions {
		resp.Suggestions[i] = &api.Suggestion{
			FromMemberID: sg.From,
			FromName:     report.MemberName(sg.From),
			ToMemberID:   sg.To,
			ToName:       report.MemberName(sg.To),
			Amount:       sg.Amount,
		}
	}

	slog.Info("GetBalances successful",
		"group_id", group.ID,
		"members", len(report.Balances),
		"suggestions", len(report.Suggestions),
		"drift", report.Drift,
	)

	return connect.NewResponse(resp), nil
}

// loadOwnedGroup validates msg and loads the group, requiring the caller to
// be its creator.
func (s *GroupService) loadOwnedGroup(ctx context.Context, groupID string, msg any) (*models.Group, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(msg); err != nil {
		return nil, err
	}

	group, err := loadGroupForUser(ctx, s.store, groupID, userID)
	if err != nil {
		return nil, err
	}
	if group.CreatedBy != userID {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotCreator)
	}
	return group, nil
}
