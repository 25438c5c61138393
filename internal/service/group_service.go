package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/accounting"
	"github.com/mmynk/groupledger/internal/middleware"
	"github.com/mmynk/groupledger/internal/validator"
	"github.com/mmynk/groupledger/pkg/api"
	"github.com/mmynk/groupledger/pkg/api/apiconnect"
)

// GroupService implements the Connect GroupService
type GroupService struct {
	apiconnect.UnimplementedGroupServiceHandler
	ledger *accounting.Manager
}

// NewGroupService creates a new GroupService backed by the given manager.
func NewGroupService(ledger *accounting.Manager) *GroupService {
	return &GroupService{ledger: ledger}
}

// CreateGroup creates a new group with every member at a zero balance.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.Members),
	)

	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("CreateGroup", err)
	}

	group, err := s.ledger.CreateGroup(ctx, req.Msg.Name, req.Msg.Currency, req.Msg.Members)
	if err != nil {
		return nil, toConnectError("CreateGroup", err)
	}

	slog.Info("Group created", "group_id", group.ID)

	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group)}), nil
}

// GetGroup retrieves a group and its balances by ID.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("GetGroup", err)
	}

	group, err := s.ledger.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError("GetGroup", err)
	}

	return connect.NewResponse(&api.GetGroupResponse{Group: toAPIGroup(group)}), nil
}

// ListGroups lists all groups, or only the ones a member belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	groups, err := s.ledger.ListGroups(ctx, req.Msg.Member)
	if err != nil {
		return nil, toConnectError("ListGroups", err)
	}

	out := make([]*api.Group, len(groups))
	for i, group := range groups {
		out[i] = toAPIGroup(group)
	}

	slog.Info("ListGroups successful", "member", req.Msg.Member, "count", len(groups))

	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// AddMembers adds members to a group at a zero balance.
func (s *GroupService) AddMembers(ctx context.Context, req *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("AddMembers", err)
	}

	group, err := s.ledger.AddMembers(ctx, req.Msg.GroupID, req.Msg.Members)
	if err != nil {
		return nil, toConnectError("AddMembers", err)
	}

	slog.Info("Members added", "group_id", group.ID, "added", len(req.Msg.Members))

	return connect.NewResponse(&api.AddMembersResponse{Group: toAPIGroup(group)}), nil
}

// RemoveMember removes a settled member that no expense refers to.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("RemoveMember", err)
	}

	group, err := s.ledger.RemoveMember(ctx, req.Msg.GroupID, req.Msg.Member)
	if err != nil {
		return nil, toConnectError("RemoveMember", err)
	}

	slog.Info("Member removed", "group_id", group.ID, "member", req.Msg.Member)

	return connect.NewResponse(&api.RemoveMemberResponse{Group: toAPIGroup(group)}), nil
}

// DeleteGroup removes a group by ID.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	slog.Info("DeleteGroup request received", "group_id", req.Msg.GroupID)

	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("DeleteGroup", err)
	}

	if err := s.ledger.DeleteGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, toConnectError("DeleteGroup", err)
	}

	slog.Info("Group deleted", "group_id", req.Msg.GroupID)

	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// GetBalanceSheet returns a group's balances and the transfers that settle
// them.
func (s *GroupService) GetBalanceSheet(ctx context.Context, req *connect.Request[api.GetBalanceSheetRequest]) (*connect.Response[api.GetBalanceSheetResponse], error) {
	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("GetBalanceSheet", err)
	}

	sheet, err := s.ledger.BalanceSheet(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError("GetBalanceSheet", err)
	}

	return connect.NewResponse(&api.GetBalanceSheetResponse{
		Group:     toAPIGroup(sheet.Group),
		Transfers: toAPITransfers(sheet.Transfers),
	}), nil
}

// GetMemberSummary totals a member's balances across groups. The member
// defaults to the caller.
func (s *GroupService) GetMemberSummary(ctx context.Context, req *connect.Request[api.GetMemberSummaryRequest]) (*connect.Response[api.GetMemberSummaryResponse], error) {
	if err := validator.Struct(req.Msg); err != nil {
		return nil, toConnectError("GetMemberSummary", err)
	}

	member := req.Msg.Member
	if member == "" {
		member = middleware.GetMemberID(ctx)
	}

	summary, err := s.ledger.MemberSummary(ctx, member, req.Msg.Currency)
	if err != nil {
		return nil, toConnectError("GetMemberSummary", err)
	}

	groups := make([]*api.GroupBalance, len(summary.Groups))
	for i, g := range summary.Groups {
		groups[i] = &api.GroupBalance{
			GroupID:   g.GroupID,
			GroupName: g.GroupName,
			Currency:  g.Currency,
			Balance:   g.Balance.StringFixed(2),
			Converted: g.Converted.StringFixed(2),
		}
	}

	return connect.NewResponse(&api.GetMemberSummaryResponse{
		Member:   summary.Member,
		Currency: summary.Currency,
		Groups:   groups,
		Total:    summary.Total.StringFixed(2),
	}), nil
}
