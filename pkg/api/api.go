// Package api defines the groupledger.v1 wire messages.
//
// Messages are plain structs carried as JSON by Codec. Money is always a
// decimal string with two fractional digits on the way out, and any decimal
// string on the way in.
package api

// Group is a group and its current balances.
type Group struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Currency  string     `json:"currency"`
	Members   []string   `json:"members"`
	Balances  []*Balance `json:"balances"`
	CreatedAt int64      `json:"createdAt"`
}

// Balance is one member's running balance. Positive means the member is owed.
type Balance struct {
	Member string `json:"member"`
	Amount string `json:"amount"`
}

// Transfer is one suggested payment that settles part of a group.
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// SplitDetail is what one member owes for an expense.
type SplitDetail struct {
	Member string `json:"member"`
	Owed   string `json:"owed"`
}

type Expense struct {
	ID          string            `json:"id"`
	GroupID     string            `json:"groupId"`
	Description string            `json:"description"`
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Owner       string            `json:"owner"`
	Members     []string          `json:"members"`
	SplitType   string            `json:"splitType"`
	SplitValues map[string]string `json:"splitValues,omitempty"`
	Details     []*SplitDetail    `json:"details"`
	CreatedBy   string            `json:"createdBy,omitempty"`
	CreatedAt   int64             `json:"createdAt"`
	UpdatedAt   int64             `json:"updatedAt"`
}

type Settlement struct {
	ID             string `json:"id"`
	GroupID        string `json:"groupId"`
	Payer          string `json:"payer"`
	Payee          string `json:"payee"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotencyKey"`
	Note           string `json:"note,omitempty"`
	CreatedBy      string `json:"createdBy,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

// GroupBalance is a member's balance in one group, with its converted value.
type GroupBalance struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	Converted string `json:"converted"`
}

// Group service

type CreateGroupRequest struct {
	Name     string   `json:"name" validate:"required,notblank,max=100"`
	Currency string   `json:"currency" validate:"required,currency"`
	Members  []string `json:"members" validate:"required,min=1,dive,required,notblank"`
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

// ListGroupsRequest lists the groups Member belongs to. An empty Member
// lists every group.
type ListGroupsRequest struct {
	Member string `json:"member,omitempty"`
}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type AddMembersRequest struct {
	GroupID string   `json:"groupId" validate:"required"`
	Members []string `json:"members" validate:"required,min=1,dive,required,notblank"`
}

type AddMembersResponse struct {
	Group *Group `json:"group"`
}

type RemoveMemberRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	Member  string `json:"member" validate:"required,notblank"`
}

type RemoveMemberResponse struct {
	Group *Group `json:"group"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type DeleteGroupResponse struct{}

type GetBalanceSheetRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type GetBalanceSheetResponse struct {
	Group     *Group      `json:"group"`
	Transfers []*Transfer `json:"transfers"`
}

// GetMemberSummaryRequest defaults Member to the caller and Currency to the
// server's base currency.
type GetMemberSummaryRequest struct {
	Member   string `json:"member,omitempty"`
	Currency string `json:"currency,omitempty" validate:"omitempty,currency"`
}

type GetMemberSummaryResponse struct {
	Member   string          `json:"member"`
	Currency string          `json:"currency"`
	Groups   []*GroupBalance `json:"groups"`
	Total    string          `json:"total"`
}

// Expense service

// AddExpenseRequest adds an expense. SplitValues holds per-member amounts
// for exact splits and percentages for percentage splits; it is ignored for
// equal splits. An empty Members list means every group member.
type AddExpenseRequest struct {
	GroupID     string            `json:"groupId" validate:"required"`
	Description string            `json:"description" validate:"max=200"`
	Amount      string            `json:"amount" validate:"required,money"`
	Owner       string            `json:"owner" validate:"required,notblank"`
	Members     []string          `json:"members,omitempty" validate:"dive,required,notblank"`
	SplitType   string            `json:"splitType" validate:"required,oneof=equal exact percentage"`
	SplitValues map[string]string `json:"splitValues,omitempty"`
}

type AddExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type UpdateExpenseRequest struct {
	ExpenseID   string            `json:"expenseId" validate:"required"`
	GroupID     string            `json:"groupId" validate:"required"`
	Description string            `json:"description" validate:"max=200"`
	Amount      string            `json:"amount" validate:"required,money"`
	Owner       string            `json:"owner" validate:"required,notblank"`
	Members     []string          `json:"members,omitempty" validate:"dive,required,notblank"`
	SplitType   string            `json:"splitType" validate:"required,oneof=equal exact percentage"`
	SplitValues map[string]string `json:"splitValues,omitempty"`
}

type UpdateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId" validate:"required"`
	GroupID   string `json:"groupId" validate:"required"`
}

type DeleteExpenseResponse struct{}

type GetExpenseRequest struct {
	ExpenseID string `json:"expenseId" validate:"required"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type ListExpensesRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

// Settlement service

// SettleRequest records a payment. IdempotencyKey may instead be sent in
// the Idempotency-Key header.
type SettleRequest struct {
	GroupID        string `json:"groupId" validate:"required"`
	Payer          string `json:"payer" validate:"required,notblank"`
	Payee          string `json:"payee" validate:"required,notblank,nefield=Payer"`
	Amount         string `json:"amount" validate:"required,money"`
	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"max=128"`
	Note           string `json:"note,omitempty" validate:"max=200"`
}

type SettleResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type ListSettlementsRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type ListSettlementsResponse struct {
	Settlements []*Settlement `json:"settlements"`
}
