package auth

import "github.com/spec-kit/support-chat/internal/domain"

// Action identifies an operation checked against the authorization policy.
type Action string

const (
	ActionViewConversation Action = "conversation:view"
	ActionPostMessage      Action = "conversation:post"
	ActionStreamEvents     Action = "conversation:stream"
	ActionUpdateStatus     Action = "conversation:update-status"
	ActionAssignAgent      Action = "conversation:assign-agent"
	ActionSearchAll        Action = "search:all"
	ActionViewAnalytics    Action = "analytics:view"
	ActionUseAssist        Action = "assist:use"
)

// CanAccess is the single authorization policy consulted by every entry point.
// conversation may be nil for actions not scoped to one conversation. Agents
// and admins may act on any conversation; customers only on their own thread
// and never on staff-only surfaces.
func CanAccess(role domain.Role, action Action, conversation *domain.Conversation, subjectID string) bool {
	if role.IsStaff() {
		return true
	}
	if role != domain.RoleCustomer {
		return false
	}

	switch action {
	case ActionViewConversation, ActionPostMessage, ActionStreamEvents:
		return conversation != nil && conversation.CustomerID == subjectID
	default:
		return false
	}
}
