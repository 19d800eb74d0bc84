package service

import "chatserver/internal/domain"

// Authorizer проверяет права принципалов на встречу. Вызывается под блокировкой встречи.
type Authorizer interface {
	Permits(meeting *domain.Meeting, principals []string, action domain.Action) bool
}

type aclAuthorizer struct{}

// NewACLAuthorizer: создатель может все, бывшие участники могут вернуться,
// остальное - по записям ACL встречи
func NewACLAuthorizer() Authorizer {
	return aclAuthorizer{}
}

func (aclAuthorizer) Permits(meeting *domain.Meeting, principals []string, action domain.Action) bool {
	for _, p := range principals {
		if p == "" {
			continue
		}
		if p == meeting.Creator || meeting.HasGrant(p, action) {
			return true
		}
		if action == domain.ActionEnter && meeting.WasOccupant(p) {
			return true
		}
	}
	return false
}
