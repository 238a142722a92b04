package repository

import (
	"context"

	"union-data/internal/domain"
)

// InvitesRepository admin-issued member invitations.
type InvitesRepository interface {
	ListInvites(ctx context.Context, tenantID, status string) ([]*domain.MemberInvite, error)
	GetInvite(ctx context.Context, tenantID, inviteID string) (*domain.MemberInvite, error)
	GetInviteByToken(ctx context.Context, token string) (*domain.MemberInvite, error)
	// CreateInvite inserts the invite and its preregistered member row in
	// one transaction and returns the invite id.
	CreateInvite(ctx context.Context, tenantID string, inv *domain.MemberInvite, provisional *domain.Member) (string, error)
	MarkUsed(ctx context.Context, tenantID, inviteID string) error
	// RevokeInvite deletes the invite and cascades to the preregistered
	// member it created, in one transaction.
	RevokeInvite(ctx context.Context, tenantID, inviteID string) error
}
