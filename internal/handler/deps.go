package handler

import (
	"context"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/membership"
	"chatrelay/internal/app/user"
	"chatrelay/internal/configs"
	"chatrelay/internal/pkg/errs"
)

// MembershipService is the slice of the membership store the REST surface
// uses. *membership.PgStore satisfies it.
type MembershipService interface {
	IsMember(ctx context.Context, userID, chatID int64) (bool, error)
	MembersOf(ctx context.Context, chatID int64) ([]int64, error)
	GetChat(ctx context.Context, chatID int64) (*membership.Chat, error)
	CreateChat(ctx context.Context, creatorID int64, chatType, name string, participantIDs []int64) (*membership.Chat, *errs.CustomError)
	DeactivateChat(ctx context.Context, chatID, adminID int64) *errs.CustomError
	AddParticipants(ctx context.Context, chatID, adminID int64, userIDs []int64) *errs.CustomError
	RemoveParticipant(ctx context.Context, chatID, requesterID, userID int64) *errs.CustomError
	ListUserChats(ctx context.Context, userID int64, limit, offset int32) ([]membership.Chat, error)
}

// UserService is the slice of the user store the REST surface uses.
// *user.PgStore satisfies it.
type UserService interface {
	Create(ctx context.Context, username, passwordHash, fullName string) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	SearchByUsername(ctx context.Context, prefix string, limit int32) ([]user.User, error)
	TouchLastSeen(ctx context.Context, id int64) error
}

// AppDeps bundles the wired application services the handlers close over.
type AppDeps struct {
	Hub        *chat.Hub
	Config     *configs.AppConfig
	Membership MembershipService
	Users      UserService
}
