// Package friends tracks directed friend requests and the symmetric friend set
// that results from accepting one.
package friends

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/internal/notifications"
	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/internal/users"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
)

type Service interface {
	SendRequest(ctx context.Context, fromID uuid.UUID, toUsername string) (*SendResult, error)
	AcceptRequest(ctx context.Context, userID, fromID uuid.UUID) error
	DeclineRequest(ctx context.Context, userID, fromID uuid.UUID) error
	CancelRequest(ctx context.Context, userID, toID uuid.UUID) error
	RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) (*ListDTO, error)
}

// SendResult tells the caller whether the send completed a pending reverse request.
type SendResult struct {
	UserID   uuid.UUID `json:"user_id"`
	Accepted bool      `json:"accepted"`
}

type ListDTO struct {
	Friends  []users.PublicUserDTO `json:"friends"`
	Incoming []users.PublicUserDTO `json:"incoming"`
	Outgoing []users.PublicUserDTO `json:"outgoing"`
}

type ServiceParams struct {
	Runner   *uow.Runner
	Repo     *Repository
	Users    *users.Directory
	Notifier notifications.Notifier
	Logger   *logger.Logger
}

type service struct {
	runner   *uow.Runner
	repo     *Repository
	users    *users.Directory
	notifier notifications.Notifier
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "unit of work runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "friends repository required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user directory required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	return &service{
		runner:   params.Runner,
		repo:     params.Repo,
		users:    params.Users,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

func (s *service) SendRequest(ctx context.Context, fromID uuid.UUID, toUsername string) (*SendResult, error) {
	var result SendResult
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		sender, err := s.users.ByID(ctx, unit, fromID)
		if err != nil {
			return err
		}
		target, err := s.users.ByUsername(ctx, unit, toUsername)
		if err != nil {
			return err
		}
		if target.ID == fromID {
			return pkgerrors.Validationf("cannot send a friend request to yourself")
		}
		result.UserID = target.ID

		repo := s.repo.WithTx(unit.Tx())
		friends, err := repo.AreFriends(ctx, fromID, target.ID)
		if err != nil {
			return pkgerrors.Internal(err, "check friendship")
		}
		if friends {
			return pkgerrors.Conflictf("already friends with %s", target.Username)
		}

		reverse, err := repo.RequestExists(ctx, target.ID, fromID)
		if err != nil {
			return pkgerrors.Internal(err, "check friend request")
		}
		if reverse {
			result.Accepted = true
			return s.accept(ctx, unit, fromID, sender.Username, target.ID)
		}

		if err := repo.CreateRequest(ctx, fromID, target.ID); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Conflictf("friend request already pending")
			}
			return pkgerrors.Internal(err, "create friend request")
		}
		_, err = s.notifier.Notify(ctx, unit, notifications.NotifyInput{
			UserID:     target.ID,
			FromUserID: &fromID,
			Category:   enums.NotificationCategoryFriend,
			Message:    fmt.Sprintf("%s sent you a friend request", sender.Username),
			ResourceID: &fromID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logCommitted(ctx, "friend request sent", fromID, result.UserID)
	return &result, nil
}

func (s *service) AcceptRequest(ctx context.Context, userID, fromID uuid.UUID) error {
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		user, err := s.users.ByID(ctx, unit, userID)
		if err != nil {
			return err
		}
		return s.accept(ctx, unit, userID, user.Username, fromID)
	})
	if err != nil {
		return err
	}
	s.logCommitted(ctx, "friend request accepted", userID, fromID)
	return nil
}

// accept turns fromID's pending request to userID into a friendship.
func (s *service) accept(ctx context.Context, unit *uow.Unit, userID uuid.UUID, username string, fromID uuid.UUID) error {
	repo := s.repo.WithTx(unit.Tx())
	removed, err := repo.DeleteRequest(ctx, fromID, userID)
	if err != nil {
		return pkgerrors.Internal(err, "delete friend request")
	}
	if removed == 0 {
		return pkgerrors.Statef("no pending friend request from this user")
	}
	// a crossing request in the other direction is settled too
	if _, err := repo.DeleteRequest(ctx, userID, fromID); err != nil {
		return pkgerrors.Internal(err, "delete friend request")
	}
	if err := repo.CreateFriendship(ctx, userID, fromID); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Conflictf("already friends")
		}
		return pkgerrors.Internal(err, "create friendship")
	}
	_, err = s.notifier.Notify(ctx, unit, notifications.NotifyInput{
		UserID:     fromID,
		FromUserID: &userID,
		Category:   enums.NotificationCategoryFriend,
		Message:    fmt.Sprintf("%s accepted your friend request", username),
		ResourceID: &userID,
	})
	return err
}

func (s *service) DeclineRequest(ctx context.Context, userID, fromID uuid.UUID) error {
	return s.dropRequest(ctx, fromID, userID)
}

func (s *service) CancelRequest(ctx context.Context, userID, toID uuid.UUID) error {
	return s.dropRequest(ctx, userID, toID)
}

func (s *service) dropRequest(ctx context.Context, fromID, toID uuid.UUID) error {
	return s.runner.Do(ctx, func(unit *uow.Unit) error {
		removed, err := s.repo.WithTx(unit.Tx()).DeleteRequest(ctx, fromID, toID)
		if err != nil {
			return pkgerrors.Internal(err, "delete friend request")
		}
		if removed == 0 {
			return pkgerrors.Statef("no pending friend request")
		}
		return nil
	})
}

func (s *service) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	return s.runner.Do(ctx, func(unit *uow.Unit) error {
		removed, err := s.repo.WithTx(unit.Tx()).DeleteFriendship(ctx, userID, friendID)
		if err != nil {
			return pkgerrors.Internal(err, "delete friendship")
		}
		if removed == 0 {
			return pkgerrors.NotFoundf("not friends with this user")
		}
		return nil
	})
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*ListDTO, error) {
	var out ListDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		repo := s.repo.WithTx(unit.Tx())
		sets := []struct {
			load func(context.Context, uuid.UUID) ([]uuid.UUID, error)
			into *[]users.PublicUserDTO
		}{
			{repo.FriendIDs, &out.Friends},
			{repo.IncomingIDs, &out.Incoming},
			{repo.OutgoingIDs, &out.Outgoing},
		}
		for _, set := range sets {
			ids, err := set.load(ctx, userID)
			if err != nil {
				return pkgerrors.Internal(err, "load friends")
			}
			public, err := s.users.Public(ctx, unit, ids)
			if err != nil {
				return err
			}
			if public == nil {
				public = []users.PublicUserDTO{}
			}
			*set.into = public
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *service) logCommitted(ctx context.Context, msg string, userID, otherID uuid.UUID) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":  userID.String(),
		"other_id": otherID.String(),
	})
	s.logg.Info(logCtx, msg)
}
