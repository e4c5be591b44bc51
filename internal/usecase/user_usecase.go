package usecase

import (
	"context"
	"errors"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
)

type UserUsecase struct {
	users domain.UserRepository
}

func NewUserUsecase(users domain.UserRepository) *UserUsecase {
	return &UserUsecase{users: users}
}

func (u *UserUsecase) StartOrGetUser(ctx context.Context, telegramUserID int64, username string) (*domain.User, error) {
	user, err := u.users.GetByTelegramID(ctx, telegramUserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	newUser := &domain.User{
		TelegramUserID: telegramUserID,
		Username:       username,
	}
	if err := u.users.Create(ctx, newUser); err != nil {
		// A concurrent /start may have created the row first.
		if existing, getErr := u.users.GetByTelegramID(ctx, telegramUserID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	return newUser, nil
}

func (u *UserUsecase) Get(ctx context.Context, telegramUserID int64) (*domain.User, error) {
	user, err := u.users.GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotRegistered
		}
		return nil, err
	}
	return user, nil
}
