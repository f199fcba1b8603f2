package service

import (
	"context"
	"errors"
	"strings"

	"acmdaily/internal/account/repository"
	"acmdaily/internal/codeforces"
	pkgerrors "acmdaily/pkg/errors"
	"acmdaily/pkg/utils/logger"

	"go.uber.org/zap"
)

// UserClient looks a handle up on the remote judge.
type UserClient interface {
	FetchUser(ctx context.Context, handle string) (codeforces.User, error)
}

// AccountService manages the chat-identity to judge-handle binding that
// scoring is keyed on.
type AccountService struct {
	accounts repository.AccountRepository
	users    UserClient
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts repository.AccountRepository, users UserClient) *AccountService {
	return &AccountService{accounts: accounts, users: users}
}

// Bind links a chat identity to a judge handle. The handle must exist
// remotely, must not be claimed by another identity, and the identity
// must not already hold a binding. The stored handle uses the remote
// judge's canonical casing.
func (s *AccountService) Bind(ctx context.Context, chatID, handle string) (*repository.Account, error) {
	handle = strings.TrimSpace(handle)
	if chatID == "" || handle == "" {
		return nil, pkgerrors.New(pkgerrors.InvalidParams)
	}

	if _, err := s.accounts.GetByChatID(ctx, nil, chatID); err == nil {
		return nil, pkgerrors.New(pkgerrors.AccountAlreadyBound)
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	user, err := s.users.FetchUser(ctx, handle)
	if err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByHandle(ctx, nil, user.Handle); err == nil {
		return nil, pkgerrors.Newf(pkgerrors.HandleAlreadyBound, "handle %s is already bound", user.Handle)
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	account := &repository.Account{ChatID: chatID, Handle: user.Handle}
	id, err := s.accounts.Create(ctx, nil, account)
	if err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, pkgerrors.New(pkgerrors.HandleAlreadyBound)
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	account.ID = id

	logger.Info(ctx, "account bound", zap.String("chat_id", chatID), zap.String("handle", user.Handle))
	return account, nil
}

// Unbind removes the chat identity's binding. The accumulated score is
// dropped with the row.
func (s *AccountService) Unbind(ctx context.Context, chatID string) error {
	if err := s.accounts.Delete(ctx, nil, chatID); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return pkgerrors.New(pkgerrors.AccountNotBound)
		}
		return pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	logger.Info(ctx, "account unbound", zap.String("chat_id", chatID))
	return nil
}

// Whoami returns the binding for a chat identity.
func (s *AccountService) Whoami(ctx context.Context, chatID string) (*repository.Account, error) {
	account, err := s.accounts.GetByChatID(ctx, nil, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, pkgerrors.New(pkgerrors.AccountNotBound)
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	return account, nil
}
