package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxUsernameLength = 64

// CreateAccount registers a new password account. The plaintext password is
// hashed before any store access and dropped immediately after.
func (e *Engine) CreateAccount(ctx context.Context, username, displayName, plaintext string) (*CreateAccountResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength || strings.ContainsAny(username, " \t\n") {
		return nil, fmt.Errorf("%w: username", ErrInvalidInput)
	}

	hash, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	plaintext = ""

	input := CreateUserInput{
		UserID:       uuid.NewString(),
		Username:     username,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
	}

	sctx, cancel := e.storeCtx(ctx)
	rec, err := e.store.CreateUser(sctx, input)
	cancel()
	if err != nil {
		err = wrapStoreErr(err)
		if errors.Is(err, ErrUserExists) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreated, false, "", username, "", err, nil)
		}
		return nil, err
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreated, true, rec.UserID, rec.Username, "", nil, func() map[string]string {
		return map[string]string{
			"created_at": rec.CreatedAt.UTC().Format(time.RFC3339),
		}
	})

	return &CreateAccountResult{
		UserID:   rec.UserID,
		Username: rec.Username,
	}, nil
}
