// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/auth"
	"github.com/keyfold/keyfold/internal/auth/mocks"
	"github.com/keyfold/keyfold/pkg/errutil"
)

func newTestIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer([]byte("test-secret"))
	require.NoError(t, err)
	return issuer
}

func validRegister() auth.RegisterRequest {
	return auth.RegisterRequest{
		Email:             "alice@example.com",
		PhoneNumber:       "+15550123456",
		Password:          "hunter22",
		ConfirmedPassword: "hunter22",
	}
}

func TestNewService_NilDependencies(t *testing.T) {
	issuer := newTestIssuer(t)

	tests := []struct {
		name        string
		accounts    auth.AccountRepository
		hasher      auth.PasswordHasher
		tokens      *auth.TokenIssuer
		expectError string
	}{
		{
			name:        "nil account repository",
			accounts:    nil,
			hasher:      mocks.NewMockPasswordHasher(t),
			tokens:      issuer,
			expectError: "account repository is required",
		},
		{
			name:        "nil password hasher",
			accounts:    mocks.NewMockAccountRepository(t),
			hasher:      nil,
			tokens:      issuer,
			expectError: "password hasher is required",
		},
		{
			name:        "nil token issuer",
			accounts:    mocks.NewMockAccountRepository(t),
			hasher:      mocks.NewMockPasswordHasher(t),
			tokens:      nil,
			expectError: "token issuer is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.accounts, tt.hasher, tt.tokens, time.Hour)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestNewServiceWithLogger_NilLogger(t *testing.T) {
	svc, err := auth.NewServiceWithLogger(
		mocks.NewMockAccountRepository(t),
		mocks.NewMockPasswordHasher(t),
		newTestIssuer(t),
		time.Hour,
		nil,
	)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "logger")
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account and returns its ID", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)

		repo.On("GetByEmail", ctx, "alice@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "hunter22").Return("$2a$12$fakehashfortest", nil)

		var created *auth.Account
		repo.On("Create", ctx, mock.AnythingOfType("*auth.Account")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*auth.Account)
			}).
			Return(nil)

		svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		accountID, err := svc.Register(ctx, validRegister())
		require.NoError(t, err)

		require.NotNil(t, created)
		assert.Equal(t, created.ID.String(), accountID)
		assert.Equal(t, "alice@example.com", created.Email)
		assert.Equal(t, "+15550123456", created.PhoneNumber)
		assert.Equal(t, "$2a$12$fakehashfortest", created.PasswordHash)
	})

	t.Run("duplicate email rejected before shape checks", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)

		// An existing account wins over every other problem with the
		// request, including an invalid phone number.
		existing, err := auth.NewAccount("alice@example.com", "+15550123456", "$2a$12$fakehashfortest")
		require.NoError(t, err)
		repo.On("GetByEmail", ctx, "alice@example.com").Return(existing, nil)

		svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		req := validRegister()
		req.PhoneNumber = "bogus"
		_, err = svc.Register(ctx, req)
		require.Error(t, err)
		assert.Equal(t, "Email already exists", err.Error())
	})

	t.Run("validation error order", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*auth.RegisterRequest)
			detail string
		}{
			{
				name:   "invalid email",
				mutate: func(r *auth.RegisterRequest) { r.Email = "not-an-email" },
				detail: "Invalid email format",
			},
			{
				name: "invalid email wins over short password",
				mutate: func(r *auth.RegisterRequest) {
					r.Email = "not-an-email"
					r.Password = "abc"
					r.ConfirmedPassword = "abc"
				},
				detail: "Invalid email format",
			},
			{
				name: "short password",
				mutate: func(r *auth.RegisterRequest) {
					r.Password = "abc"
					r.ConfirmedPassword = "abc"
				},
				detail: "Password should be at least 6 characters long",
			},
			{
				// Three characters even though six bytes.
				name: "short multibyte password",
				mutate: func(r *auth.RegisterRequest) {
					r.Password = "ééé"
					r.ConfirmedPassword = "ééé"
				},
				detail: "Password should be at least 6 characters long",
			},
			{
				name: "oversized password",
				mutate: func(r *auth.RegisterRequest) {
					r.Password = strings.Repeat("a", 73)
					r.ConfirmedPassword = r.Password
				},
				detail: "Password should be at most 72 bytes long",
			},
			{
				name: "oversized password wins over mismatch",
				mutate: func(r *auth.RegisterRequest) {
					r.Password = strings.Repeat("a", 73)
					r.ConfirmedPassword = "hunter22"
				},
				detail: "Password should be at most 72 bytes long",
			},
			{
				name: "short password wins over mismatch",
				mutate: func(r *auth.RegisterRequest) {
					r.Password = "abc"
					r.ConfirmedPassword = "abcdef"
				},
				detail: "Password should be at least 6 characters long",
			},
			{
				name:   "password mismatch",
				mutate: func(r *auth.RegisterRequest) { r.ConfirmedPassword = "hunter23" },
				detail: "Password mismatched",
			},
			{
				name:   "invalid phone",
				mutate: func(r *auth.RegisterRequest) { r.PhoneNumber = "555-0123" },
				detail: "Invalid phone number format",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := mocks.NewMockAccountRepository(t)
				hasher := mocks.NewMockPasswordHasher(t)

				req := validRegister()
				tt.mutate(&req)
				repo.On("GetByEmail", ctx, req.Email).Return(nil, auth.ErrNotFound)

				svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
				require.NoError(t, err)

				_, err = svc.Register(ctx, req)
				require.Error(t, err)
				errutil.AssertCodedMessage(t, err, "AUTH_VALIDATION", tt.detail)
			})
		}
	})

	t.Run("multibyte password at the character floor registers", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)

		// Six characters, twelve bytes: passes the floor.
		password := "éééééé"
		repo.On("GetByEmail", ctx, "alice@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", password).Return("$2a$12$fakehashfortest", nil)
		repo.On("Create", ctx, mock.AnythingOfType("*auth.Account")).Return(nil)

		svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		req := validRegister()
		req.Password = password
		req.ConfirmedPassword = password
		_, err = svc.Register(ctx, req)
		require.NoError(t, err)
	})

	t.Run("password at the byte ceiling registers", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)

		password := strings.Repeat("a", 72)
		repo.On("GetByEmail", ctx, "alice@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", password).Return("$2a$12$fakehashfortest", nil)
		repo.On("Create", ctx, mock.AnythingOfType("*auth.Account")).Return(nil)

		svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		req := validRegister()
		req.Password = password
		req.ConfirmedPassword = password
		_, err = svc.Register(ctx, req)
		require.NoError(t, err)
	})

	t.Run("insert race reported as duplicate", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)

		repo.On("GetByEmail", ctx, "alice@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "hunter22").Return("$2a$12$fakehashfortest", nil)
		repo.On("Create", ctx, mock.AnythingOfType("*auth.Account")).Return(auth.ErrDuplicateEmail)

		svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		_, err = svc.Register(ctx, validRegister())
		require.Error(t, err)
		assert.Equal(t, "Email already exists", err.Error())
	})

	t.Run("store failure during lookup", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)

		repo.On("GetByEmail", ctx, "alice@example.com").Return(nil, errors.New("connection refused"))

		svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		_, err = svc.Register(ctx, validRegister())
		require.Error(t, err)
		assert.NotEqual(t, "Email already exists", err.Error())
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials issue a session", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)

		account, err := auth.NewAccount("alice@example.com", "+15550123456", "$2a$12$storedhash")
		require.NoError(t, err)
		repo.On("GetByEmail", ctx, "alice@example.com").Return(account, nil)
		repo.On("GetByID", ctx, account.ID).Return(account, nil)
		hasher.On("Verify", "hunter22", "$2a$12$storedhash").Return(true, nil)

		svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		session, err := svc.Login(ctx, "alice@example.com", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, account.ID.String(), session.AccountID)
		assert.NotEmpty(t, session.Token)
		assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)

		// The token resolves back to the same account.
		subject, err := svc.VerifySession(ctx, session.Token)
		require.NoError(t, err)
		assert.Equal(t, account.ID.String(), subject)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		// Unknown email: the dummy record is still verified.
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		repo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Verify", "hunter22", mock.AnythingOfType("string")).Return(false, nil)

		svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		_, unknownErr := svc.Login(ctx, "nobody@example.com", "hunter22")
		require.Error(t, unknownErr)

		// Wrong password for an existing account.
		repo2 := mocks.NewMockAccountRepository(t)
		hasher2 := mocks.NewMockPasswordHasher(t)
		account, err := auth.NewAccount("alice@example.com", "+15550123456", "$2a$12$storedhash")
		require.NoError(t, err)
		repo2.On("GetByEmail", ctx, "alice@example.com").Return(account, nil)
		hasher2.On("Verify", "wrongpass", "$2a$12$storedhash").Return(false, nil)

		svc2, err := auth.NewService(repo2, hasher2, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		_, wrongErr := svc2.Login(ctx, "alice@example.com", "wrongpass")
		require.Error(t, wrongErr)

		assert.Equal(t, unknownErr.Error(), wrongErr.Error())
		assert.Equal(t, "Invalid email or password", wrongErr.Error())
	})

	t.Run("corrupt stored hash is not a credential failure", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)

		account, err := auth.NewAccount("alice@example.com", "+15550123456", "garbage-record")
		require.NoError(t, err)
		repo.On("GetByEmail", ctx, "alice@example.com").Return(account, nil)
		hasher.On("Verify", "hunter22", "garbage-record").
			Return(false, errors.New("stored credential is not a bcrypt record"))

		svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		_, err = svc.Login(ctx, "alice@example.com", "hunter22")
		require.Error(t, err)
		assert.NotEqual(t, "Invalid email or password", err.Error())
	})

	t.Run("store failure during lookup", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)

		repo.On("GetByEmail", ctx, "alice@example.com").Return(nil, errors.New("connection refused"))

		svc, err := auth.NewService(repo, hasher, newTestIssuer(t), time.Hour)
		require.NoError(t, err)

		_, err = svc.Login(ctx, "alice@example.com", "hunter22")
		require.Error(t, err)
	})
}

func TestService_VerifySession(t *testing.T) {
	ctx := context.Background()

	newService := func(t *testing.T) *auth.Service {
		t.Helper()
		svc, err := auth.NewService(
			mocks.NewMockAccountRepository(t),
			mocks.NewMockPasswordHasher(t),
			newTestIssuer(t),
			time.Hour,
		)
		require.NoError(t, err)
		return svc
	}

	t.Run("empty token", func(t *testing.T) {
		_, err := newService(t).VerifySession(ctx, "")
		require.Error(t, err)
		assert.Equal(t, "User not logged in. Please log in.", err.Error())
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := newService(t).VerifySession(ctx, "not-a-token")
		require.Error(t, err)
		assert.Equal(t, "Invalid or expired session. Please log in.", err.Error())
	})

	t.Run("expired token reported the same as invalid", func(t *testing.T) {
		issuer := newTestIssuer(t)
		past := issuer.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
		token, _, err := past.Issue("01ARZ3NDEKTSV4RRFFQ69G5FAV", time.Hour)
		require.NoError(t, err)

		_, err = newService(t).VerifySession(ctx, token)
		require.Error(t, err)
		assert.Equal(t, "Invalid or expired session. Please log in.", err.Error())
	})

	t.Run("token for a deleted account", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		issuer := newTestIssuer(t)

		account, err := auth.NewAccount("alice@example.com", "+15550123456", "$2a$12$storedhash")
		require.NoError(t, err)
		token, _, err := issuer.Issue(account.ID.String(), time.Hour)
		require.NoError(t, err)

		repo.On("GetByID", ctx, account.ID).Return(nil, auth.ErrNotFound)

		svc, err := auth.NewService(repo, mocks.NewMockPasswordHasher(t), issuer, time.Hour)
		require.NoError(t, err)

		_, err = svc.VerifySession(ctx, token)
		require.Error(t, err)
		assert.Equal(t, "Invalid or expired session. Please log in.", err.Error())
	})

	t.Run("store failure is not a credential failure", func(t *testing.T) {
		repo := mocks.NewMockAccountRepository(t)
		issuer := newTestIssuer(t)

		account, err := auth.NewAccount("alice@example.com", "+15550123456", "$2a$12$storedhash")
		require.NoError(t, err)
		token, _, err := issuer.Issue(account.ID.String(), time.Hour)
		require.NoError(t, err)

		repo.On("GetByID", ctx, account.ID).Return(nil, errors.New("connection refused"))

		svc, err := auth.NewService(repo, mocks.NewMockPasswordHasher(t), issuer, time.Hour)
		require.NoError(t, err)

		_, err = svc.VerifySession(ctx, token)
		require.Error(t, err)
		assert.NotEqual(t, "Invalid or expired session. Please log in.", err.Error())
	})
}
