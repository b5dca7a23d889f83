package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/repository"
	"github.com/Aun-shahid/TherapEase/internal/util"
)

type mockUserRepo struct {
	findByTokenHashFunc func(ctx context.Context, tokenHash string) (*model.User, error)
}

func (m *mockUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	if m.findByTokenHashFunc != nil {
		return m.findByTokenHashFunc(ctx, tokenHash)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) MergeFields(ctx context.Context, id string, fields model.MergeUserFields) error {
	return nil
}

func (m *mockUserRepo) SetTokenHash(ctx context.Context, id string, tokenHash string) error {
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository {
	return m
}

func TestAuthMiddleware(t *testing.T) {
	testUser := &model.User{ID: "user-1", Role: model.RoleTherapist, IsActive: true}
	validToken := "valid-token"
	validTokenHash := util.HashToken(validToken)

	repo := &mockUserRepo{
		findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.User, error) {
			if tokenHash == validTokenHash {
				return testUser, nil
			}
			return nil, nil
		},
	}

	t.Run("allows request with bearer token", func(t *testing.T) {
		middleware := NewAuthMiddleware(repo)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			require.NotNil(t, user)
			assert.Equal(t, "user-1", user.ID)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+validToken)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("allows request with query token", func(t *testing.T) {
		middleware := NewAuthMiddleware(repo)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("GET", "/test?token="+validToken, nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects request without token", func(t *testing.T) {
		middleware := NewAuthMiddleware(repo)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects request with invalid token", func(t *testing.T) {
		middleware := NewAuthMiddleware(repo)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer wrong-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns 500 on database error", func(t *testing.T) {
		failing := &mockUserRepo{
			findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.User, error) {
				return nil, errors.New("database error")
			},
		}
		middleware := NewAuthMiddleware(failing)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+validToken)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	wrap := func(user *model.User) *http.Request {
		req := httptest.NewRequest("GET", "/test", nil)
		if user != nil {
			ctx := context.WithValue(req.Context(), UserContextKey, user)
			req = req.WithContext(ctx)
		}
		return req
	}

	handler := RequireRole(model.RoleTherapist)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("matching role passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, wrap(&model.User{ID: "u-1", Role: model.RoleTherapist}))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("other role is forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, wrap(&model.User{ID: "u-1", Role: model.RolePatient}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing user is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, wrap(nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetUser(t *testing.T) {
	t.Run("returns user from context", func(t *testing.T) {
		user := &model.User{ID: "user-1"}
		ctx := context.WithValue(context.Background(), UserContextKey, user)

		result := GetUser(ctx)

		require.NotNil(t, result)
		assert.Equal(t, "user-1", result.ID)
	})

	t.Run("returns nil when no user in context", func(t *testing.T) {
		assert.Nil(t, GetUser(context.Background()))
	})
}
