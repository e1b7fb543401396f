package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/certificate-processor/internal/auth"
	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

type usersByID map[int64]models.User

func (u usersByID) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := u[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &user, nil
}

func newAuthRouter(v *auth.Verifier, users UserLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), JWT(v, users, logger.NewNop()))
	r.GET("/me", func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, user)
	})
	r.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func request(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	v := auth.NewVerifier("secret", "")
	student := models.User{ID: 1, Username: "2021000000001", RealName: "张三", Role: models.RoleStudent, IsActive: true}
	r := newAuthRouter(v, nil)

	token, err := v.Sign(student, time.Hour)
	require.NoError(t, err)

	w := request(r, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2021000000001")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	assert.Equal(t, http.StatusUnauthorized, request(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "/me", "garbage").Code)
	assert.Equal(t, http.StatusForbidden, request(r, "/admin", token).Code)

	adminToken, err := v.Sign(models.User{ID: 9, Username: "root", Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, request(r, "/admin", adminToken).Code)
}

func TestJWTReloadsStoredUser(t *testing.T) {
	v := auth.NewVerifier("secret", "")
	users := usersByID{
		1: {ID: 1, Username: "2021000000001", RealName: "张三（更新）", Role: models.RoleStudent, IsActive: true},
		2: {ID: 2, Username: "t1", RealName: "停用", Role: models.RoleTeacher, IsActive: false},
	}
	r := newAuthRouter(v, users)

	active, err := v.Sign(models.User{ID: 1, Username: "2021000000001", RealName: "张三", Role: models.RoleStudent}, time.Hour)
	require.NoError(t, err)
	w := request(r, "/me", active)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "张三（更新）")

	disabled, err := v.Sign(models.User{ID: 2, Username: "t1", Role: models.RoleTeacher}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, request(r, "/me", disabled).Code)

	unknown, err := v.Sign(models.User{ID: 3, Username: "ghost", Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, request(r, "/me", unknown).Code)
}
