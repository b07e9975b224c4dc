package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/cache"
	"shopfront_back_end/internal/logging"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/utils"
)

var secret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type usersByID map[string]*models.User

func (u usersByID) FindByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, apperr.ErrNotFound
}

func guardedRouter(tokens TokenParser, users UserFinder) *gin.Engine {
	r := gin.New()
	auth := Authenticate(tokens, users)
	r.GET("/me", auth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c)})
	})
	r.GET("/admin", auth, RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthenticate(t *testing.T) {
	tokens := utils.NewTokenService(secret, time.Hour, time.Hour)
	expired := utils.NewTokenService(secret, -time.Minute, -time.Minute)
	users := usersByID{
		"u1": {ID: "u1", Role: models.RoleUser},
		"a1": {ID: "a1", Role: models.RoleAdmin},
	}
	r := guardedRouter(tokens, users)

	userToken, _ := tokens.GenerateUserToken("u1")
	adminToken, _ := tokens.GenerateAdminToken("a1")
	ghostToken, _ := tokens.GenerateUserToken("ghost")
	staleToken, _ := expired.GenerateUserToken("u1")

	cases := []struct {
		name    string
		path    string
		headers map[string]string
		status  int
		message string
	}{
		{"missing token", "/me", nil, http.StatusUnauthorized, "Not Authorized - Please login"},
		{"expired token", "/me", map[string]string{"token": staleToken}, http.StatusUnauthorized, "Token expired - Please login again"},
		{"garbage token", "/me", map[string]string{"token": "abc.def.ghi"}, http.StatusUnauthorized, "Invalid token"},
		{"unknown user", "/me", map[string]string{"token": ghostToken}, http.StatusUnauthorized, "User not found"},
		{"token header", "/me", map[string]string{"token": userToken}, http.StatusOK, ""},
		{"bearer header", "/me", map[string]string{"Authorization": "Bearer " + userToken}, http.StatusOK, ""},
		{"user on admin route", "/admin", map[string]string{"token": userToken}, http.StatusForbidden, "Access Denied - Admin only"},
		{"admin on admin route", "/admin", map[string]string{"token": adminToken}, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.message != "" {
				body := decode(t, w)
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tc.message, body["message"])
			}
		})
	}
}

func TestAuthenticateQueryTokenOnlyForWebSocket(t *testing.T) {
	tokens := utils.NewTokenService(secret, time.Hour, time.Hour)
	r := guardedRouter(tokens, usersByID{"u1": {ID: "u1"}})
	token, _ := tokens.GenerateUserToken("u1")

	plain := httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, plain)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	upgrade := httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, upgrade)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", decode(t, w)["id"])
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.POST("/login", LoginRateLimit(cache.NewRateCounter(client)), func(c *gin.Context) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = c.ShouldBindJSON(&in)
		if in.Password != "right" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	login := func(password string) *httptest.ResponseRecorder {
		body := `{"email":"Bob@Example.com","password":"` + password + `"}`
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	// the body is still readable downstream
	assert.Equal(t, http.StatusOK, login("right").Code)

	for i := 0; i < LoginMaxAttempts; i++ {
		assert.Equal(t, http.StatusUnauthorized, login("wrong").Code)
	}

	w := login("right")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, decode(t, w)["message"], "Too many failed attempts")

	mr.FastForward(LoginCooldown + time.Second)
	assert.Equal(t, http.StatusOK, login("right").Code)
}

func TestLoginRateLimitIsPerClientIP(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.POST("/login", LoginRateLimit(cache.NewRateCounter(client)), func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false})
	})

	login := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"bob@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < LoginMaxAttempts; i++ {
		require.Equal(t, http.StatusUnauthorized, login("203.0.113.7:4000"))
	}
	assert.Equal(t, http.StatusTooManyRequests, login("203.0.113.7:4000"))
	assert.Equal(t, http.StatusUnauthorized, login("198.51.100.2:4000"))
}

func TestRegisterRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.POST("/register", RegisterRateLimit(cache.NewRateCounter(client)), func(c *gin.Context) {
		if c.Query("taken") == "1" {
			c.JSON(http.StatusConflict, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true})
	})

	register := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, target, nil))
		return w
	}

	// failed sign-ups are not counted
	for i := 0; i < RegisterMaxAccounts+2; i++ {
		require.Equal(t, http.StatusConflict, register("/register?taken=1").Code)
	}
	for i := 0; i < RegisterMaxAccounts; i++ {
		require.Equal(t, http.StatusCreated, register("/register").Code)
	}

	w := register("/register")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, decode(t, w)["message"], "Too many sign-ups")

	mr.FastForward(RegisterCooldown + time.Second)
	assert.Equal(t, http.StatusCreated, register("/register").Code)
}

func TestSearchRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.GET("/search", SearchRateLimit(cache.NewRateCounter(client)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	search := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/search?q=shirt", nil)
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < SearchMaxRequests; i++ {
		require.Equal(t, http.StatusOK, search("203.0.113.7:4000"))
	}
	assert.Equal(t, http.StatusTooManyRequests, search("203.0.113.7:4000"))
	assert.Equal(t, http.StatusOK, search("198.51.100.2:4000"))

	mr.FastForward(SearchWindow + time.Second)
	assert.Equal(t, http.StatusOK, search("203.0.113.7:4000"))
}

func TestCartRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.POST("/cart", func(c *gin.Context) {
		c.Set(userKey, &models.User{ID: "u1"})
	}, CartRateLimit(cache.NewRateCounter(client)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < CartMaxRequests; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cart", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cart", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logging.NewWithWriter(&buf, "info")

	r := gin.New()
	r.Use(RequestLogger(base))
	r.GET("/items/:id", func(c *gin.Context) {
		logging.FromContext(c.Request.Context()).Info("inside handler")
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	req.Header.Set(requestIDHeader, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "rid-1", w.Header().Get(requestIDHeader))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var inside, done map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &inside))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &done))
	assert.Equal(t, "rid-1", inside["request_id"])
	assert.Equal(t, "/items/:id", done["path"])
	assert.Equal(t, "WARN", done["level"])
	assert.Equal(t, float64(http.StatusNotFound), done["status"])
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.GET("/", Timeout(time.Second), func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": ok})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, true, decode(t, w)["deadline"])
}
