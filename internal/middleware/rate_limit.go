package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"shopfront_back_end/internal/cache"
	"shopfront_back_end/internal/logging"
)

const (
	LoginMaxAttempts = 5
	LoginCooldown    = 15 * time.Minute

	RegisterMaxAccounts = 3
	RegisterCooldown    = 30 * time.Minute

	CartMaxRequests = 60
	CartWindow      = time.Minute

	SearchMaxRequests = 30
	SearchWindow      = time.Minute
)

// loginKeys scopes the counters to one email from one client IP.
func loginKeys(ip, email string) (attempts, cooldown string) {
	return "login_attempts:" + ip + ":" + email, "login_cooldown:" + ip + ":" + email
}

func tooManyRequests(c *gin.Context, message string, retryAfter time.Duration) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success":     false,
		"message":     message,
		"retry_after": int(retryAfter.Seconds()),
	})
}

// LoginRateLimit blocks an email on a client IP for LoginCooldown after
// LoginMaxAttempts failed logins. Redis failures let the request through.
func LoginRateLimit(counter *cache.RateCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abort(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var input struct {
			Email string `json:"email"`
		}
		if err := json.Unmarshal(body, &input); err != nil || strings.TrimSpace(input.Email) == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		log := logging.FromContext(ctx)
		email := strings.ToLower(strings.TrimSpace(input.Email))
		attemptsKey, cooldownKey := loginKeys(c.ClientIP(), email)

		remaining, err := counter.Blocked(ctx, cooldownKey)
		if err != nil {
			log.Warn("login rate limit unavailable", "error", err)
			c.Next()
			return
		}
		if remaining > 0 {
			minutes := int(math.Ceil(remaining.Minutes()))
			tooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d minutes", minutes), remaining)
			return
		}

		c.Next()

		switch status := c.Writer.Status(); {
		case status == http.StatusUnauthorized || status == http.StatusNotFound:
			n, err := counter.Increment(ctx, attemptsKey, LoginCooldown)
			if err != nil {
				log.Warn("login attempt not counted", "error", err)
				return
			}
			if n >= LoginMaxAttempts {
				if err := counter.Block(ctx, cooldownKey, LoginCooldown); err != nil {
					log.Warn("login cooldown not set", "error", err)
				}
				_ = counter.Reset(ctx, attemptsKey)
				log.Warn("login blocked after repeated failures", "email", email)
			}
		case status < http.StatusBadRequest:
			_ = counter.Reset(ctx, attemptsKey, cooldownKey)
		}
	}
}

// CartRateLimit caps cart mutations per user. Must run after Authenticate.
func CartRateLimit(counter *cache.RateCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			c.Next()
			return
		}
		n, err := counter.Increment(c.Request.Context(), "cart_requests:"+userID, CartWindow)
		if err != nil {
			logging.FromContext(c.Request.Context()).Warn("cart rate limit unavailable", "error", err)
			c.Next()
			return
		}
		if n > CartMaxRequests {
			tooManyRequests(c, "Too many cart updates, slow down", CartWindow)
			return
		}
		c.Next()
	}
}

// RegisterRateLimit allows RegisterMaxAccounts successful sign-ups per client IP,
// then blocks the IP for RegisterCooldown.
func RegisterRateLimit(counter *cache.RateCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logging.FromContext(ctx)
		ip := c.ClientIP()
		attemptsKey, cooldownKey := "register_attempts:"+ip, "register_cooldown:"+ip

		remaining, err := counter.Blocked(ctx, cooldownKey)
		if err != nil {
			log.Warn("register rate limit unavailable", "error", err)
			c.Next()
			return
		}
		if remaining > 0 {
			minutes := int(math.Ceil(remaining.Minutes()))
			tooManyRequests(c, fmt.Sprintf("Too many sign-ups. Try again in %d minutes", minutes), remaining)
			return
		}

		c.Next()

		if c.Writer.Status() != http.StatusCreated {
			return
		}
		n, err := counter.Increment(ctx, attemptsKey, RegisterCooldown)
		if err != nil {
			log.Warn("sign-up not counted", "error", err)
			return
		}
		if n >= RegisterMaxAccounts {
			if err := counter.Block(ctx, cooldownKey, RegisterCooldown); err != nil {
				log.Warn("register cooldown not set", "error", err)
			}
			_ = counter.Reset(ctx, attemptsKey)
			log.Warn("sign-ups blocked for client", "ip", ip)
		}
	}
}

// SearchRateLimit caps product searches per client IP.
func SearchRateLimit(counter *cache.RateCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := counter.Increment(c.Request.Context(), "search_requests:"+c.ClientIP(), SearchWindow)
		if err != nil {
			logging.FromContext(c.Request.Context()).Warn("search rate limit unavailable", "error", err)
			c.Next()
			return
		}
		if n > SearchMaxRequests {
			tooManyRequests(c, "Too many searches. Try again in 1 minute", SearchWindow)
			return
		}
		c.Next()
	}
}
