/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/blnkfinance/payrec/config"
	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gin-gonic/gin"
)

const (
	// KeyHeader carries the back office secret key.
	KeyHeader = "X-Payrec-Key"
	// OperatorHeader names the person acting through the back office. It is
	// recorded as the actor of workflow actions and receipt reviews.
	OperatorHeader = "X-Payrec-Operator"

	operatorKey     = "payrec.operator"
	defaultOperator = "api"
)

func abort(c *gin.Context, status int, code apierror.ErrorCode, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// RateLimitMiddleware limits requests per client IP. Paths starting with any
// of exempt skip the limiter; store webhooks are sent in bursts and a dropped
// one is only recovered by the next poll.
func RateLimitMiddleware(conf *config.Configuration, exempt ...string) gin.HandlerFunc {
	if conf.RateLimit.RequestsPerSecond == nil || conf.RateLimit.Burst == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	ttl := time.Hour
	if conf.RateLimit.CleanupIntervalSec != nil {
		ttl = time.Duration(*conf.RateLimit.CleanupIntervalSec) * time.Second
	}
	lmt := tollbooth.NewLimiter(*conf.RateLimit.RequestsPerSecond, &limiter.ExpirableOptions{
		DefaultExpirationTTL: ttl,
	})
	lmt.SetBurst(*conf.RateLimit.Burst)

	return func(c *gin.Context) {
		for _, prefix := range exempt {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		if httpError := tollbooth.LimitByRequest(lmt, c.Writer, c.Request); httpError != nil {
			abort(c, httpError.StatusCode, apierror.ErrRateLimited, "too many requests, slow down")
			return
		}
		c.Next()
	}
}

// SecretKeyAuthMiddleware guards the back office routes. The key is read from
// KeyHeader or from an "Authorization: Bearer" header. On success the
// operator named in OperatorHeader is stored on the context.
func SecretKeyAuthMiddleware(secretKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secretKey == "" {
			abort(c, http.StatusInternalServerError, apierror.ErrInternalServer, "secret key is not configured")
			return
		}

		clientKey := presentedKey(c.Request)
		if clientKey == "" {
			abort(c, http.StatusUnauthorized, apierror.ErrUnauthorized, "missing secret key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(secretKey), []byte(clientKey)) != 1 {
			abort(c, http.StatusUnauthorized, apierror.ErrUnauthorized, "invalid secret key")
			return
		}

		if operator := strings.TrimSpace(c.GetHeader(OperatorHeader)); operator != "" {
			c.Set(operatorKey, operator)
		}
		c.Next()
	}
}

func presentedKey(r *http.Request) string {
	if key := r.Header.Get(KeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Operator returns who is acting on this request: the explicit value when
// set, else the authenticated operator, else "api".
func Operator(c *gin.Context, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if operator := c.GetString(operatorKey); operator != "" {
		return operator
	}
	return defaultOperator
}
