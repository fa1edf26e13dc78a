package remoted

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// maxClockSkew bounds how stale an HMAC timestamp may be.
const maxClockSkew = 5 * time.Minute

// Auth validates incoming requests. HMAC key pairs and basic users may
// both be configured; a request passes if either scheme accepts it.
type Auth struct {
	// Keys maps API key IDs to their shared secrets.
	Keys map[string]string
	// Users maps usernames to passwords.
	Users map[string]string

	now func() time.Time
}

// NewAuth creates an Auth with the given credential sets.
func NewAuth(keys, users map[string]string) *Auth {
	return &Auth{Keys: keys, Users: users, now: time.Now}
}

// Middleware rejects requests that carry no acceptable credentials.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		if strings.HasPrefix(header, "HMAC ") {
			if a.checkHMAC(c, strings.TrimPrefix(header, "HMAC ")) {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		if username, password, ok := c.Request.BasicAuth(); ok {
			want, exists := a.Users[username]
			if exists && subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1 {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
}

// checkHMAC validates a "keyid:timestamp:signature" credential. The
// signature covers method, path, timestamp, and the SHA-256 of the
// body, matching what clients sign.
func (a *Auth) checkHMAC(c *gin.Context, credential string) bool {
	parts := strings.SplitN(credential, ":", 3)
	if len(parts) != 3 {
		return false
	}
	keyID, tsStr, sig := parts[0], parts[1], parts[2]

	secret, ok := a.Keys[keyID]
	if !ok {
		return false
	}

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return false
	}
	issued := time.Unix(ts, 0)
	nowFn := a.now
	if nowFn == nil {
		nowFn = time.Now
	}
	if skew := nowFn().Sub(issued); skew > maxClockSkew || skew < -maxClockSkew {
		return false
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return false
	}
	// Hand the body back to the handler.
	c.Request.Body = io.NopCloser(strings.NewReader(string(body)))

	digest := sha256.Sum256(body)
	payload := strings.Join([]string{
		c.Request.Method,
		c.Request.URL.Path,
		tsStr,
		hex.EncodeToString(digest[:]),
	}, "\n")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	want := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(want), []byte(sig))
}
