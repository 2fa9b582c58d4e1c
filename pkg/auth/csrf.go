package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// CSRFTokenTTL is how long a CSRF token stays valid.
const CSRFTokenTTL = 48 * time.Hour

// CSRFHeader carries the CSRF token on mutating requests.
const CSRFHeader = "X-CSRFToken"

// CSRF issues and checks per-user CSRF tokens of the form
// "<issued_unix>/<base64 hmac>".
type CSRF struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCSRF creates a CSRF token service.
func NewCSRF(secret string) *CSRF {
	return &CSRF{secret: []byte(secret), ttl: CSRFTokenTTL, now: time.Now}
}

func (c *CSRF) sign(userID, issued string) string {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write([]byte(userID + ":" + issued))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// Generate returns a token bound to userID.
func (c *CSRF) Generate(userID string) string {
	issued := strconv.FormatInt(c.now().Unix(), 10)
	return issued + "/" + c.sign(userID, issued)
}

// Valid reports whether token was issued to userID and has not expired.
func (c *CSRF) Valid(userID, token string) bool {
	issued, sig, ok := strings.Cut(token, "/")
	if !ok {
		return false
	}
	ts, err := strconv.ParseInt(issued, 10, 64)
	if err != nil {
		return false
	}
	age := c.now().Sub(time.Unix(ts, 0))
	if age < 0 || age > c.ttl {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(c.sign(userID, issued)))
}
