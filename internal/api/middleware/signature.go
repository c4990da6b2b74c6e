package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitchflow/labelrelay/internal/telemetry"
)

const (
	headerTimestamp = "X-Timestamp"
	headerSignature = "X-Signature"

	maxClockSkew = 5 * time.Minute
)

// SignatureMiddleware authenticates every request except CORS preflight
// with an HMAC-SHA256 signature over "{timestamp}.{body}"; GETs sign the
// empty body. The timestamp is epoch
// milliseconds; stale or future-dated requests are rejected so captured
// signatures cannot be replayed later.
type SignatureMiddleware struct {
	secret []byte
	now    func() time.Time
}

func NewSignatureMiddleware(secret string) *SignatureMiddleware {
	return &SignatureMiddleware{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (s *SignatureMiddleware) RequireSignature() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		tsHeader := c.GetHeader(headerTimestamp)
		sigHeader := c.GetHeader(headerSignature)
		if tsHeader == "" || sigHeader == "" {
			s.reject(c, "missing signature headers")
			return
		}

		tsMillis, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			s.reject(c, "invalid timestamp")
			return
		}

		ts := time.UnixMilli(tsMillis)
		skew := s.now().Sub(ts)
		if skew < -maxClockSkew || skew > maxClockSkew {
			s.reject(c, "signature expired")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			s.reject(c, "unreadable request body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		mac := hmac.New(sha256.New, s.secret)
		fmt.Fprintf(mac, "%s.", tsHeader)
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(expected), []byte(sigHeader)) {
			s.reject(c, "invalid signature")
			return
		}

		c.Next()
	}
}

func (s *SignatureMiddleware) reject(c *gin.Context, message string) {
	telemetry.SignatureRejects.Inc()
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
