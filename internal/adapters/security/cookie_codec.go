package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

// HMACCookieCodec signs attribution claims as code|click_id|expiry|signature,
// base64url encoded. The expiry is inside the signed payload, so neither the
// pinned affiliate nor the window can be stretched client-side.
type HMACCookieCodec struct {
	secret []byte
}

func NewHMACCookieCodec(secret string) (*HMACCookieCodec, error) {
	if secret == "" {
		return nil, errors.New("attribution cookie secret is required")
	}
	return &HMACCookieCodec{secret: []byte(secret)}, nil
}

func (c *HMACCookieCodec) Encode(claim ports.AttributionClaim) (string, error) {
	if claim.Code == "" || claim.ClickID == "" {
		return "", domain.ErrInvalidInput
	}
	if strings.ContainsRune(claim.Code, '|') || strings.ContainsRune(claim.ClickID, '|') {
		return "", domain.ErrInvalidInput
	}
	payload := fmt.Sprintf("%s|%s|%d", claim.Code, claim.ClickID, claim.ExpiresAt.Unix())
	signature := c.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload + "|" + signature)), nil
}

func (c *HMACCookieCodec) Decode(value string, now time.Time) (ports.AttributionClaim, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return ports.AttributionClaim{}, domain.ErrInvalidInput
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 {
		return ports.AttributionClaim{}, domain.ErrInvalidInput
	}
	payload := strings.Join(parts[:3], "|")
	if !hmac.Equal([]byte(c.sign(payload)), []byte(parts[3])) {
		return ports.AttributionClaim{}, domain.ErrInvalidInput
	}
	expiresUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return ports.AttributionClaim{}, domain.ErrInvalidInput
	}
	expiresAt := time.Unix(expiresUnix, 0).UTC()
	if !expiresAt.After(now) {
		return ports.AttributionClaim{}, domain.ErrInvalidInput
	}
	return ports.AttributionClaim{
		Code:      parts[0],
		ClickID:   parts[1],
		ExpiresAt: expiresAt,
	}, nil
}

func (c *HMACCookieCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
