// Package auth 是宿主端的呼叫者驗證：以 HMAC JWT 簽發與驗證帳戶身分。
// 驗證成功只產生 ledger.Origin；沒有角色或權限分級。
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ledger/internal/ledger"
)

const issuer = "ledger"

var (
	// ErrMissingSecret 代表未設定簽章金鑰。
	ErrMissingSecret = errors.New("jwt secret is required")

	// ErrInvalidToken 代表 token 無效、過期或簽章不符。
	ErrInvalidToken = errors.New("invalid token")
)

// Authority 以單一共用金鑰簽發與驗證呼叫者 token。
type Authority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New 建立 Authority；ttl <= 0 時簽發的 token 不過期。
func New(secret string, ttl time.Duration) (*Authority, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Authority{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue 為 account 簽發 token；subject 即帳戶識別。
func (a *Authority) Issue(account ledger.AccountID) (string, error) {
	if account == "" {
		return "", ledger.ErrBadAccount
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  string(account),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if a.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(a.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify 驗證 token 並回傳已簽章的呼叫者。
func (a *Authority) Verify(token string) (ledger.Origin, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return ledger.Origin{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return ledger.Origin{}, ErrInvalidToken
	}
	return ledger.Signed(ledger.AccountID(claims.Subject)), nil
}

type ctxKey struct{}

// WithOrigin 將已驗證的呼叫者放入 context。
func WithOrigin(ctx context.Context, o ledger.Origin) context.Context {
	return context.WithValue(ctx, ctxKey{}, o)
}

// OriginFrom 取出呼叫者；不存在時回傳零值（未簽章）。
func OriginFrom(ctx context.Context) ledger.Origin {
	o, _ := ctx.Value(ctxKey{}).(ledger.Origin)
	return o
}

// BearerToken 由 Authorization 標頭取出 token。
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
