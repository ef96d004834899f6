// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/blogdesk/internal/auth"
	"github.com/hitoshi/blogdesk/internal/model"
)

// accessTokenCookieName はBearerヘッダーがない場合に参照するCookieの名前。
const accessTokenCookieName = "access_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// identityContextKey はリクエストコンテキストに認証済みIDを格納するためのキー。
	identityContextKey = contextKey("identity")
	// authSourceContextKey はトークンの取得元（bearer/cookie）を格納するためのキー。
	authSourceContextKey = contextKey("auth_source")
)

// トークンの取得元
const (
	AuthSourceBearer = "bearer"
	AuthSourceCookie = "cookie"
)

// NewAuthMiddleware はIDプロバイダーが発行したアクセストークンを検証するミドルウェアを返す。
// Authorization: Bearer ヘッダーを優先し、なければaccess_token Cookieを使用する。
// 認証済みIDをリクエストコンテキストに注入し、未認証リクエストには401を返す。
func NewAuthMiddleware(verifier auth.Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. トークンを取得
			token, source := tokenFromRequest(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. 署名と有効期限を検証
			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				slog.Warn("access token rejected",
					slog.String("source", source),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. 認証済みIDをコンテキストに注入
			ctx := ContextWithIdentity(r.Context(), identity)
			ctx = context.WithValue(ctx, authSourceContextKey, source)
			setRequestUser(ctx, identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest はリクエストからアクセストークンとその取得元を返す。
func tokenFromRequest(r *http.Request) (string, string) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token), AuthSourceBearer
		}
		return "", AuthSourceBearer
	}
	if cookie, err := r.Cookie(accessTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, AuthSourceCookie
	}
	return "", ""
}

// IdentityFromContext はリクエストコンテキストから認証済みIDを取得する。
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*auth.Identity)
	return identity, ok && identity != nil
}

// ContextWithIdentity はコンテキストに認証済みIDを注入する。
func ContextWithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return identity.UserID, nil
}

// ContextWithUserID はコンテキストにユーザーIDのみを持つIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithIdentity(ctx, &auth.Identity{UserID: userID})
}

// authSourceFromContext はトークンの取得元を返す。
func authSourceFromContext(ctx context.Context) string {
	source, _ := ctx.Value(authSourceContextKey).(string)
	return source
}
