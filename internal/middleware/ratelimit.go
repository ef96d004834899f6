package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/blogdesk/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	PublicRate      rate.Limit    // 公開APIのレート（req/sec、IPごと）
	PublicBurst     int           // 公開APIのバーストサイズ
	AdminRate       rate.Limit    // 管理APIのレート（req/sec、ユーザーごと）
	AdminBurst      int           // 管理APIのバーストサイズ
	ImportRate      rate.Limit    // CSV取り込みのレート（req/sec、ユーザーごと）
	ImportBurst     int           // CSV取り込みのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 公開API 300 req/min/IP、管理API 120 req/min/user、CSV取り込み 10 req/min/user
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(300, 120, 10)
}

// NewRateLimiterConfig は1分あたりのリクエスト数から設定を生成する。
// バーストサイズは1分あたりのリクエスト数と同じにする。
func NewRateLimiterConfig(publicPerMin, adminPerMin, importPerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		PublicRate:      perMinute(publicPerMin),
		PublicBurst:     max(publicPerMin, 1),
		AdminRate:       perMinute(adminPerMin),
		AdminBurst:      max(adminPerMin, 1),
		ImportRate:      perMinute(importPerMin),
		ImportBurst:     max(importPerMin, 1),
		CleanupInterval: 5 * time.Minute,
	}
}

func perMinute(n int) rate.Limit {
	if n <= 0 {
		n = 1
	}
	return rate.Limit(float64(n) / 60.0)
}

// keyLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はキー（IPまたはユーザーID）ごとのリミッター集合。
type limiterSet struct {
	mu       sync.RWMutex
	limiters map[string]*keyLimiter
	rate     rate.Limit
	burst    int
}

func newLimiterSet(r rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limiters: make(map[string]*keyLimiter),
		rate:     r,
		burst:    burst,
	}
}

// get はキーのリミッターを取得または作成する。
func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.RLock()
	kl, exists := s.limiters[key]
	s.mu.RUnlock()

	if exists {
		s.mu.Lock()
		kl.lastAccess = time.Now()
		s.mu.Unlock()
		return kl.limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ダブルチェック
	if kl, exists := s.limiters[key]; exists {
		kl.lastAccess = time.Now()
		return kl.limiter
	}

	limiter := rate.NewLimiter(s.rate, s.burst)
	s.limiters[key] = &keyLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (s *limiterSet) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

// evict は最終アクセスからttlを超えたエントリを削除する。
func (s *limiterSet) evict(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, kl := range s.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

// RateLimiter はレート制限を管理する。
// 公開API（IPごと）、管理API（ユーザーごと）、CSV取り込み（ユーザーごと）の3種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	public  *limiterSet
	admin   *limiterSet
	imports *limiterSet

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		public:  newLimiterSet(config.PublicRate, config.PublicBurst),
		admin:   newLimiterSet(config.AdminRate, config.AdminBurst),
		imports: newLimiterSet(config.ImportRate, config.ImportBurst),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// PublicMiddleware は公開APIのレート制限ミドルウェアを返す。クライアントIPごとに制限する。
// 公開APIのエラー形式に合わせ、429の本文は {"error": "..."} とする。
func (rl *RateLimiter) PublicMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.public.get(ip).Allow() {
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("limit_type", "public"),
				)
				setRetryAfter(w, rl.config.PublicRate)
				WritePublicError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminMiddleware は管理APIのレート制限ミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある（認証ミドルウェアの後に配置）。
func (rl *RateLimiter) AdminMiddleware() func(next http.Handler) http.Handler {
	return rl.userMiddleware(rl.admin, rl.config.AdminRate, "admin")
}

// ImportMiddleware はCSV取り込み専用のレート制限ミドルウェアを返す。
// 管理API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) ImportMiddleware() func(next http.Handler) http.Handler {
	return rl.userMiddleware(rl.imports, rl.config.ImportRate, "import")
}

func (rl *RateLimiter) userMiddleware(set *limiterSet, r rate.Limit, limitType string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userID, err := UserIDFromContext(req.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if !set.get(userID).Allow() {
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", limitType),
				)
				setRetryAfter(w, r)
				WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// PublicLimiterCount は現在管理されている公開APIリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) PublicLimiterCount() int {
	return rl.public.count()
}

// AdminLimiterCount は現在管理されている管理APIリミッターのエントリ数を返す。
func (rl *RateLimiter) AdminLimiterCount() int {
	return rl.admin.count()
}

// ImportLimiterCount は現在管理されているCSV取り込みリミッターのエントリ数を返す。
func (rl *RateLimiter) ImportLimiterCount() int {
	return rl.imports.count()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()

	rl.public.evict(now, ttl)
	rl.admin.evict(now, ttl)
	rl.imports.evict(now, ttl)
}

// clientIP はRemoteAddrからポートを除いたIPを返す。
// リバースプロキシ配下ではchiのRealIPミドルウェアでRemoteAddrを書き換えておくこと。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// setRetryAfter はトークンが補充されるまでの推定秒数をRetry-Afterヘッダーに設定する。
func setRetryAfter(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
}
