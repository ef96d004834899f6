package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/blogdesk/internal/auth"
	"github.com/hitoshi/blogdesk/internal/feed"
	"github.com/hitoshi/blogdesk/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	HTTPMetrics       middleware.StatusMetrics

	// 公開API
	BlogService BlogServiceInterface
	Site        feed.Site
	DB          Pinger
	Metrics     http.Handler // /metrics。nilの場合は公開しない

	// 管理API。Verifierがnilの場合は /api/admin を公開しない
	Verifier        auth.Verifier
	PostService     PostServiceInterface
	TaxonomyService TaxonomyServiceInterface
	WaitlistService WaitlistServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Logging → Metrics → Recovery → SecurityHeaders → CORS
//
// 公開API: RateLimit(Public)
// 管理API: Auth → CSRF → RateLimit(Admin)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 運用エンドポイント ---
	if deps.DB != nil {
		r.Get("/health", NewHealthHandler(deps.DB))
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// --- 公開API ---
	blogHandler := NewBlogHandler(deps.BlogService, deps.Site)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.PublicMiddleware())

		r.Get("/api/blog", blogHandler.ListPosts)
		r.Get("/api/blog/{slug}", blogHandler.GetPost)
		r.Get("/feed.xml", blogHandler.Feed)
	})

	if deps.Verifier == nil {
		return r
	}

	// --- 管理API ---
	// ミドルウェアスタック: Auth → CSRF → RateLimit(Admin)
	postHandler := NewPostHandler(deps.PostService)
	taxonomyHandler := NewTaxonomyHandler(deps.TaxonomyService)
	waitlistHandler := NewWaitlistHandler(deps.WaitlistService)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Verifier))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.AdminMiddleware())

		r.Get("/me", Me)
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.ListPosts)
			r.Post("/", postHandler.CreatePost)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.GetPost)
				r.Patch("/", postHandler.UpdatePost)
				r.Delete("/", postHandler.DeletePost)
				r.Put("/status", postHandler.UpdateStatus)
				r.Get("/tags", postHandler.ListTags)
				r.Put("/tags", postHandler.SetTags)
				r.Post("/tags/{tagId}", postHandler.AddTag)
				r.Delete("/tags/{tagId}", postHandler.RemoveTag)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", taxonomyHandler.ListCategories)
			r.Post("/", taxonomyHandler.CreateCategory)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taxonomyHandler.GetCategory)
				r.Patch("/", taxonomyHandler.UpdateCategory)
				r.Delete("/", taxonomyHandler.DeleteCategory)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", taxonomyHandler.ListTags)
			r.Post("/", taxonomyHandler.CreateTag)
			r.Patch("/{id}", taxonomyHandler.UpdateTag)
			r.Delete("/{id}", taxonomyHandler.DeleteTag)
		})

		r.Route("/waitlist", func(r chi.Router) {
			r.Get("/", waitlistHandler.ListEntries)
			r.Post("/", waitlistHandler.AddEntries)
			r.With(deps.RateLimiter.ImportMiddleware()).Post("/import", waitlistHandler.ImportCSV)
			r.Get("/export", waitlistHandler.ExportCSV)
			r.Delete("/{id}", waitlistHandler.DeleteEntry)
		})
	})

	return r
}
