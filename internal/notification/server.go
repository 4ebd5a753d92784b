package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"github.com/nao1215/pushfanout/internal/provider"
	"github.com/nao1215/pushfanout/internal/push"
	"github.com/nao1215/pushfanout/internal/store"
	"github.com/nao1215/pushfanout/pkg/event"
	"github.com/nao1215/pushfanout/pkg/httpclient"
	"github.com/nao1215/pushfanout/pkg/middleware"
)

// sqliteOptions はサービスが開くSQLiteデータベース共通の接続オプション。
const sqliteOptions = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

func init() {
	// 通知のdataに含まれる整数を桁落ちさせずに文字列化する
	binding.EnableDecoderUseNumber = true
}

// Server はプッシュ配信サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの設定。
	cfg Config
	// queries は配信ログへのクエリ。
	queries *Queries
	// notifier は通知先の解決から配信結果の集計までを行う。
	notifier *push.Notifier
	// builder は配信ログに残すリンクの組み立てに使う。notifierと同じ設定。
	builder *push.Builder
	// registry は /metrics で公開するメトリクスのレジストリ。
	registry *prometheus.Registry
	// publisher はEvent Storeへのイベント送信。未設定の場合はnil。
	publisher *event.Publisher
	// closers はShutdownで閉じるリソース。
	closers []func() error
}

// NewServer は設定に従って依存を組み立て、新しいサーバーを生成する。
// プロバイダの設定が不正な場合は起動できないためエラーを返す。
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	prov, err := provider.New(provider.Config{
		BaseURL:   cfg.ProviderURL,
		ServerKey: cfg.ServerKey,
		Timeout:   cfg.ProviderTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("プロバイダクライアントの初期化に失敗: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(cfg.DataDir, "push.db")+sqliteOptions)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	closers := []func() error{db.Close}

	var recipients push.Store
	if cfg.RecipientStoreURL != "" {
		recipients = store.NewRemote(httpclient.New(cfg.RecipientStoreURL, httpclient.WithTimeout(cfg.RecipientStoreTimeout)))
		log.Printf("[Push] 通知先をレコードサービスから取得します: %s", cfg.RecipientStoreURL)
	} else {
		s, err := store.OpenSQLite(ctx, filepath.Join(cfg.DataDir, "recipients.db")+sqliteOptions)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("受信者ストアの初期化に失敗: %w", err)
		}
		recipients = s
		closers = append(closers, s.Close)
	}

	srv, err := newServer(ctx, cfg, db, recipients, prov)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}
	srv.closers = closers
	return srv, nil
}

// newServer は組み立て済みの依存からサーバーを生成する。
func newServer(ctx context.Context, cfg Config, db *sql.DB, recipients push.Store, prov push.Provider) (*Server, error) {
	queries, err := NewQueries(ctx, db)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := push.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("メトリクスの登録に失敗: %w", err)
	}

	builder := push.NewBuilder(cfg.Builder)
	notifier := push.NewNotifier(
		push.NewResolver(recipients),
		builder,
		push.NewDispatcher(prov, push.DispatcherConfig{
			ChunkSize:           cfg.ChunkSize,
			FallbackConcurrency: cfg.FallbackConcurrency,
			Metrics:             metrics,
		}),
	)

	s := &Server{
		router:   gin.New(),
		cfg:      cfg,
		queries:  queries,
		notifier: notifier,
		builder:  builder,
		registry: registry,
	}
	if cfg.EventStoreURL != "" {
		s.publisher = event.NewPublisher(httpclient.New(cfg.EventStoreURL))
	}

	s.router.Use(middleware.Recovery())
	s.router.Use(gin.Logger())
	s.router.Use(middleware.CORS(cfg.AllowedOrigins...))
	s.setupRoutes()
	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// Close はサーバーが開いたリソースを閉じる。
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "push"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.cfg.JWTSecret))
	s.registerRoutes(api)
}

// registerRoutes は認証済みグループに配信APIと受信箱APIを登録する。
func (s *Server) registerRoutes(api *gin.RouterGroup) {
	dispatch := api.Group("", middleware.Timeout(s.cfg.RequestTimeout))
	{
		// タスク追加通知
		dispatch.POST("/projects/:id/tasks", s.handleTaskAdded())
		// 単一トークンへの送信
		dispatch.POST("/push/send", s.handleSend())
		// 複数トークンへの一斉送信
		dispatch.POST("/push/multicast", s.handleMulticast())
	}
	// 配信要求ごとの配信ログ
	api.GET("/push/dispatches/:id", s.handleGetDispatch())

	inbox := api.Group("/notifications")
	{
		inbox.GET("", s.handleList())
		inbox.GET("/unread", s.handleListUnread())
		inbox.PUT("/:id/read", s.handleMarkAsRead())
		inbox.PUT("/read-all", s.handleMarkAllAsRead())
	}
}
