package notification

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/pushfanout/internal/push"
)

// Config はプッシュ配信サーバーの設定。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// JWTSecret はBearerトークンの署名鍵。
	JWTSecret string
	// DataDir はSQLiteデータベースを置くディレクトリ。
	DataDir string
	// RecipientStoreURL はプロジェクトとユーザーを提供するレコードサービスのURL。
	// 空の場合はDataDir内のSQLiteを参照する。
	RecipientStoreURL string
	// RecipientStoreTimeout はレコードサービスへの問い合わせ1回あたりのタイムアウト。
	RecipientStoreTimeout time.Duration
	// ProviderURL はプッシュ配信プロバイダAPIのベースURL。
	ProviderURL string
	// ServerKey はプロバイダのサーバーキー。
	ServerKey string
	// ProviderTimeout はプロバイダ呼び出し1回あたりのタイムアウト。
	ProviderTimeout time.Duration
	// Builder は通知ペイロードの既定値。
	Builder push.BuilderConfig
	// ChunkSize は一括送信1回あたりの件数。
	ChunkSize int
	// FallbackConcurrency は個別送信に切り替えたときの同時送信数。
	FallbackConcurrency int
	// RequestTimeout は配信要求1件あたりの期限。
	RequestTimeout time.Duration
	// EventStoreURL はEvent StoreのURL。空の場合はイベントを送信しない。
	EventStoreURL string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
}

// LoadConfig は環境変数から設定を読み込む。
func LoadConfig() Config {
	return Config{
		Port:                  getEnvOr("PORT", "8086"),
		JWTSecret:             getEnvOr("JWT_SECRET", "dev-secret-key"),
		DataDir:               getEnvOr("DATA_DIR", "/data"),
		RecipientStoreURL:     os.Getenv("RECIPIENT_STORE_URL"),
		RecipientStoreTimeout: getEnvDuration("RECIPIENT_STORE_TIMEOUT", 5*time.Second),
		ProviderURL:           os.Getenv("PUSH_PROVIDER_URL"),
		ServerKey:             os.Getenv("PUSH_SERVER_KEY"),
		ProviderTimeout:       getEnvDuration("PUSH_PROVIDER_TIMEOUT", 10*time.Second),
		ChunkSize:             getEnvInt("PUSH_CHUNK_SIZE", push.MaxBulkSize),
		FallbackConcurrency:   getEnvInt("PUSH_FALLBACK_CONCURRENCY", push.DefaultFallbackConcurrency),
		RequestTimeout:        getEnvDuration("PUSH_REQUEST_TIMEOUT", 60*time.Second),
		EventStoreURL:         os.Getenv("EVENTSTORE_URL"),
		AllowedOrigins:        splitList(getEnvOr("FRONTEND_URL", "http://localhost:3000")),
		Builder: push.BuilderConfig{
			Origin: getEnvOr("PUSH_DEFAULT_ORIGIN", "http://localhost:3000"),
			Icon:   os.Getenv("PUSH_ICON"),
			Badge:  os.Getenv("PUSH_BADGE"),
			Sound:  os.Getenv("PUSH_SOUND"),
		},
	}
}

// getEnvOr は環境変数の値を返す。未設定の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvInt は環境変数を正の整数として読み込む。
// 未設定または不正な値の場合はデフォルト値を返す。
func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[Push] %s の値が不正なため既定値 %d を使用します: %q", key, defaultValue, v)
		return defaultValue
	}
	return n
}

// getEnvDuration は環境変数を time.ParseDuration 形式で読み込む。
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Printf("[Push] %s の値が不正なため既定値 %s を使用します: %q", key, defaultValue, v)
		return defaultValue
	}
	return d
}

// splitList はカンマ区切りの値を分割する。空要素は取り除く。
func splitList(v string) []string {
	var out []string
	for s := range strings.SplitSeq(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
