package notification

import (
	"slices"
	"testing"
	"time"

	"github.com/nao1215/pushfanout/internal/push"
)

// TestLoadConfig は環境変数からの設定読み込みを検証する。
// t.Setenvを使うため並列実行しない。
func TestLoadConfig(t *testing.T) {
	t.Run("未設定の場合は既定値になる", func(t *testing.T) {
		for _, key := range []string{"PORT", "PUSH_CHUNK_SIZE", "PUSH_REQUEST_TIMEOUT", "FRONTEND_URL", "EVENTSTORE_URL", "RECIPIENT_STORE_TIMEOUT", "PUSH_PROVIDER_TIMEOUT"} {
			t.Setenv(key, "")
		}

		cfg := LoadConfig()
		if cfg.Port != "8086" {
			t.Errorf("Port: got %q, want 8086", cfg.Port)
		}
		if cfg.ChunkSize != push.MaxBulkSize {
			t.Errorf("ChunkSize: got %d, want %d", cfg.ChunkSize, push.MaxBulkSize)
		}
		if cfg.RequestTimeout != 60*time.Second {
			t.Errorf("RequestTimeout: got %s", cfg.RequestTimeout)
		}
		if cfg.EventStoreURL != "" {
			t.Errorf("EventStoreURL: got %q, want empty", cfg.EventStoreURL)
		}
		if cfg.RecipientStoreTimeout != 5*time.Second || cfg.ProviderTimeout != 10*time.Second {
			t.Errorf("RecipientStoreTimeout/ProviderTimeout: got %s/%s", cfg.RecipientStoreTimeout, cfg.ProviderTimeout)
		}
	})

	t.Run("環境変数の値が反映される", func(t *testing.T) {
		t.Setenv("PUSH_CHUNK_SIZE", "100")
		t.Setenv("PUSH_FALLBACK_CONCURRENCY", "4")
		t.Setenv("PUSH_REQUEST_TIMEOUT", "5s")
		t.Setenv("RECIPIENT_STORE_TIMEOUT", "2s")
		t.Setenv("PUSH_PROVIDER_TIMEOUT", "30s")
		t.Setenv("PUSH_DEFAULT_ORIGIN", "https://app.example.com")
		t.Setenv("FRONTEND_URL", "https://a.example.com, https://b.example.com,")

		cfg := LoadConfig()
		if cfg.ChunkSize != 100 || cfg.FallbackConcurrency != 4 {
			t.Errorf("ChunkSize/FallbackConcurrency: got %d/%d", cfg.ChunkSize, cfg.FallbackConcurrency)
		}
		if cfg.RequestTimeout != 5*time.Second {
			t.Errorf("RequestTimeout: got %s", cfg.RequestTimeout)
		}
		// レコードサービスとプロバイダのタイムアウトは独立して設定できる
		if cfg.RecipientStoreTimeout != 2*time.Second || cfg.ProviderTimeout != 30*time.Second {
			t.Errorf("RecipientStoreTimeout/ProviderTimeout: got %s/%s", cfg.RecipientStoreTimeout, cfg.ProviderTimeout)
		}
		if cfg.Builder.Origin != "https://app.example.com" {
			t.Errorf("Origin: got %q", cfg.Builder.Origin)
		}
		want := []string{"https://a.example.com", "https://b.example.com"}
		if !slices.Equal(cfg.AllowedOrigins, want) {
			t.Errorf("AllowedOrigins: got %v, want %v", cfg.AllowedOrigins, want)
		}
	})

	t.Run("不正な値は既定値になる", func(t *testing.T) {
		t.Setenv("PUSH_CHUNK_SIZE", "-3")
		t.Setenv("PUSH_REQUEST_TIMEOUT", "soon")

		cfg := LoadConfig()
		if cfg.ChunkSize != push.MaxBulkSize {
			t.Errorf("ChunkSize: got %d", cfg.ChunkSize)
		}
		if cfg.RequestTimeout != 60*time.Second {
			t.Errorf("RequestTimeout: got %s", cfg.RequestTimeout)
		}
	})
}
