// プッシュ配信サービスのエントリポイント。
// タスク追加などのイベントを受けて通知先を解決し、
// プッシュ配信プロバイダへ一括送信する。
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	"github.com/nao1215/pushfanout/internal/notification"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("プッシュ配信サービスが異常終了しました: %v", err)
	}
}

// run はサーバーを起動し、停止するまでブロックする。
// 終了時にはデータベースなどのリソースを必ず閉じる。
func run() error {
	// .envがない環境では環境変数だけで起動する
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".envの読み込みに失敗: %w", err)
	}

	cfg := notification.LoadConfig()
	server, err := notification.NewServer(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("プッシュ配信サーバーの初期化に失敗: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("[Push] リソースのクローズに失敗: %v", err)
		}
	}()

	log.Printf("プッシュ配信サービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		return fmt.Errorf("プッシュ配信サービスの起動に失敗: %w", err)
	}
	return nil
}
