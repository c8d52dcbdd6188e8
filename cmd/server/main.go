// Command server はカリキュラムコンテンツ配信サービスを起動する。
//
// サブコマンド:
//
//	serve        APIサーバー（デフォルト）
//	worker       孤児ファイルの回収と期限切れセッションの削除
//	migrate      データベースマイグレーション
//	healthcheck  Dockerヘルスチェック
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/jovenes/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
