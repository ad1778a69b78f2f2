// Command growthsession はグロースセッション管理サービスのエントリーポイント。
//
// サブコマンド: serve（デフォルト）, worker, migrate, auto-schedule, healthcheck
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/growthsession/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
