// Command plastudo は講師マーケットプレイスのAPIサーバー・ワーカー・マイグレーションを起動する。
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/plastudo/internal/app"
)

func main() {
	// ローカル開発用。.envがなければ環境変数のみを使用する
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "plastudo: %v\n", err)
		os.Exit(1)
	}
}
