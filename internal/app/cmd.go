package app

import (
	"fmt"
	"strings"
)

// Command はplastudoバイナリのサブコマンド。
type Command string

const (
	// CommandServe はAPIサーバー（アンケート・講師一覧・認証）を起動する。
	CommandServe Command = "serve"
	// CommandWorker は一時レコードと期限切れセッションのクリーンアップを常駐実行する。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーマを最新版まで適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中プロセスの/healthを確認する。
	// distrolessイメージにはcurlがないため、Dockerのヘルスチェックから呼び出す。
	CommandHealthcheck Command = "healthcheck"
)

// commands は受け付けるサブコマンドの一覧。
var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck}

// ParseCommand はos.Args[1:]の先頭からサブコマンドを取り出す。
// 引数がない場合はserveとして扱い、未知のサブコマンドはエラーにする。
// 2番目以降の引数は参照しない。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}

	for _, c := range commands {
		if args[0] == string(c) {
			return c, nil
		}
	}

	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return "", fmt.Errorf("unknown command %q (available: %s)", args[0], strings.Join(names, ", "))
}
