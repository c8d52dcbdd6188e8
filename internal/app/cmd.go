package app

import (
	"fmt"
	"io"
	"strings"
)

// Command はサブコマンド名。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck"
	CommandHelp        Command = "help"
)

// commands は表示順に並べたサブコマンドと説明。
var commands = []struct {
	name Command
	desc string
}{
	{CommandServe, "カリキュラムAPIと添付ファイル配信を起動する（既定）"},
	{CommandWorker, "孤立した添付ファイルと期限切れセッションを定期的に回収する"},
	{CommandMigrate, "daily_content・sessionsテーブルのマイグレーションを適用する"},
	{CommandHealthcheck, "稼働中サーバーの/healthを確認する（distroless用）"},
	{CommandHelp, "このヘルプを表示する"},
}

// ParseCommand は先頭の引数からサブコマンドを決める。
// 引数がなければserveとし、未知のコマンドはエラーにする。2番目以降の引数は見ない。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	name := args[0]
	switch name {
	case "-h", "--help":
		return CommandHelp, nil
	}
	for _, c := range commands {
		if string(c.name) == name {
			return c.name, nil
		}
	}
	return "", fmt.Errorf("unknown command %q (see \"jovenes help\")", name)
}

// Usage はサブコマンドの一覧をwに書き出す。
func Usage(w io.Writer) {
	var b strings.Builder
	b.WriteString("Usage: jovenes [command]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.name, c.desc)
	}
	io.WriteString(w, b.String())
}
