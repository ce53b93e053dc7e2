package app

import (
	"fmt"
	"strings"
)

// Command はflagfinderバイナリのサブコマンド。
type Command string

const (
	CommandServe       Command = "serve"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck"
)

// commands はサブコマンドの一覧。usageの表示順を兼ねる。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "start the HTTP server (default)"},
	{CommandMigrate, "apply analysis store migrations and exit"},
	{CommandHealthcheck, "call GET /health on $SERVER_PORT and exit non-zero unless it returns 200"},
}

// ParseCommand はos.Args[1:]から起動するサブコマンドを決める。
// 引数なしはserve。2つ目以降の引数は無視する。
// 綴り違いで黙ってサーバーが起動しないよう、未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}
	name := strings.ToLower(args[0])
	for _, c := range commands {
		if string(c.cmd) == name {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q\n%s", args[0], Usage())
}

// needsConfig はサブコマンドが環境変数の設定読み込みとロガー初期化を必要とするかを返す。
// healthcheckはSERVER_PORTだけで動くため、DATABASE_URLなどが無いコンテナ内でも実行できる。
func (c Command) needsConfig() bool {
	return c != CommandHealthcheck
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: flagfinder [command]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.desc)
	}
	return b.String()
}
