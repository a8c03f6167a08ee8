package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandFetch はフィードを1回取得して結果をJSONで標準出力に書き出すことを示す。
	CommandFetch Command = "fetch"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// FetchAll はfetchコマンドで全フィードを対象にする引数。
const FetchAll = "all"

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "fetch":
		return CommandFetch
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// FetchTarget はfetchコマンドの対象フィードIDを返す。指定がなければFetchAllを返す。
func FetchTarget(args []string) string {
	if len(args) < 2 || args[1] == "" {
		return FetchAll
	}
	return args[1]
}
