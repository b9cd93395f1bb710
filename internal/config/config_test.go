package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nocachesrv/internal/contenttype"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	t.Setenv("SERVER_HOST", "")
	t.Setenv("PORT", "")
	t.Setenv("ROOT_DIR", "")

	// 設定を読み込む
	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 基本的な設定値を検証
	if cfg == nil {
		t.Fatal("設定がnilです")
	}

	// サーバー設定の検証
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("予期しないホスト: %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("予期しないポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		t.Error("シャットダウンタイムアウトが設定されていません")
	}

	// 静的ファイル設定の検証
	if cfg.Static.Root != "html" {
		t.Errorf("予期しないルートディレクトリ: %s", cfg.Static.Root)
	}
	if got := cfg.Static.ContentTypes.Lookup("a.js"); got != "application/x-javascript" {
		t.Errorf("予期しないContent-Type: %s", got)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Server.Host = "localhost"
		return cfg
	}

	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{
			name:      "正常な設定",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "空きポート",
			modify:    func(c *Config) { c.Server.Port = 0 },
			expectErr: false,
		},
		{
			name:      "無効なポート番号",
			modify:    func(c *Config) { c.Server.Port = 99999 },
			expectErr: true,
		},
		{
			name:      "負のポート番号",
			modify:    func(c *Config) { c.Server.Port = -1 },
			expectErr: true,
		},
		{
			name:      "無効なホスト",
			modify:    func(c *Config) { c.Server.Host = "not a host" },
			expectErr: true,
		},
		{
			name:      "負のタイムアウト",
			modify:    func(c *Config) { c.Server.ReadTimeout = -time.Second },
			expectErr: true,
		},
		{
			name:      "シャットダウンタイムアウトなし",
			modify:    func(c *Config) { c.Server.ShutdownTimeout = 0 },
			expectErr: true,
		},
		{
			name:      "負の同時接続数",
			modify:    func(c *Config) { c.Server.MaxConns = -1 },
			expectErr: true,
		},
		{
			name:      "ルートディレクトリなし",
			modify:    func(c *Config) { c.Static.Root = "" },
			expectErr: true,
		},
		{
			name:      "パスを含むインデックスファイル",
			modify:    func(c *Config) { c.Static.IndexFiles = []string{"sub/index.html"} },
			expectErr: true,
		},
		{
			name:      "空のインデックスファイル",
			modify:    func(c *Config) { c.Static.IndexFiles = []string{""} },
			expectErr: true,
		},
		{
			name: "デフォルトのない対応表",
			modify: func(c *Config) {
				c.Static.ContentTypes = contenttype.Table{".html": "text/html"}
			},
			expectErr: true,
		},
		{
			name:      "対応表なし",
			modify:    func(c *Config) { c.Static.ContentTypes = nil },
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	testCases := []struct {
		name string
		host string
		port int
		want string
	}{
		{"IPv4", "192.168.1.100", 9090, "192.168.1.100:9090"},
		{"ホスト名", "localhost", 8080, "localhost:8080"},
		{"全インターフェース", "", 8080, ":8080"},
		{"IPv6", "::", 8080, "[::]:8080"},
		{"IPv6ループバック", "::1", 0, "[::1]:0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg.Server.Host = tc.host
			cfg.Server.Port = tc.port

			if actual := cfg.ServerAddress(); actual != tc.want {
				t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, tc.want)
			}
		})
	}
}

// TestServerAddressListenable はIPv6ホストでもリッスンできるアドレスになることをテストする
func TestServerAddressListenable(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "::1"
	cfg.Server.Port = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("予期しないエラーが発生しました: %v", err)
	}

	ln, err := net.Listen("tcp", cfg.ServerAddress())
	if err != nil {
		t.Skipf("IPv6ループバックが使えません: %v", err)
	}
	ln.Close()
}

// TestRootDir は相対パスのルートディレクトリが作業ディレクトリ基準で解決されることをテストする
func TestRootDir(t *testing.T) {
	cfg := Default()

	root, err := cfg.RootDir()
	if err != nil {
		t.Fatalf("ルートディレクトリの解決に失敗しました: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(wd, "html"); root != want {
		t.Errorf("ルートディレクトリが一致しません: got %s, want %s", root, want)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
// 注意: このテストは環境変数を変更するため、parallelは使わない
func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("SERVER_HOST", "test.example.com")
	t.Setenv("PORT", "9999")
	t.Setenv("ROOT_DIR", "public")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: got %s, want test.example.com", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
	if cfg.Static.Root != "public" {
		t.Errorf("環境変数のルートディレクトリが反映されていません: got %s, want public", cfg.Static.Root)
	}
}

// TestLoadFile は設定ファイルの読み込みをテストする
func TestLoadFile(t *testing.T) {
	t.Setenv("SERVER_HOST", "")
	t.Setenv("PORT", "")
	t.Setenv("ROOT_DIR", "")

	testCases := []struct {
		name     string
		filename string
		content  string
	}{
		{
			name:     "YAML",
			filename: "config.yaml",
			content: `server:
  host: 127.0.0.1
  port: 9000
  read_timeout: 3s
  shutdown_timeout: 1s
  max_conns: 16
static:
  root: public
  index_files: [default.html]
  content_types:
    .wasm: application/wasm
`,
		},
		{
			name:     "TOML",
			filename: "config.toml",
			content: `[server]
host = "127.0.0.1"
port = 9000
read_timeout = "3s"
shutdown_timeout = "1s"
max_conns = 16

[static]
root = "public"
index_files = ["default.html"]

[static.content_types]
".wasm" = "application/wasm"
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.filename)
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := LoadFile(path)
			if err != nil {
				t.Fatalf("設定ファイルの読み込みに失敗しました: %v", err)
			}

			if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
				t.Errorf("予期しないアドレス: %s", cfg.ServerAddress())
			}
			if cfg.Server.ReadTimeout != 3*time.Second {
				t.Errorf("予期しない読み込みタイムアウト: %v", cfg.Server.ReadTimeout)
			}
			if cfg.Server.ShutdownTimeout != time.Second {
				t.Errorf("予期しないシャットダウンタイムアウト: %v", cfg.Server.ShutdownTimeout)
			}
			// 省略された項目はデフォルトのまま
			if cfg.Server.WriteTimeout != 0 {
				t.Errorf("予期しない書き込みタイムアウト: %v", cfg.Server.WriteTimeout)
			}
			if cfg.Server.MaxConns != 16 {
				t.Errorf("予期しない同時接続数: %d", cfg.Server.MaxConns)
			}
			if cfg.Static.Root != "public" {
				t.Errorf("予期しないルートディレクトリ: %s", cfg.Static.Root)
			}
			if len(cfg.Static.IndexFiles) != 1 || cfg.Static.IndexFiles[0] != "default.html" {
				t.Errorf("予期しないインデックスファイル: %v", cfg.Static.IndexFiles)
			}
			if got := cfg.Static.ContentTypes.Lookup("main.wasm"); got != "application/wasm" {
				t.Errorf("追加したContent-Typeが反映されていません: %s", got)
			}
			if got := cfg.Static.ContentTypes.Lookup("main.js"); got != "application/x-javascript" {
				t.Errorf("既定のContent-Typeが失われています: %s", got)
			}
		})
	}
}

// TestLoadFileErrors は設定ファイルの異常系をテストする
func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name     string
		filename string
		content  string
	}{
		{"未対応の形式", "config.json", `{}`},
		{"壊れたYAML", "broken.yaml", "server: [\n"},
		{"不正な時間", "duration.yaml", "server:\n  read_timeout: soon\n"},
		{"検証エラー", "port.toml", "[server]\nport = 70000\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.filename)
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
		})
	}

	t.Run("存在しないファイル", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
			t.Error("エラーが期待されましたが、エラーが発生しませんでした")
		}
	})
}
