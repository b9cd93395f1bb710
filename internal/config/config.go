package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"nocachesrv/internal/contenttype"
)

// Config はアプリケーション全体の設定を保持する構造体
// 起動時に一度だけ作成し、以降は読み取り専用として扱う
type Config struct {
	Server ServerConfig
	Static StaticConfig
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `validate:"omitempty,hostname_rfc1123|ip"` // リッスンするホスト
	Port int    `validate:"gte=0,lte=65535"`               // リッスンするポート番号 (0は空きポート)

	// タイムアウト設定
	ReadTimeout     time.Duration `validate:"gte=0"` // 読み込みタイムアウト
	WriteTimeout    time.Duration `validate:"gte=0"` // 書き込みタイムアウト
	ShutdownTimeout time.Duration `validate:"gt=0"`  // グレースフルシャットダウンの待ち時間

	// 同時接続数の上限 (0は無制限)
	MaxConns int `validate:"gte=0"`
}

// StaticConfig は配信する静的ファイルの設定
type StaticConfig struct {
	Root         string            `validate:"required"`     // ルートディレクトリ
	IndexFiles   []string          `validate:"dive,required"` // ディレクトリ要求時に探すファイル名
	ContentTypes contenttype.Table `validate:"required"`     // 拡張子とContent-Typeの対応表
}

// fileConfig は設定ファイルの形式
// 省略された項目はデフォルト値のまま残す
type fileConfig struct {
	Server struct {
		Host            *string `yaml:"host" toml:"host"`
		Port            *int    `yaml:"port" toml:"port"`
		ReadTimeout     string  `yaml:"read_timeout" toml:"read_timeout"`
		WriteTimeout    string  `yaml:"write_timeout" toml:"write_timeout"`
		ShutdownTimeout string  `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
		MaxConns        *int    `yaml:"max_conns" toml:"max_conns"`
	} `yaml:"server" toml:"server"`
	Static struct {
		Root         string            `yaml:"root" toml:"root"`
		IndexFiles   []string          `yaml:"index_files" toml:"index_files"`
		ContentTypes map[string]string `yaml:"content_types" toml:"content_types"`
	} `yaml:"static" toml:"static"`
}

var validate = validator.New()

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // 大きなファイルの転送を途中で切らないよう無効化
			ShutdownTimeout: 5 * time.Second,
		},
		Static: StaticConfig{
			Root:         "html",
			IndexFiles:   []string{"index.html", "index.htm"},
			ContentTypes: contenttype.Default(),
		},
	}
}

// Load は設定を読み込む
// デフォルト値に環境変数を反映したものを返す
func Load() (*Config, error) {
	cfg := Default()
	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// LoadFile は設定ファイルを読み込む
// 拡張子が .yaml / .yml ならYAML、.toml ならTOMLとして解釈する
// 環境変数は設定ファイルより優先される
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return nil, fmt.Errorf("未対応の設定ファイル形式: %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}

	cfg := Default()
	if err := cfg.applyFile(&fc); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// applyFile は設定ファイルの値を反映する
func (c *Config) applyFile(fc *fileConfig) error {
	if fc.Server.Host != nil {
		c.Server.Host = *fc.Server.Host
	}
	if fc.Server.Port != nil {
		c.Server.Port = *fc.Server.Port
	}
	if fc.Server.MaxConns != nil {
		c.Server.MaxConns = *fc.Server.MaxConns
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"read_timeout", fc.Server.ReadTimeout, &c.Server.ReadTimeout},
		{"write_timeout", fc.Server.WriteTimeout, &c.Server.WriteTimeout},
		{"shutdown_timeout", fc.Server.ShutdownTimeout, &c.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s の解析に失敗: %w", d.name, err)
		}
		*d.dst = v
	}

	if fc.Static.Root != "" {
		c.Static.Root = fc.Static.Root
	}
	if fc.Static.IndexFiles != nil {
		c.Static.IndexFiles = fc.Static.IndexFiles
	}
	if len(fc.Static.ContentTypes) > 0 {
		c.Static.ContentTypes = c.Static.ContentTypes.Merge(fc.Static.ContentTypes)
	}

	return nil
}

// applyEnv は環境変数の値を反映する
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Static.Root = getEnvOrDefault("ROOT_DIR", c.Static.Root)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	for _, name := range c.Static.IndexFiles {
		if filepath.Base(name) != name || name == "." || name == ".." {
			return fmt.Errorf("無効なインデックスファイル名: %q", name)
		}
	}

	if err := c.Static.ContentTypes.Validate(); err != nil {
		return fmt.Errorf("Content-Type対応表が不正: %w", err)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
// IPv6アドレスは角括弧で囲む
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// RootDir はルートディレクトリを絶対パスで返す
// 相対パスは作業ディレクトリを基準に解決する
func (c *Config) RootDir() (string, error) {
	root, err := filepath.Abs(c.Static.Root)
	if err != nil {
		return "", fmt.Errorf("ルートディレクトリの解決に失敗: %w", err)
	}
	return root, nil
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
