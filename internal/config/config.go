// Package config はタスクAPIサーバーの設定を読み込む。
// 既定値、YAMLファイル、環境変数の順に読み込み、後のものが優先される。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// 設定キー。
const (
	KeyPort           = "port"
	KeyJWTSecret      = "jwt_secret"
	KeyDBPath         = "db_path"
	KeyTokenTTL       = "token_ttl"
	KeyAllowedOrigins = "allowed_origins"
	KeyUsers          = "users"
)

// envKeys は読み込む環境変数と設定キーの対応。
var envKeys = map[string]string{
	"PORT":            KeyPort,
	"JWT_SECRET":      KeyJWTSecret,
	"DB_PATH":         KeyDBPath,
	"TOKEN_TTL":       KeyTokenTTL,
	"ALLOWED_ORIGINS": KeyAllowedOrigins,
}

// defaults は設定の既定値。
var defaults = map[string]any{
	KeyPort:     "8080",
	KeyDBPath:   "tasks.db",
	KeyTokenTTL: "1h",
}

// Config はサーバー設定。
type Config struct {
	// Port はリッスンポート。
	Port string `validate:"required,numeric"`
	// JWTSecret はトークンの署名鍵。未設定でも起動はでき、認証が必要なリクエストは500になる。
	JWTSecret string
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string `validate:"required"`
	// TokenTTL は発行するトークンの有効期間。
	TokenTTL time.Duration `validate:"gt=0"`
	// AllowedOrigins はCORSで許可するオリジン。空の場合はクロスオリジンのリクエストを許可しない。
	AllowedOrigins []string
	// Users はユーザー名とbcryptハッシュの対応。空の場合ログインは任意の資格情報を受け付ける。
	Users map[string]string
}

// mapProvider はmapから設定を読み込むkoanfプロバイダ。
type mapProvider map[string]any

// ReadBytes はサポートしない。
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("mapProviderはReadBytesをサポートしません")
}

// Read は設定のmapを返す。
func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}

// Load は設定を読み込む。pathが空でない場合はYAMLファイルも読み込む。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("既定値の読み込みに失敗: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
		}
	}

	// 対応表に無い環境変数と空の値は読み飛ばす
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		return envKeys[key], value
	}), nil); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	ttl, err := time.ParseDuration(k.String(KeyTokenTTL))
	if err != nil {
		return nil, fmt.Errorf("%s が不正です: %w", KeyTokenTTL, err)
	}

	cfg := &Config{
		Port:           k.String(KeyPort),
		JWTSecret:      k.String(KeyJWTSecret),
		DBPath:         k.String(KeyDBPath),
		TokenTTL:       ttl,
		AllowedOrigins: origins(k),
		Users:          k.StringMap(KeyUsers),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値を検証する。
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}
	return nil
}

// Addr はGinに渡すリッスンアドレスを返す。
func (c *Config) Addr() string {
	return ":" + c.Port
}

// origins は許可オリジンを読み込む。
// 環境変数ではカンマ区切り、YAMLではリストで指定する。
func origins(k *koanf.Koanf) []string {
	var raw []string
	switch v := k.Get(KeyAllowedOrigins).(type) {
	case string:
		raw = strings.Split(v, ",")
	case []any:
		for _, o := range v {
			if s, ok := o.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	var out []string
	for _, o := range raw {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
