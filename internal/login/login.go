// Package login はログインフォームとトークン発行を提供する。
//
// ユーザー一覧が設定されている場合はbcryptで資格情報を検証し、
// 設定されていない場合は空でない任意のユーザー名とパスワードを受け付ける。
package login

import (
	_ "embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/taskapi/pkg/dispatch"
	"github.com/nao1215/taskapi/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

//go:embed login.html
var page []byte

// msgUnconfigured は秘密鍵が未設定の場合のエラーメッセージ。
const msgUnconfigured = "JWT_SECRET is not set in the environment."

// Handler はログイン関連のルートハンドラ。
type Handler struct {
	// codec はトークンの署名に使用する。秘密鍵が未設定の場合はnil。
	codec *token.Codec
	// users はユーザー名とbcryptハッシュの対応。
	users map[string]string
	// ttl は発行するトークンの有効期間。
	ttl time.Duration
	// now は発行時刻を返す。
	now func() time.Time
}

// NewHandler はログインハンドラを生成する。
func NewHandler(secret string, users map[string]string, ttl time.Duration) *Handler {
	h := &Handler{users: users, ttl: ttl, now: time.Now}
	if secret != "" {
		h.codec = token.NewCodec([]byte(secret))
	}
	return h
}

// Register はログイン関連のルートをテーブルに登録する。
func (h *Handler) Register(t *dispatch.Table) error {
	if _, err := t.Register("login", http.MethodGet, false, h.handlePage); err != nil {
		return fmt.Errorf("ルート GET login の登録に失敗: %w", err)
	}
	if _, err := t.Register("login", http.MethodPost, false, h.handleLogin); err != nil {
		return fmt.Errorf("ルート POST login の登録に失敗: %w", err)
	}
	if _, err := t.Register("me", http.MethodGet, true, h.handleMe); err != nil {
		return fmt.Errorf("ルート GET me の登録に失敗: %w", err)
	}
	return nil
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse はトークン発行レスポンスのJSON構造。
type tokenResponse struct {
	// AccessToken は署名済みトークン。
	AccessToken string `json:"access_token"`
	// TokenType は常に "Bearer"。
	TokenType string `json:"token_type"`
	// ExpiresIn は有効期間（秒）。
	ExpiresIn int64 `json:"expires_in"`
}

// handlePage はログインフォームを返す。
func (h *Handler) handlePage(c *gin.Context, _ *dispatch.Request) error {
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	return nil
}

// handleLogin は資格情報を検証してトークンを発行する。
func (h *Handler) handleLogin(c *gin.Context, _ *dispatch.Request) error {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		return dispatch.NewError(http.StatusBadRequest, "Username and password required")
	}
	if !h.verify(req.Username, req.Password) {
		return dispatch.NewError(http.StatusUnauthorized, "Invalid credentials")
	}

	tok, err := h.Issue(req.Username)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.ttl / time.Second),
	})
	return nil
}

// handleMe は認証済みユーザーを返す。
func (h *Handler) handleMe(c *gin.Context, req *dispatch.Request) error {
	c.JSON(http.StatusOK, gin.H{"user": req.Subject()})
	return nil
}

// Issue はユーザーに対するトークンを発行する。
// ペイロードは {"user": ユーザー名, "iat": 発行時刻, "exp": 有効期限}。
func (h *Handler) Issue(user string) (string, error) {
	if h.codec == nil {
		return "", dispatch.NewError(http.StatusInternalServerError, msgUnconfigured)
	}
	now := h.now()
	tok, err := h.codec.Encode(token.Claims{
		dispatch.DefaultSubjectClaim: user,
		"iat":                        now.Unix(),
		"exp":                        now.Add(h.ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("トークンの生成に失敗: %w", err)
	}
	return tok, nil
}

// verify は資格情報を検証する。ユーザー一覧が空の場合は常に成功する。
func (h *Handler) verify(username, password string) bool {
	if len(h.users) == 0 {
		return true
	}
	hash, ok := h.users[username]
	if !ok {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		log.Printf("[login] ユーザー %s のパスワードハッシュが不正です: %v", username, err)
	}
	return err == nil
}

// HashPassword はユーザー一覧に設定するbcryptハッシュを生成する。
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("パスワードが空です")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return string(hash), nil
}
