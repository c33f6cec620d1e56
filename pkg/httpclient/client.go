package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client はタスクAPIのHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サーバーのベースURL。
	baseURL string
}

// New は新しいクライアントを生成する。
// baseURLには接続先サーバーのベースURL（例: "http://localhost:8080"）を指定する。
func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// APIError はサーバーが2xx以外のステータスを返したことを表す。
type APIError struct {
	// Status はHTTPステータスコード。
	Status int
	// Message はレスポンスのerrorフィールド。
	Message string
	// Errors は検証エラー（422）のメッセージ一覧。
	Errors []string
}

// Error はエラーメッセージを返す。
func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("HTTPエラー: status=%d, errors=%s", e.Status, strings.Join(e.Errors, " "))
	}
	return fmt.Sprintf("HTTPエラー: status=%d, error=%s", e.Status, e.Message)
}

// IsStatus はerrが指定したステータスのAPIErrorかどうかを返す。
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Token はログインで発行されたトークン。
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Task はサーバーに保存されたタスク。
type Task struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Priority    int    `json:"priority"`
	IsCompleted bool   `json:"is_completed"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// NewTask はタスク作成時の入力値。
type NewTask struct {
	Name        string `json:"name"`
	Priority    int    `json:"priority"`
	IsCompleted bool   `json:"is_completed"`
}

// TaskPatch はタスク更新時の入力値。nilのフィールドは送信しない。
type TaskPatch struct {
	Name        *string `json:"name,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

// successResponse は作成・更新・削除のレスポンス。
type successResponse struct {
	Success string `json:"success"`
	ID      string `json:"id"`
}

// Login は資格情報を送信してトークンを取得する。
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	var tok Token
	body := map[string]string{"username": username, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/login", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Me はトークンの持ち主のユーザー名を返す。
func (c *Client) Me(ctx context.Context) (string, error) {
	var resp struct {
		User string `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/me", nil, &resp); err != nil {
		return "", err
	}
	return resp.User, nil
}

// ListTasks は全タスクを返す。
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := c.doJSON(ctx, http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask は指定したIDのタスクを返す。
func (c *Client) GetTask(ctx context.Context, id int64) (*Task, error) {
	var task Task
	if err := c.doJSON(ctx, http.MethodGet, taskPath(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask はタスクを作成し、採番されたIDを返す。
func (c *Client) CreateTask(ctx context.Context, in NewTask) (int64, error) {
	var resp successResponse
	if err := c.doJSON(ctx, http.MethodPost, "/tasks", in, &resp); err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(resp.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("タスクIDの解析に失敗: %w", err)
	}
	return id, nil
}

// UpdateTask はタスクを部分更新する。
func (c *Client) UpdateTask(ctx context.Context, id int64, patch TaskPatch) error {
	return c.doJSON(ctx, http.MethodPatch, taskPath(id), patch, nil)
}

// DeleteTask はタスクを削除する。
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// コンテキストからトークンを伝播する
	if tok, ok := ctx.Value(contextKeyToken).(string); ok && tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// decodeError はエラーレスポンスをAPIErrorに変換する。
// JSONでないボディはそのままMessageに格納する。
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Error  string   `json:"error"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Message = body.Error
		apiErr.Errors = body.Errors
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyToken はコンテキストにトークンを格納するためのキー。
const contextKeyToken contextKey = "token"

// WithToken はコンテキストにトークンを設定する。
// 設定したトークンは Authorization: Bearer ヘッダーとして送信される。
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyToken, token)
}
