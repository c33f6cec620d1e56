package task

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/taskapi/pkg/dispatch"
)

// Handler はタスクリソースのルートハンドラ。
type Handler struct {
	store *Store
}

// NewHandler はタスクハンドラを生成する。
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Register はタスクリソースのルートをテーブルに登録する。
func (h *Handler) Register(t *dispatch.Table) error {
	routes := []struct {
		pattern string
		method  string
		auth    bool
		handler dispatch.HandlerFunc
	}{
		// タスク一覧取得
		{"tasks", http.MethodGet, false, h.handleList},
		// タスク作成
		{"tasks", http.MethodPost, true, h.handleCreate},
		// タスク詳細取得
		{"tasks/{id}", http.MethodGet, false, h.handleGet},
		// タスク更新
		{"tasks/{id}", http.MethodPatch, true, h.handleUpdate},
		// タスク削除
		{"tasks/{id}", http.MethodDelete, true, h.handleDelete},
	}
	for _, r := range routes {
		if _, err := t.Register(r.pattern, r.method, r.auth, r.handler); err != nil {
			return fmt.Errorf("ルート %s %s の登録に失敗: %w", r.method, r.pattern, err)
		}
	}
	return nil
}

// handleList は全タスクを返す。
func (h *Handler) handleList(c *gin.Context, _ *dispatch.Request) error {
	tasks, err := h.store.List(c.Request.Context())
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, tasks)
	return nil
}

// handleCreate はタスクを作成する。作成者には認証済みユーザーを記録する。
func (h *Handler) handleCreate(c *gin.Context, req *dispatch.Request) error {
	var body createRequest
	if err := bindJSON(c, &body); err != nil {
		return err
	}
	if errs, err := validationErrors(body); err != nil {
		return err
	} else if len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": errs})
		return nil
	}

	id, err := h.store.Create(c.Request.Context(), NewTask{
		Name:        body.Name,
		Priority:    *body.Priority,
		IsCompleted: *body.IsCompleted,
		CreatedBy:   req.Subject(),
	})
	if err != nil {
		return err
	}
	c.JSON(http.StatusCreated, gin.H{"success": "Task created!", "id": strconv.FormatInt(id, 10)})
	return nil
}

// handleGet は指定したIDのタスクを返す。
func (h *Handler) handleGet(c *gin.Context, req *dispatch.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	task, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		return notFound(err, req)
	}
	c.JSON(http.StatusOK, task)
	return nil
}

// handleUpdate は指定したIDのタスクを部分更新する。
func (h *Handler) handleUpdate(c *gin.Context, req *dispatch.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	if _, err := h.store.Get(c.Request.Context(), id); err != nil {
		return notFound(err, req)
	}

	var body updateRequest
	if err := bindJSON(c, &body); err != nil {
		return err
	}
	if errs, err := validationErrors(body); err != nil {
		return err
	} else if len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": errs})
		return nil
	}

	if err := h.store.Update(c.Request.Context(), id, Patch{
		Name:        body.Name,
		Priority:    body.Priority,
		IsCompleted: body.IsCompleted,
	}); err != nil {
		return notFound(err, req)
	}
	c.JSON(http.StatusOK, gin.H{"success": "Task updated!", "id": req.Param("id")})
	return nil
}

// handleDelete は指定したIDのタスクを削除する。
func (h *Handler) handleDelete(c *gin.Context, req *dispatch.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		return notFound(err, req)
	}
	c.JSON(http.StatusOK, gin.H{"success": "Task deleted!", "id": req.Param("id")})
	return nil
}

// bindJSON はリクエストボディをデコードする。空のボディは空のオブジェクトとして扱う。
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return dispatch.NewError(http.StatusBadRequest, "Invalid JSON body")
	}
	return nil
}

// parseID はパスのidを整数に変換する。整数でない場合は存在しないタスクとして扱う。
func parseID(req *dispatch.Request) (int64, error) {
	raw := req.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, taskNotFound(raw)
	}
	return id, nil
}

// notFound はErrNotFoundを404に変換し、それ以外のエラーはそのまま返す。
func notFound(err error, req *dispatch.Request) error {
	if errors.Is(err, ErrNotFound) {
		return taskNotFound(req.Param("id"))
	}
	return err
}

func taskNotFound(id string) *dispatch.Error {
	return dispatch.Errorf(http.StatusNotFound, "Task with ID %s not found!", id)
}
