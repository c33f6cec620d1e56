package dispatch

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/taskapi/pkg/middleware"
)

// HandlerFunc はディスパッチャから呼び出されるルートハンドラ。
// 成功時はハンドラ自身がレスポンスを書き込む。エラーを返した場合はディスパッチャがJSONに変換する。
type HandlerFunc func(c *gin.Context, req *Request) error

// Request はハンドラに渡されるディスパッチ結果。
type Request struct {
	// Route は一致したルート。
	Route *Route
	// Params はパスから抽出したパラメータ。
	Params Params
	// Principal は認証済みの主体。認証不要のルートではnil。
	Principal *Principal
}

// Param は名前付きパラメータの値を返す。存在しない場合は空文字列を返す。
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// Subject は認証済みプリンシパルの識別子を返す。未認証の場合は空文字列を返す。
func (r *Request) Subject() string {
	if r.Principal == nil {
		return ""
	}
	return r.Principal.Subject
}

// Dispatcher はルートテーブルに従ってリクエストをハンドラへ振り分ける。
type Dispatcher struct {
	// table は構築時に複製したルートテーブル。
	table *Table
	// gate は認証が必要なルートで使用する。
	gate *Gate
}

// NewDispatcher はルートテーブルと認証ゲートからディスパッチャを生成する。
// テーブルは複製されるため、生成後にRegisterしても反映されない。
func NewDispatcher(table *Table, gate *Gate) *Dispatcher {
	if gate == nil {
		gate = NewGate("")
	}
	return &Dispatcher{table: table.clone(), gate: gate}
}

// Handle は1リクエストをディスパッチするGinハンドラ。
// Engine.NoRoute に登録して使用する。
func (d *Dispatcher) Handle(c *gin.Context) {
	// NoRouteから呼ばれた時点で404が仮設定されているため戻しておく
	c.Status(http.StatusOK)

	res := d.table.Match(c.Request.Method, c.Request.URL.EscapedPath())
	if !res.Matched {
		if len(res.Allowed) > 0 {
			writeError(c, &Error{
				Kind:    KindMethodNotAllowed,
				Status:  http.StatusMethodNotAllowed,
				Message: "Method not allowed",
				Allow:   res.Allowed,
			})
			return
		}
		writeError(c, &Error{Kind: KindRouteNotFound, Status: http.StatusNotFound, Message: "Route not found"})
		return
	}

	req := &Request{Route: res.Route, Params: res.Params}
	if res.Route.RequiresAuth {
		outcome := d.gate.Authenticate(c.GetHeader("Authorization"))
		if e := outcome.Err(); e != nil {
			if e.Status >= http.StatusInternalServerError {
				log.Printf("[dispatch] 認証を実行できません: request_id=%s, outcome=%s, %s %s: %s",
					middleware.GetRequestID(c), outcome.Kind, c.Request.Method, c.Request.URL.Path, e.Message)
			}
			writeError(c, e)
			return
		}
		req.Principal = outcome.Principal
	}

	err := res.Route.Handler(c, req)
	if err == nil {
		if !c.Writer.Written() {
			writeEmpty(c)
		}
		return
	}

	var de *Error
	if !errors.As(err, &de) {
		de = &Error{Kind: KindHandlerFailure, Status: http.StatusInternalServerError, Message: err.Error()}
	}
	if de.Status >= http.StatusInternalServerError {
		log.Printf("[dispatch] ハンドラでエラーが発生: request_id=%s, %s %s: %v",
			middleware.GetRequestID(c), c.Request.Method, c.Request.URL.Path, err)
	}
	if c.Writer.Written() {
		// レスポンスは1リクエストにつき1つだけ
		return
	}
	writeError(c, de)
}

// writeEmpty はハンドラが何も書き込まなかった場合の応答を書き込む。
// ボディを持てるステータスでは空のJSONオブジェクトを返す。
func writeEmpty(c *gin.Context) {
	switch status := c.Writer.Status(); status {
	case http.StatusNoContent, http.StatusNotModified:
		c.Writer.WriteHeaderNow()
	default:
		c.JSON(status, gin.H{})
	}
}
