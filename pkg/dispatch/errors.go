package dispatch

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorKind はディスパッチ境界で発生するエラーの分類。
type ErrorKind int

const (
	// KindRouteNotFound はどのルートにも一致しなかったことを表す。
	KindRouteNotFound ErrorKind = iota
	// KindMethodNotAllowed はパスは一致したがメソッドが許可されていないことを表す。
	KindMethodNotAllowed
	// KindAuthMissing はAuthorizationヘッダーが無いことを表す。
	KindAuthMissing
	// KindAuthMalformed はAuthorizationヘッダーの形式が不正であることを表す。
	KindAuthMalformed
	// KindAuthInvalidSignature はトークンの署名が不正であることを表す。
	KindAuthInvalidSignature
	// KindAuthInvalidToken はトークンの内容が不正であることを表す。
	KindAuthInvalidToken
	// KindAuthUnconfigured は秘密鍵が未設定であることを表す。
	KindAuthUnconfigured
	// KindHandlerFailure はハンドラがエラーを返したことを表す。
	KindHandlerFailure
)

// String はエラー分類を文字列で返す。
func (k ErrorKind) String() string {
	switch k {
	case KindRouteNotFound:
		return "route_not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindAuthMissing:
		return "auth_missing"
	case KindAuthMalformed:
		return "auth_malformed"
	case KindAuthInvalidSignature:
		return "auth_invalid_signature"
	case KindAuthInvalidToken:
		return "auth_invalid_token"
	case KindAuthUnconfigured:
		return "auth_unconfigured"
	case KindHandlerFailure:
		return "handler_failure"
	default:
		return "unknown"
	}
}

// Error はHTTPステータスと {"error": Message} のレスポンスに対応するエラー。
// ハンドラはNewErrorで生成したErrorを返すことでステータスコードを指定できる。
type Error struct {
	// Kind はエラーの分類。
	Kind ErrorKind
	// Status はレスポンスのHTTPステータスコード。
	Status int
	// Message はレスポンスボディに含める短い説明。
	Message string
	// Allow は405の場合に Allow ヘッダーへ列挙するメソッド。
	Allow []string
}

// Error はエラーメッセージを返す。
func (e *Error) Error() string {
	return e.Message
}

// NewError はハンドラ用のエラーを生成する。
func NewError(status int, message string) *Error {
	return &Error{Kind: KindHandlerFailure, Status: status, Message: message}
}

// Errorf は書式付きメッセージでハンドラ用のエラーを生成する。
func Errorf(status int, format string, args ...any) *Error {
	return NewError(status, fmt.Sprintf(format, args...))
}

// Err は認証失敗をディスパッチエラーに変換する。認証に成功している場合はnilを返す。
func (o Outcome) Err() *Error {
	switch o.Kind {
	case OutcomeAuthenticated:
		return nil
	case OutcomeMissing:
		return &Error{Kind: KindAuthMissing, Status: http.StatusUnauthorized, Message: o.Reason}
	case OutcomeMalformed:
		return &Error{Kind: KindAuthMalformed, Status: http.StatusBadRequest, Message: o.Reason}
	case OutcomeInvalidSignature:
		return &Error{Kind: KindAuthInvalidSignature, Status: http.StatusUnauthorized, Message: "Invalid token: " + o.Reason}
	case OutcomeInvalidToken:
		return &Error{Kind: KindAuthInvalidToken, Status: http.StatusUnauthorized, Message: "Invalid token: " + o.Reason}
	case OutcomeUnconfigured:
		return &Error{Kind: KindAuthUnconfigured, Status: http.StatusInternalServerError, Message: o.Reason}
	default:
		return &Error{Kind: KindAuthUnconfigured, Status: http.StatusInternalServerError, Message: "authentication failed"}
	}
}

// writeError はエラーをJSONレスポンスとして書き込み、以降のハンドラを中断する。
func writeError(c *gin.Context, e *Error) {
	if len(e.Allow) > 0 {
		c.Header("Allow", strings.Join(e.Allow, ", "))
	}
	c.AbortWithStatusJSON(e.Status, gin.H{"error": e.Message})
}
