package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MethodAny は任意のHTTPメソッドに一致するワイルドカード。
const MethodAny = "*"

// RouteID はテーブル内での登録位置を表すルートの識別子。
type RouteID int

// Route は登録済みのルート記述子。登録後は変更されない。
type Route struct {
	// ID は登録順の位置。
	ID RouteID
	// Pattern はコンパイル済みのパステンプレート。
	Pattern *Pattern
	// Method はHTTPメソッド、または MethodAny。
	Method string
	// RequiresAuth はBearerトークンによる認証が必要かどうか。
	RequiresAuth bool
	// Handler はルートに紐付くハンドラ。
	Handler HandlerFunc
}

// MatchResult はルート照合の結果。
type MatchResult struct {
	// Route は一致したルート。Matchedがfalseの場合はnil。
	Route *Route
	// Params はプレースホルダーから抽出した値。
	Params Params
	// Matched はいずれかのルートに一致したかどうか。
	Matched bool
	// Allowed はパスは一致したがメソッドが一致しなかったルートのメソッド一覧（ソート済み）。
	Allowed []string
}

// Table は登録順を保持するルートの集合。
// 起動時にのみ Register を呼び出し、NewDispatcher に渡した後は変更しないこと。
type Table struct {
	routes []*Route
}

// NewTable は空のルートテーブルを生成する。
func NewTable() *Table {
	return &Table{}
}

// Register はルートをテーブルの末尾に追加する。
// パターンが重複する場合は先に登録したルートが優先される。
func (t *Table) Register(pattern, method string, requiresAuth bool, handler HandlerFunc) (RouteID, error) {
	if handler == nil {
		return 0, errors.New("ハンドラが指定されていません")
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return 0, fmt.Errorf("パターン %q のHTTPメソッドが指定されていません", pattern)
	}

	compiled, err := CompilePattern(pattern)
	if err != nil {
		return 0, err
	}

	id := RouteID(len(t.routes))
	t.routes = append(t.routes, &Route{
		ID:           id,
		Pattern:      compiled,
		Method:       method,
		RequiresAuth: requiresAuth,
		Handler:      handler,
	})
	return id, nil
}

// MustRegister はRegisterと同様だが、失敗した場合はパニックする。
// 起動時の静的なルート定義で使用する。
func (t *Table) MustRegister(pattern, method string, requiresAuth bool, handler HandlerFunc) RouteID {
	id, err := t.Register(pattern, method, requiresAuth, handler)
	if err != nil {
		panic(err)
	}
	return id
}

// Len は登録済みルート数を返す。
func (t *Table) Len() int {
	return len(t.routes)
}

// Routes は登録済みルートを登録順に返す。
func (t *Table) Routes() []Route {
	routes := make([]Route, 0, len(t.routes))
	for _, r := range t.routes {
		routes = append(routes, *r)
	}
	return routes
}

// Match はメソッドとパスに一致する最初のルートを返す。
// pathはパーセントエンコードされたままの形式(URL.EscapedPath)で渡す。
func (t *Table) Match(method, path string) MatchResult {
	parts := splitPath(path)
	allowed := make(map[string]struct{})

	for _, r := range t.routes {
		params, ok := r.Pattern.match(parts)
		if !ok {
			continue
		}
		if r.Method != MethodAny && r.Method != method {
			allowed[r.Method] = struct{}{}
			continue
		}
		return MatchResult{Route: r, Params: params, Matched: true}
	}

	res := MatchResult{}
	for m := range allowed {
		res.Allowed = append(res.Allowed, m)
	}
	sort.Strings(res.Allowed)
	return res
}

// clone はディスパッチャが保持するための複製を返す。
func (t *Table) clone() *Table {
	return &Table{routes: append([]*Route(nil), t.routes...)}
}
