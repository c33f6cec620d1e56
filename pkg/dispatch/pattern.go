package dispatch

import (
	"fmt"
	"net/url"
	"strings"
)

// Params はパスのプレースホルダー名と対応するセグメントの組。
type Params map[string]string

// Pattern はコンパイル済みのパステンプレート。
// テンプレートと同じセグメント数のパスにのみ一致し、プレースホルダーはちょうど1セグメントを捕捉する。
type Pattern struct {
	// raw は登録時のテンプレート文字列。
	raw string
	// segments は正規化済みテンプレートのセグメント。
	segments []segment
	// names はプレースホルダー名を宣言順に並べたもの。
	names []string
}

// segment はテンプレートの1セグメント。
type segment struct {
	// literal は固定文字列セグメントの値。
	literal string
	// param はプレースホルダー名。空の場合は固定文字列セグメント。
	param string
}

// CompilePattern はパステンプレートをコンパイルする。
// プレースホルダーは "{name}" の形でセグメント全体を占める必要がある。
func CompilePattern(template string) (*Pattern, error) {
	p := &Pattern{raw: template}
	seen := make(map[string]struct{})

	for _, s := range splitPath(template) {
		if !strings.ContainsAny(s, "{}") {
			p.segments = append(p.segments, segment{literal: s})
			continue
		}
		if len(s) < 3 || s[0] != '{' || s[len(s)-1] != '}' || strings.ContainsAny(s[1:len(s)-1], "{}") {
			return nil, fmt.Errorf("パターン %q のセグメント %q が不正です", template, s)
		}
		name := s[1 : len(s)-1]
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("パターン %q でプレースホルダー %q が重複しています", template, name)
		}
		seen[name] = struct{}{}
		p.segments = append(p.segments, segment{param: name})
		p.names = append(p.names, name)
	}
	return p, nil
}

// String は登録時のテンプレート文字列を返す。
func (p *Pattern) String() string {
	return p.raw
}

// Names はプレースホルダー名を宣言順に返す。
func (p *Pattern) Names() []string {
	return append([]string(nil), p.names...)
}

// match はエスケープされたままのパスセグメントと照合し、一致した場合はパラメータを返す。
// セグメントは照合の直前にデコードするため、%2F を含むセグメントも1セグメントとして扱う。
func (p *Pattern) match(parts []string) (Params, bool) {
	if len(parts) != len(p.segments) {
		return nil, false
	}

	params := make(Params, len(p.names))
	for i, seg := range p.segments {
		part, err := url.PathUnescape(parts[i])
		if err != nil {
			return nil, false
		}
		if seg.param == "" {
			if part != seg.literal {
				return nil, false
			}
			continue
		}
		if part == "" {
			return nil, false
		}
		params[seg.param] = part
	}
	return params, true
}

// splitPath は先頭と末尾の "/" を取り除き、パスをセグメントに分割する。
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
