package dispatch

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/taskapi/pkg/token"
)

// DefaultSubjectClaim はプリンシパルの識別子を格納するクレーム名の既定値。
const DefaultSubjectClaim = "user"

// OutcomeKind は認証結果の種類。
type OutcomeKind int

const (
	// OutcomeAuthenticated は認証に成功したことを表す。
	OutcomeAuthenticated OutcomeKind = iota
	// OutcomeMissing はAuthorizationヘッダーが無いことを表す。
	OutcomeMissing
	// OutcomeMalformed はAuthorizationヘッダーの形式が不正であることを表す。
	OutcomeMalformed
	// OutcomeInvalidSignature はトークンの署名が一致しないことを表す。
	OutcomeInvalidSignature
	// OutcomeInvalidToken は署名以外の理由でトークンを受け入れられないことを表す。
	// 形式不正、ペイロード不正、有効期限切れ、サブジェクト欠落が該当する。
	OutcomeInvalidToken
	// OutcomeUnconfigured は秘密鍵が設定されていないことを表す。
	OutcomeUnconfigured
)

// String は認証結果の種類を文字列で返す。
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeMissing:
		return "missing"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeInvalidSignature:
		return "invalid_signature"
	case OutcomeInvalidToken:
		return "invalid_token"
	case OutcomeUnconfigured:
		return "unconfigured"
	default:
		return "unknown"
	}
}

// Principal は検証済みトークンから得た認証済みの主体。
// 1リクエストの間だけ有効で、Request経由で明示的にハンドラへ渡される。
type Principal struct {
	// Subject はサブジェクトクレームの値（ユーザー名）。
	Subject string
	// Claims はトークンのペイロード全体。
	Claims token.Claims
}

// Outcome はAuthorizationヘッダー検証の結果。
type Outcome struct {
	// Kind は結果の種類。
	Kind OutcomeKind
	// Principal は認証に成功した場合のみ設定される。
	Principal *Principal
	// Reason は失敗理由の短い説明。内部状態は含まない。
	Reason string
}

// Gate はAuthorizationヘッダーを検証してプリンシパルを解決する。
type Gate struct {
	// codec はトークンの検証に使用する。秘密鍵が未設定の場合はnil。
	codec *token.Codec
	// subjectClaim はプリンシパルとして扱うクレーム名。
	subjectClaim string
	// now は有効期限の判定に使う現在時刻を返す。
	now func() time.Time
}

// GateOption はGateの設定を変更する関数。
type GateOption func(*Gate)

// WithSubjectClaim はプリンシパルとして扱うクレーム名を指定する。
func WithSubjectClaim(name string) GateOption {
	return func(g *Gate) {
		g.subjectClaim = name
	}
}

// WithClock は有効期限の判定に使う時計を差し替える。
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// NewGate は秘密鍵を使ってトークンを検証するGateを生成する。
// 秘密鍵が空の場合でも生成は成功し、認証時に OutcomeUnconfigured を返す。
func NewGate(secret string, opts ...GateOption) *Gate {
	g := &Gate{
		subjectClaim: DefaultSubjectClaim,
		now:          time.Now,
	}
	if secret != "" {
		g.codec = token.NewCodec([]byte(secret))
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate はAuthorizationヘッダーの値を検証する。
func (g *Gate) Authenticate(header string) Outcome {
	if header == "" {
		return Outcome{Kind: OutcomeMissing, Reason: "Authorization header missing"}
	}

	scheme, tok, found := strings.Cut(header, " ")
	if !found {
		return Outcome{Kind: OutcomeMalformed, Reason: "Invalid authorization format, expected 'Bearer token'"}
	}
	if scheme != "Bearer" || tok == "" {
		return Outcome{Kind: OutcomeMalformed, Reason: "Invalid authorization token format"}
	}

	if g == nil || g.codec == nil {
		return Outcome{Kind: OutcomeUnconfigured, Reason: "JWT_SECRET is not set in the environment."}
	}

	claims, err := g.codec.Decode(tok)
	switch {
	case errors.Is(err, token.ErrInvalidSignature):
		return Outcome{Kind: OutcomeInvalidSignature, Reason: "signature verification failed"}
	case errors.Is(err, token.ErrMalformedPayload):
		return Outcome{Kind: OutcomeInvalidToken, Reason: "malformed payload"}
	case err != nil:
		return Outcome{Kind: OutcomeInvalidToken, Reason: "malformed token"}
	}

	exp, err := jwt.MapClaims(claims).GetExpirationTime()
	if err != nil {
		return Outcome{Kind: OutcomeInvalidToken, Reason: "invalid exp claim"}
	}
	if exp != nil && !g.now().Before(exp.Time) {
		return Outcome{Kind: OutcomeInvalidToken, Reason: "token has expired"}
	}

	subject, _ := claims[g.subjectClaim].(string)
	if subject == "" {
		return Outcome{Kind: OutcomeInvalidToken, Reason: "missing " + g.subjectClaim + " claim"}
	}

	return Outcome{
		Kind:      OutcomeAuthenticated,
		Principal: &Principal{Subject: subject, Claims: claims},
	}
}
