package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEncoding はクレームをJSONにシリアライズできなかったことを表す。
	ErrEncoding = errors.New("token: failed to encode claims")
	// ErrMalformedToken はトークンが空でない3セグメントで構成されていないことを表す。
	ErrMalformedToken = errors.New("token: malformed token")
	// ErrInvalidSignature は署名が一致しないことを表す。
	ErrInvalidSignature = errors.New("token: invalid signature")
	// ErrMalformedPayload は署名は正しいがペイロードをJSONオブジェクトとして解釈できないことを表す。
	ErrMalformedPayload = errors.New("token: malformed payload")
)

// Claims はトークンのペイロード（クレーム名と値の組）。
type Claims map[string]any

// header はトークンヘッダーのJSON構造。フィールド順がシリアライズ結果の順序になる。
type header struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
}

// encodedHeader はbase64url化済みの固定ヘッダー。
var encodedHeader = mustEncodeHeader()

func mustEncodeHeader() string {
	b, err := json.Marshal(header{Typ: "JWT", Alg: "HS256"})
	if err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// Codec は秘密鍵を保持するトークンのエンコーダ/デコーダ。
// 生成後は不変であり、複数のgoroutineから同時に利用できる。
type Codec struct {
	// key はHMAC署名に使用する秘密鍵。
	key []byte
}

// NewCodec は指定した秘密鍵で署名するCodecを生成する。
func NewCodec(key []byte) *Codec {
	k := make([]byte, len(key))
	copy(k, key)
	return &Codec{key: k}
}

// Encode はクレームを署名済みトークン文字列に変換する。
// 同じ鍵とクレームに対しては常に同じ文字列を返す。
func (c *Codec) Encode(claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	signingInput := encodedHeader + "." + base64.RawURLEncoding.EncodeToString(payload)
	signature := base64.RawURLEncoding.EncodeToString(c.sign(signingInput))
	return signingInput + "." + signature, nil
}

// Decode はトークンの署名を検証し、ペイロードのクレームを返す。
// 有効期限は検証しない。
func (c *Codec) Decode(tok string) (Claims, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}
	for _, p := range parts {
		if p == "" {
			return nil, ErrMalformedToken
		}
	}

	// 末尾の余剰ビットが0でない表現は署名として受け付けない
	got, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidSignature
	}
	want := c.sign(parts[0] + "." + parts[1])
	if !hmac.Equal(got, want) {
		return nil, ErrInvalidSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if claims == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedPayload)
	}
	return claims, nil
}

// sign は署名対象文字列のHMAC-SHA256を計算する。
func (c *Codec) sign(signingInput string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(signingInput))
	return mac.Sum(nil)
}
