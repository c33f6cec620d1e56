// Package token はHMAC-SHA256で署名されたコンパクトなトークンの生成と検証を提供する。
//
// トークンは base64url(header) "." base64url(payload) "." base64url(signature) の
// 3セグメントで構成され、ヘッダーは {"typ":"JWT","alg":"HS256"} に固定される。
// アルゴリズムの切り替えは受け付けない。
//
// Decodeは署名とペイロード形式のみを検証する。有効期限(exp)の判定は呼び出し側の責務である。
package token
