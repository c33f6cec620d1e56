// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// リクエストIDの付与、パニックリカバリ、CORS設定など、
// ディスパッチャの手前で全リクエストに適用するミドルウェアを含む。
package middleware
