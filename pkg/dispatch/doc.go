// Package dispatch はルートテーブルとBearerトークン認証を備えたHTTPリクエストディスパッチャを提供する。
//
// 起動時に Table.Register でルートを登録し、NewDispatcher で不変のディスパッチャを構築する。
// ディスパッチャはGinの NoRoute ハンドラとしてマウントされ、以下の順で1リクエストを処理する。
//
//  1. パスを正規化し、登録順にルートを照合する（最初に一致したルートが優先される）
//  2. 一致しなければ 404、パスは一致するがメソッドが一致しなければ 405 と Allow ヘッダーを返す
//  3. 認証が必要なルートでは Gate で Authorization ヘッダーを検証する
//  4. 抽出したパラメータと認証済みプリンシパルを Request に詰めてハンドラを呼び出す
//
// 登録後のテーブルと秘密鍵は読み取り専用のため、ロックなしで並行リクエストを処理できる。
package dispatch
