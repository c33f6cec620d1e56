// Package httpclient はタスクAPIを呼び出すHTTPクライアントを提供する。
//
// ログインによるトークン取得と、タスクの一覧・取得・作成・更新・削除を行う。
// トークンはWithTokenでコンテキストに設定し、Authorizationヘッダーとして送信する。
package httpclient
