// Package task はタスクリソースのCRUDを提供する。
//
// SQLiteに保存したタスクを dispatch.Table に登録したルートから操作する。
// 一覧取得と詳細取得は認証不要、作成・更新・削除は認証が必要。
package task
