// タスクAPIのエントリポイント。
// ルートテーブルとトークン認証でタスクのCRUDとログインを提供する。
package main

import "github.com/nao1215/taskapi/cmd/taskapi/cmd"

func main() {
	cmd.Execute()
}
