// Package server は、ルートディレクトリ配下の静的ファイルを配信するHTTPサーバーです。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - URLパスからルートディレクトリ配下のファイルへの変換
//   - ファイル、インデックスファイル、ディレクトリ一覧の配信
//   - 拡張子の対応表によるContent-Typeの決定
//   - すべてのレスポンスへのキャッシュ無効化ヘッダーの付与
//
// 仕様:
//   - ルーティングとミドルウェアはgin-gonic/ginを使用
//   - GETとHEADのみ受け付け、その他のメソッドは405を返す
//   - ルートディレクトリの外を指す要求は403を返し、対象を開かない
//   - ファイルシステムへの書き込みは行わない
package server
