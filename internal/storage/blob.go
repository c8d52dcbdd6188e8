// Package storage はアップロードされた添付ファイルの永続化を提供する。
//
// AttachmentStore はファイル名のサニタイズと一意な保存名の生成を担い、
// 実際のバイト列の書き込みは BlobStore 実装（ローカルディスクまたはS3）に委譲する。
// 保存済みBlobは上書きされない。参照を外しても Blob は削除されず、
// 未参照Blobの回収は worker/cleanup のジョブが行う。
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrBlobExists は同じキーのBlobが既に存在する場合に返される。
var ErrBlobExists = errors.New("blob already exists")

// BlobInfo は保存済みBlobの一覧取得結果の1件を表す。
type BlobInfo struct {
	Key      string
	Modified time.Time
}

// BlobStore はBlobの永続化バックエンドのインターフェース。
type BlobStore interface {
	// Put はキーに対してBlobを書き込む。既存キーへの上書きは行わず ErrBlobExists を返す。
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Delete はBlobを削除する。存在しないキーはエラーにしない。
	Delete(ctx context.Context, key string) error
	// List は保存済みのBlobをすべて返す。
	List(ctx context.Context) ([]BlobInfo, error)
	// URL は保存名から取得用のパスまたはURLを生成する。
	URL(key string) string
}
