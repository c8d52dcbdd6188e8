package storage

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/jovenes/internal/model"
)

// evidencePrefix は証跡ファイルの保存名に付与するプレフィックス。
const evidencePrefix = "evidence_"

// AttachmentStore はアップロードされたBlobを一意な保存名で永続化する。
type AttachmentStore struct {
	blobs BlobStore
	newID func() string
}

// NewAttachmentStore はAttachmentStoreを生成する。
func NewAttachmentStore(blobs BlobStore) *AttachmentStore {
	return &AttachmentStore{
		blobs: blobs,
		newID: uuid.NewString,
	}
}

// Store はBlobを保存し、AttachmentRefを返す。
// 保存名は "{カテゴリプレフィックス}{UUID}_{サニタイズ済みファイル名}" となり、
// 呼び出しごとに新しいUUIDを含むため既存のBlobと衝突しない。
// 書き込みに失敗した場合は STORAGE_WRITE_FAILED の APIError を返す。
func (s *AttachmentStore) Store(ctx context.Context, category model.Category, data []byte, originalName string) (model.AttachmentRef, error) {
	name := SanitizeFilename(originalName)
	storedName := categoryPrefix(category) + s.newID() + "_" + name

	if err := s.blobs.Put(ctx, storedName, data, detectContentType(name, data)); err != nil {
		return model.AttachmentRef{}, model.NewStorageWriteError(name, err)
	}

	return model.AttachmentRef{
		Original:   name,
		StoredName: storedName,
	}, nil
}

// Discard は同一更新内で保存済みのBlobを取り消す。
// 更新全体が失敗した際のベストエフォートな後始末であり、失敗はログのみ残す。
func (s *AttachmentStore) Discard(ctx context.Context, refs []model.AttachmentRef) {
	for _, ref := range refs {
		if err := s.blobs.Delete(ctx, ref.StoredName); err != nil {
			slog.Warn("failed to discard staged attachment",
				slog.String("stored_name", ref.StoredName),
				slog.String("error", err.Error()),
			)
		}
	}
}

// URL は保存名から取得用のパスまたはURLを返す。
func (s *AttachmentStore) URL(storedName string) string {
	return s.blobs.URL(storedName)
}

func categoryPrefix(category model.Category) string {
	if category == model.CategoryEvidence {
		return evidencePrefix
	}
	return ""
}

// detectContentType は拡張子、なければ先頭バイトからMIMEタイプを推定する。
func detectContentType(filename string, data []byte) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if guessed := mime.TypeByExtension(ext); guessed != "" {
			return guessed
		}
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "application/octet-stream"
}
