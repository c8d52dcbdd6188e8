package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalBlobs はローカルディスク上のディレクトリにBlobを保存するBlobStore実装。
type LocalBlobs struct {
	root      string
	urlPrefix string
}

// NewLocalBlobs はLocalBlobsを生成する。rootが存在しない場合は作成する。
// urlPrefixは取得用パスの先頭（例: "/uploads"）。
func NewLocalBlobs(root, urlPrefix string) (*LocalBlobs, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", root, err)
	}
	return &LocalBlobs{
		root:      root,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}, nil
}

// Root はBlobの保存ディレクトリを返す。
func (b *LocalBlobs) Root() string {
	return b.root
}

// Put はBlobをファイルとして書き込む。
// O_EXCLで作成するため既存ファイルを上書きすることはない。
func (b *LocalBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := b.path(key)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrBlobExists, key)
		}
		return fmt.Errorf("failed to create blob %s: %w", key, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close blob %s: %w", key, err)
	}
	return nil
}

// Delete はBlobファイルを削除する。存在しない場合は何もしない。
func (b *LocalBlobs) Delete(ctx context.Context, key string) error {
	path, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// List は保存ディレクトリ直下のファイルを返す。
func (b *LocalBlobs) List(ctx context.Context) ([]BlobInfo, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload dir: %w", err)
	}

	blobs := make([]BlobInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// 一覧取得中に削除されたファイルは無視する
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to stat blob %s: %w", entry.Name(), err)
		}
		blobs = append(blobs, BlobInfo{Key: entry.Name(), Modified: info.ModTime()})
	}
	return blobs, nil
}

// URL は "{urlPrefix}/{key}" 形式の取得パスを返す。
func (b *LocalBlobs) URL(key string) string {
	return b.urlPrefix + "/" + url.PathEscape(key)
}

// path はキーを保存ディレクトリ内のパスに変換する。
// ディレクトリ成分を含むキーは拒否する。
func (b *LocalBlobs) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid blob key: %q", key)
	}
	return filepath.Join(b.root, key), nil
}

var _ BlobStore = (*LocalBlobs)(nil)
