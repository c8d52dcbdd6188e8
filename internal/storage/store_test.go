package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/jovenes/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingBlobs は常に書き込みに失敗するBlobStore。
type failingBlobs struct {
	deleted []string
}

func (f *failingBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return errors.New("disk full")
}
func (f *failingBlobs) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}
func (f *failingBlobs) List(ctx context.Context) ([]BlobInfo, error) { return nil, nil }
func (f *failingBlobs) URL(key string) string                         { return "/uploads/" + key }

func newLocalStore(t *testing.T) (*AttachmentStore, *LocalBlobs) {
	t.Helper()
	blobs, err := NewLocalBlobs(t.TempDir(), "/uploads")
	require.NoError(t, err)
	return NewAttachmentStore(blobs), blobs
}

func TestAttachmentStore_Store_GeneralNaming(t *testing.T) {
	store, blobs := newLocalStore(t)

	ref, err := store.Store(context.Background(), model.CategoryGeneral, []byte("pdf"), "plan.pdf")
	require.NoError(t, err)

	assert.Equal(t, "plan.pdf", ref.Original)
	assert.True(t, strings.HasSuffix(ref.StoredName, "_plan.pdf"))
	assert.False(t, strings.HasPrefix(ref.StoredName, evidencePrefix))
	// UUID(36文字) + "_" + ファイル名
	assert.Len(t, ref.StoredName, 36+1+len("plan.pdf"))

	data, err := os.ReadFile(filepath.Join(blobs.Root(), ref.StoredName))
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))
}

func TestAttachmentStore_Store_EvidencePrefix(t *testing.T) {
	store, _ := newLocalStore(t)

	ref, err := store.Store(context.Background(), model.CategoryEvidence, []byte("img"), "foto.jpg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref.StoredName, evidencePrefix))
	assert.Equal(t, "foto.jpg", ref.Original)
}

func TestAttachmentStore_Store_SameNameYieldsDistinctBlobs(t *testing.T) {
	store, blobs := newLocalStore(t)
	ctx := context.Background()

	first, err := store.Store(ctx, model.CategoryGeneral, []byte("uno"), "plan.pdf")
	require.NoError(t, err)
	second, err := store.Store(ctx, model.CategoryGeneral, []byte("dos"), "plan.pdf")
	require.NoError(t, err)

	assert.NotEqual(t, first.StoredName, second.StoredName)

	data1, err := os.ReadFile(filepath.Join(blobs.Root(), first.StoredName))
	require.NoError(t, err)
	data2, err := os.ReadFile(filepath.Join(blobs.Root(), second.StoredName))
	require.NoError(t, err)
	assert.Equal(t, "uno", string(data1))
	assert.Equal(t, "dos", string(data2))
}

func TestAttachmentStore_Store_SanitizesOriginal(t *testing.T) {
	store, _ := newLocalStore(t)

	ref, err := store.Store(context.Background(), model.CategoryGeneral, []byte("x"), "../../secreto.txt")
	require.NoError(t, err)

	assert.Equal(t, "secreto.txt", ref.Original)
	assert.NotContains(t, ref.StoredName, "/")
}

func TestAttachmentStore_Store_EmptyNameUsesFallback(t *testing.T) {
	store, _ := newLocalStore(t)
	ctx := context.Background()

	first, err := store.Store(ctx, model.CategoryGeneral, []byte("x"), "???")
	require.NoError(t, err)
	second, err := store.Store(ctx, model.CategoryGeneral, []byte("y"), "")
	require.NoError(t, err)

	assert.Equal(t, FallbackFilename, first.Original)
	assert.Equal(t, FallbackFilename, second.Original)
	assert.NotEqual(t, first.StoredName, second.StoredName)
}

func TestAttachmentStore_Store_WriteFailure(t *testing.T) {
	store := NewAttachmentStore(&failingBlobs{})

	ref, err := store.Store(context.Background(), model.CategoryGeneral, []byte("x"), "plan.pdf")
	require.Error(t, err)

	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeStorageWrite, apiErr.Code)
	assert.Equal(t, model.AttachmentRef{}, ref)
}

func TestAttachmentStore_Discard(t *testing.T) {
	blobs := &failingBlobs{}
	store := NewAttachmentStore(blobs)

	store.Discard(context.Background(), []model.AttachmentRef{
		{Original: "a.pdf", StoredName: "id1_a.pdf"},
		{Original: "b.pdf", StoredName: "id2_b.pdf"},
	})

	assert.Equal(t, []string{"id1_a.pdf", "id2_b.pdf"}, blobs.deleted)
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", detectContentType("plan.pdf", nil))
	assert.Equal(t, "text/plain; charset=utf-8", detectContentType("archivo", []byte("hola mundo")))
	assert.Equal(t, "application/octet-stream", detectContentType("archivo", nil))
}
