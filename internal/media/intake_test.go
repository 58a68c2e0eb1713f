package media

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	name        string
	contentType string
	body        string
}

// multipartFiles builds a form with the given files and returns the parsed headers.
func multipartFiles(t *testing.T, files ...upload) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+f.name+`"`)
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["files"]
}

func TestIntake_AcceptUploads(t *testing.T) {
	dir := t.TempDir()
	in, err := NewIntake(testUploadConfig(dir))
	require.NoError(t, err)

	files := multipartFiles(t,
		upload{name: "a.mp4", contentType: "video/mp4", body: "aaa"},
		upload{name: "notes.txt", contentType: "text/plain", body: "hello"},
		upload{name: "b.mov", contentType: "application/octet-stream", body: "bb"},
		upload{name: "empty.mp4", contentType: "video/mp4"},
	)

	assets, rejected, err := in.AcceptUploads(context.Background(), files)
	require.NoError(t, err)

	require.Len(t, assets, 2)
	assert.Equal(t, "a.mp4", assets[0].DisplayName)
	assert.Equal(t, int64(3), assets[0].ByteSize)
	assert.Equal(t, "video/mp4", assets[0].MimeType)
	assert.Equal(t, "b.mov", assets[1].DisplayName)
	assert.Equal(t, "video/quicktime", assets[1].MimeType)

	data, err := os.ReadFile(assets[0].LocalHandle)
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(data))
	assert.Equal(t, dir, filepath.Dir(assets[0].LocalHandle))

	require.Len(t, rejected, 2)
	assert.Equal(t, "notes.txt", rejected[0].FileName)
	assert.ErrorIs(t, rejected[0], ErrUnsupportedType)
	assert.Equal(t, "empty.mp4", rejected[1].FileName)
	assert.ErrorIs(t, rejected[1], ErrEmptyFile)
}

func TestIntake_AcceptUploads_StripsPath(t *testing.T) {
	in, err := NewIntake(testUploadConfig(t.TempDir()))
	require.NoError(t, err)

	assets, _, err := in.AcceptUploads(context.Background(),
		multipartFiles(t, upload{name: "../../etc/clip.mp4", contentType: "video/mp4", body: "x"}))
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "clip.mp4", assets[0].DisplayName)
}

func TestIntake_AcceptUploads_Cancelled(t *testing.T) {
	in, err := NewIntake(testUploadConfig(t.TempDir()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = in.AcceptUploads(ctx, multipartFiles(t, upload{name: "a.mp4", contentType: "video/mp4", body: "x"}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIntake_AcceptPaths(t *testing.T) {
	in, err := NewIntake(testUploadConfig(t.TempDir()))
	require.NoError(t, err)

	src := t.TempDir()
	good := filepath.Join(src, "clip.mp4")
	require.NoError(t, os.WriteFile(good, []byte("video"), 0o644))
	bad := filepath.Join(src, "photo.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("img"), 0o644))

	assets, rejected := in.AcceptPaths([]string{good, bad, filepath.Join(src, "missing.mp4"), src})

	require.Len(t, assets, 1)
	assert.Equal(t, good, assets[0].LocalHandle)
	assert.Equal(t, int64(5), assets[0].ByteSize)

	require.Len(t, rejected, 3)
	assert.ErrorIs(t, rejected[0], ErrUnsupportedType)
	assert.Equal(t, "missing.mp4", rejected[1].FileName)
}

func TestIntake_Discard(t *testing.T) {
	dir := t.TempDir()
	in, err := NewIntake(testUploadConfig(dir))
	require.NoError(t, err)

	assets, _, err := in.AcceptUploads(context.Background(),
		multipartFiles(t, upload{name: "a.mp4", contentType: "video/mp4", body: "x"}))
	require.NoError(t, err)

	outside := filepath.Join(t.TempDir(), "keep.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	assets = append(assets, assets[0])
	assets[1].LocalHandle = outside

	in.Discard(assets)

	_, err = os.Stat(assets[0].LocalHandle)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}
