package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listings-api/dto"
	"listings-api/repositories"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func TestSniffImage(t *testing.T) {
	ct, ok := sniffImage("a.png", pngBytes)
	assert.True(t, ok)
	assert.Equal(t, "image/png", ct)

	ct, ok = sniffImage("photo.webp", []byte{0x00, 0x01, 0x02, 0x03})
	assert.True(t, ok)
	assert.Equal(t, "image/webp", ct)

	_, ok = sniffImage("notes.jpg", []byte("just some text"))
	assert.False(t, ok)
	_, ok = sniffImage("empty.jpg", nil)
	assert.False(t, ok)
}

func TestImageUploadListOpenDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := env.imageService()
	l := env.addListing(t, "델타빌딩", "500/50", 10)

	resp, err := svc.Upload(ctx, l.ID, []dto.UploadedFile{
		{Name: "front.png", Data: pngBytes},
		{Name: "lobby.jpg", Data: jpegBytes},
	})
	require.NoError(t, err)
	require.Len(t, resp.Images, 2)
	assert.Equal(t, 0, resp.Images[0].Position)
	assert.Equal(t, 1, resp.Images[1].Position)
	assert.Equal(t, "image/jpeg", resp.Images[1].ContentType)

	more, err := svc.Upload(ctx, l.ID, []dto.UploadedFile{{Name: "more.png", Data: pngBytes}})
	require.NoError(t, err)
	assert.Equal(t, 2, more.Images[0].Position)

	images, err := svc.List(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, images, 3)

	img, rc, err := svc.Open(ctx, resp.Images[0].ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, "front.png", img.FileName)

	require.NoError(t, svc.Delete(ctx, resp.Images[0].ID))
	_, _, err = svc.Open(ctx, resp.Images[0].ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Equal(t, 2, env.store.count())

	removed, err := svc.DeleteAll(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Zero(t, env.store.count())
}

func TestImageUpload_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := env.imageService()
	l := env.addListing(t, "델타빌딩", "500/50", 10)

	_, err := svc.Upload(ctx, l.ID, []dto.UploadedFile{
		{Name: "ok.png", Data: pngBytes},
		{Name: "script.png", Data: []byte("#!/bin/sh\necho hi")},
	})
	assert.True(t, IsValidation(err))
	assert.Zero(t, env.store.count())

	_, err = svc.Upload(ctx, l.ID, nil)
	assert.True(t, IsValidation(err))

	_, err = svc.Upload(ctx, 999, []dto.UploadedFile{{Name: "ok.png", Data: pngBytes}})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func buildZip(t *testing.T, files map[string][]byte) *bytes.Reader {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestImportZip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := env.imageService()
	unit := env.addListing(t, "W타워3 A동 1203호", "2000/180", 25)
	env.addListing(t, "W타워3 A동 501호", "1000/90", 12)
	single := env.addListing(t, "델타빌딩", "500/50", 10)

	archive := buildZip(t, map[string][]byte{
		"W타워3 A동/1203/1.jpg":        jpegBytes,
		"W타워3 A동/1203/2.png":        pngBytes,
		"델타빌딩/front.png":            pngBytes,
		"W타워3 A동 9999호/x.png":       pngBytes,
		"W타워3 A동/cover.png":         pngBytes,
		"__MACOSX/델타빌딩/._front.png": pngBytes,
		"델타빌딩/.DS_Store":            []byte("x"),
		"델타빌딩/readme.txt":           []byte("hello"),
		"델타빌딩/fake.jpg":             []byte("not an image at all"),
		"loose.png":                 pngBytes,
	})

	report, err := svc.ImportZip(ctx, archive, archive.Size())
	require.NoError(t, err)

	require.Len(t, report.Matched, 2)
	assert.Equal(t, "W타워3 A동/1203", report.Matched[0].Folder)
	assert.Equal(t, unit.ID, report.Matched[0].ListingID)
	assert.Equal(t, 2, report.Matched[0].Count)
	assert.Equal(t, single.ID, report.Matched[1].ListingID)
	assert.Equal(t, 1, report.Matched[1].Count)

	require.Len(t, report.Unmatched, 2)
	assert.Equal(t, "W타워3 A동", report.Unmatched[0].Folder)
	assert.Equal(t, "W타워3 A동 9999호", report.Unmatched[1].Folder)

	assert.Equal(t, 3, report.Stored)
	// readme.txt, loose.png y fake.jpg
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 3, env.store.count())

	images, err := env.repos.Images.ListByListing(ctx, unit.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "1.jpg", images[0].FileName)
	assert.Equal(t, 1, images[1].Position)
}

// slowStore copia cada upload en pedazos chicos para que los Save en
// paralelo se intercalen, y registra el máximo de Save simultáneos
type slowStore struct {
	*memoryStore
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *slowStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	var buf bytes.Buffer
	chunk := make([]byte, 64)
	for {
		k, err := r.Read(chunk)
		buf.Write(chunk[:k])
		runtime.Gosched()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return s.memoryStore.Save(ctx, name, &buf)
}

func TestImportZip_ConcurrentSavesKeepContent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	store := &slowStore{memoryStore: newMemoryStore()}
	svc := NewImageService(env.repos, store, env.notifier, env.n, env.logger)
	l := env.addListing(t, "델타빌딩", "500/50", 10)

	files := make(map[string][]byte)
	for i := 0; i < 12; i++ {
		body := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{byte('a' + i)}, 4096)...)
		files[fmt.Sprintf("델타빌딩/%02d.png", i)] = body
	}
	archive := buildZip(t, files)

	report, err := svc.ImportZip(ctx, archive, archive.Size())
	require.NoError(t, err)
	assert.Equal(t, 12, report.Stored)
	assert.GreaterOrEqual(t, store.maxInFlight.Load(), int32(1))

	images, err := env.repos.Images.ListByListing(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, images, 12)
	for i, img := range images {
		assert.Equal(t, fmt.Sprintf("%02d.png", i), img.FileName)
		rc, err := store.Open(ctx, img.StorageKey)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, files["델타빌딩/"+img.FileName], data, img.FileName)
		assert.Equal(t, int64(len(data)), img.Size)
	}
}

func TestImportZip_NotAZip(t *testing.T) {
	env := newTestEnv(t)
	data := bytes.NewReader([]byte("plain text"))
	_, err := env.imageService().ImportZip(context.Background(), data, data.Size())
	assert.True(t, IsValidation(err))
}

func TestFolderText(t *testing.T) {
	cases := []struct {
		folder, building, unit string
	}{
		{"W타워3 A동/1203", "W타워3 A동", "1203"},
		{"photos/W타워3 A동/1203호", "W타워3 A동", "1203"},
		{"W타워3 A동 1203호", "W타워3 A동", "1203"},
		{"W타워3 A동 1203", "W타워3 A동", "1203"},
		{"델타빌딩", "델타빌딩", ""},
		{"W타워3", "W타워3", ""},
	}
	for _, tc := range cases {
		building, unit := folderText(tc.folder)
		assert.Equal(t, tc.building, building, tc.folder)
		assert.Equal(t, tc.unit, unit, tc.folder)
	}
}
