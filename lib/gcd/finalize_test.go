package gcd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testIdentity = "May 1, 2024, 2:15 a.m."

func payload(contentType string, body io.Reader) *Payload {
	return &Payload{ContentType: contentType, Body: io.NopCloser(body)}
}

func TestDumpFilename(t *testing.T) {
	require.Equal(t, "gcd-dump-May_1,_2024,_2:15_a.m..zip", DumpFilename(testIdentity))
	require.Equal(t, "gcd-dump-2024_05_01.zip", DumpFilename("2024/05/01"))
}

func TestFinalizeNotice(t *testing.T) {
	dir := t.TempDir()
	finalizer := Finalizer{Dir: dir, NoticeSelector: ".body_content"}

	outcome, err := finalizer.Finalize(
		context.Background(),
		payload("text/html; charset=utf-8", strings.NewReader("<html><body><div class=\"body_content\">\nAlready\naccepted\n</div></body></html>")),
		testIdentity,
	)
	require.NoError(t, err)
	require.Equal(t, Notice{Text: "Already accepted"}, outcome)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 0)
}

func TestFinalizeNoticeWithoutContainer(t *testing.T) {
	finalizer := Finalizer{Dir: t.TempDir(), NoticeSelector: ".body_content"}
	_, err := finalizer.Finalize(
		context.Background(),
		payload("TEXT/HTML", strings.NewReader("<html><body><p>Server Error</p></body></html>")),
		testIdentity,
	)
	require.ErrorIs(t, err, ErrParse)
}

func TestFinalizeSaved(t *testing.T) {
	for _, size := range []int{0, 1, 4096, chunkSize + 17, 2*chunkSize + 3} {
		dir := t.TempDir()
		finalizer := Finalizer{Dir: dir, NoticeSelector: ".body_content"}

		dump := bytes.Repeat([]byte{0x50, 0x4b, 0x03, 0x04}, size/4+1)[:size]
		outcome, err := finalizer.Finalize(
			context.Background(),
			payload("application/zip", bytes.NewReader(dump)),
			testIdentity,
		)
		require.NoError(t, err)

		expectedPath := filepath.Join(dir, "gcd-dump-May_1,_2024,_2:15_a.m..zip")
		require.Equal(t, Saved{Path: expectedPath, Bytes: int64(size)}, outcome)

		written, err := os.ReadFile(expectedPath)
		require.NoError(t, err)
		require.True(t, bytes.Equal(dump, written), "size %d", size)
	}
}

func TestFinalizeWithoutContentType(t *testing.T) {
	finalizer := Finalizer{Dir: t.TempDir(), NoticeSelector: ".body_content"}
	outcome, err := finalizer.Finalize(context.Background(), payload("", strings.NewReader("PK")), testIdentity)
	require.NoError(t, err)
	require.IsType(t, Saved{}, outcome)
}

func TestFinalizeStorageError(t *testing.T) {
	finalizer := Finalizer{Dir: filepath.Join(t.TempDir(), "missing"), NoticeSelector: ".body_content"}
	_, err := finalizer.Finalize(
		context.Background(),
		payload("application/zip", strings.NewReader("PK")),
		testIdentity,
	)
	require.ErrorIs(t, err, ErrStorage)
}

type failingReader struct {
	data []byte
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("connection reset by peer")
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestFinalizeBrokenStreamKeepsPartialFile(t *testing.T) {
	dir := t.TempDir()
	finalizer := Finalizer{Dir: dir, NoticeSelector: ".body_content"}

	_, err := finalizer.Finalize(
		context.Background(),
		payload("application/zip", &failingReader{data: []byte("PK\x03\x04")}),
		testIdentity,
	)
	require.ErrorIs(t, err, ErrTransport)

	partial, err := os.ReadFile(filepath.Join(dir, DumpFilename(testIdentity)))
	require.NoError(t, err)
	require.Equal(t, []byte("PK\x03\x04"), partial)
}
