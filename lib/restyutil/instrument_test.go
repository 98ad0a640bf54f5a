package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestInstrumentClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "secret-session"})
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<p>welcome</p>"))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := resty.New()
	InstrumentClient(client, out)

	res, err := client.R().
		SetFormData(map[string]string{
			"username": "alice",
			"password": "hunter2",
		}).
		Post(server.URL + "/accounts/login/")
	require.NoError(t, err)
	require.True(t, res.IsSuccess())

	contents, err := os.ReadFile(filepath.Join(dir, "1"))
	require.NoError(t, err)
	dump := string(contents)

	require.Contains(t, dump, "POST "+server.URL+"/accounts/login/")
	require.Contains(t, dump, "username=alice")
	require.Contains(t, dump, "<p>welcome</p>")
	require.NotContains(t, dump, "hunter2")
	require.NotContains(t, dump, "secret-session")
}

func TestInstrumentClientNilOutput(t *testing.T) {
	client := resty.New()
	InstrumentClient(client, nil)
}

func TestInstrumentClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>landing</p>"))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := resty.New()
	InstrumentClient(client, out)

	res, err := client.R().Get(server.URL + "/")
	require.NoError(t, err)
	require.True(t, res.IsSuccess())

	contents, err := os.ReadFile(filepath.Join(dir, "1"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "GET "+server.URL+"/")
	require.Contains(t, string(contents), "<p>landing</p>")
}

func TestFinishStreamed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("PK"))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := resty.New()
	InstrumentClient(client, out)

	res, err := client.R().SetDoNotParseResponse(true).Get(server.URL + "/download/")
	require.NoError(t, err)
	defer res.RawBody().Close()

	_, err = os.Stat(filepath.Join(dir, "1"))
	require.True(t, os.IsNotExist(err))

	FinishStreamed(res)
	contents, err := os.ReadFile(filepath.Join(dir, "1"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "<body not buffered, content-type application/zip>")
}

func TestFinishStreamedUninstrumented(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("PK"))
	}))
	defer server.Close()

	res, err := resty.New().R().SetDoNotParseResponse(true).Get(server.URL)
	require.NoError(t, err)
	defer res.RawBody().Close()
	FinishStreamed(res)
	FinishStreamed(nil)
}
