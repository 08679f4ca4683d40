package report

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL).Ping(context.Background()))
}

func TestClientPingReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	require.Error(t, NewClient(srv.URL).Ping(context.Background()))
}

func TestRenderHTMLSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		require.Equal(t, "index.html", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Contains(t, string(content), "<h1>hola</h1>")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	pdf, err := NewClient(srv.URL).RenderHTML(context.Background(), "<h1>hola</h1>")
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.7", string(pdf))
}
