package cloudsign

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttachFileSendsMultipart(t *testing.T) {
	f := newFakeRemote(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/documents/doc-1/files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		file, hdr, err := r.FormFile("uploadfile")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "contract.pdf", hdr.Filename)
		json.NewEncoder(w).Encode(FileResponse{ID: "file-1", Name: hdr.Filename})
	})
	defer f.srv.Close()

	out, err := f.client().AttachFile(context.Background(), "doc-1", "contract.pdf", strings.NewReader("%PDF-1.7 fake"))
	require.NoError(t, err)
	require.Equal(t, "file-1", out.ID)
}

func TestDownloadFileReturnsBytes(t *testing.T) {
	f := newFakeRemote(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents/doc-1/files/file-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 signed"))
	})
	defer f.srv.Close()

	b, err := f.client().DownloadFile(context.Background(), "doc-1", "file-1")
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.7 signed", string(b))
}

func TestMyPageURLPath(t *testing.T) {
	f := newFakeRemote(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents/doc-1/participants/p-1/mypage_url", r.URL.Path)
		json.NewEncoder(w).Encode(ConsentResponse{MyPageURL: "https://example.test/mypage", Token: "tok-abc"})
	})
	defer f.srv.Close()

	out, err := f.client().MyPageURL(context.Background(), "doc-1", "p-1")
	require.NoError(t, err)
	require.Equal(t, "tok-abc", out.Token)
	require.Equal(t, "https://example.test/mypage", out.MyPageURL)
}

func TestSendDocumentPostsToDocumentPath(t *testing.T) {
	f := newFakeRemote(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/documents/doc-1", r.URL.Path)
		json.NewEncoder(w).Encode(DocumentResponse{ID: "doc-1", Status: RemoteStatusInProgress})
	})
	defer f.srv.Close()

	out, err := f.client().SendDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, RemoteStatusInProgress, out.Status)
}
