package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/cloudsign"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document/repository"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document/service"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/signing"
)

type memFiles map[string]string

func (m memFiles) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	content, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// newCaseRouter wires the case handler against a minimal fake remote API.
func newCaseRouter(t *testing.T) *gin.Engine {
	t.Helper()
	var nextID int32
	docs := map[string]*cloudsign.DocumentResponse{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("POST /documents", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Title string `json:"title"`
			Note  string `json:"note"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		id := fmt.Sprintf("remote-%d", atomic.AddInt32(&nextID, 1))
		doc := &cloudsign.DocumentResponse{ID: id, Title: in.Title, Note: in.Note}
		docs[id] = doc
		json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("GET /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		doc, ok := docs[r.PathValue("id")]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("POST /documents/{id}/participants", func(w http.ResponseWriter, r *http.Request) {
		doc := docs[r.PathValue("id")]
		var p cloudsign.ParticipantResponse
		json.NewDecoder(r.Body).Decode(&p)
		p.ID = fmt.Sprintf("p-%d", len(doc.Participants)+1)
		doc.Participants = append(doc.Participants, p)
		json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("POST /documents/{id}/files", func(w http.ResponseWriter, r *http.Request) {
		doc := docs[r.PathValue("id")]
		r.ParseMultipartForm(1 << 20)
		_, hdr, err := r.FormFile("uploadfile")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file := cloudsign.FileResponse{ID: fmt.Sprintf("f-%d", len(doc.Files)+1), Name: hdr.Filename}
		doc.Files = append(doc.Files, file)
		json.NewEncoder(w).Encode(file)
	})
	mux.HandleFunc("POST /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		doc := docs[r.PathValue("id")]
		doc.Status = cloudsign.RemoteStatusInProgress
		json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("GET /documents/{id}/participants/{pid}/mypage_url", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cloudsign.ConsentResponse{
			MyPageURL: "https://signer.example.test/" + r.PathValue("pid"),
			Token:     "consent-" + r.PathValue("pid"),
			ExpiresAt: time.Now().Add(time.Hour),
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tm := cloudsign.NewTokenManager(srv.Client(), srv.URL, "client-1", time.Minute)
	api := cloudsign.NewClientWithTokenManager(srv.Client(), srv.URL, tm)
	svc := service.New(api, repository.NewMemoryRepo())
	files := memFiles{"contracts/key-1/contract.pdf": "%PDF fake"}
	orch := signing.NewOrchestrator(svc, signing.NewMemoryConsentStore(), files)

	g := gin.New()
	NewCaseHandler(svc, orch, nil).RegisterCaseRoutes(g)
	return g
}

func doJSON(t *testing.T, g *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestCreateCaseEndpoint(t *testing.T) {
	g := newCaseRouter(t)

	rw := doJSON(t, g, http.MethodPost, "/api/cases", gin.H{"key": "key-1", "title": "contract", "flow": "standard"})
	require.Equal(t, http.StatusCreated, rw.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out))
	require.Equal(t, "key-1", out["id"])
	require.Equal(t, "created", out["status"])
	require.NotEmpty(t, out["remoteId"])

	rw = doJSON(t, g, http.MethodGet, "/api/cases/key-1", nil)
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestCreateCaseRejectsUnknownFlow(t *testing.T) {
	g := newCaseRouter(t)
	rw := doJSON(t, g, http.MethodPost, "/api/cases", gin.H{"key": "key-1", "title": "contract", "flow": "carrier_pigeon"})
	require.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestGetCaseNotFound(t *testing.T) {
	g := newCaseRouter(t)
	rw := doJSON(t, g, http.MethodGet, "/api/cases/nope", nil)
	require.Equal(t, http.StatusNotFound, rw.Code)
}

func TestStateConflictMapsTo409(t *testing.T) {
	g := newCaseRouter(t)

	rw := doJSON(t, g, http.MethodPost, "/api/cases", gin.H{"key": "key-1", "title": "contract"})
	require.Equal(t, http.StatusCreated, rw.Code)

	// sending a freshly created case skips required preparation steps
	rw = doJSON(t, g, http.MethodPost, "/api/cases/key-1/send", nil)
	require.Equal(t, http.StatusConflict, rw.Code)
}

func TestSendFlowEndpointStandard(t *testing.T) {
	g := newCaseRouter(t)

	rw := doJSON(t, g, http.MethodPost, "/api/cases/send", gin.H{
		"key":   "key-1",
		"title": "contract",
		"flow":  "standard",
		"participants": []gin.H{
			{"name": "Yamada", "email": "yamada@example.com", "order": 1},
		},
		"files": []gin.H{{"name": "contract.pdf", "key": "contracts/key-1/contract.pdf"}},
	})
	require.Equal(t, http.StatusOK, rw.Code)

	var out struct {
		Case struct {
			Status string `json:"status"`
		} `json:"case"`
		Consents []interface{} `json:"consents"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out))
	require.Equal(t, "sent", out.Case.Status)
	require.Empty(t, out.Consents)
}

func TestSendFlowEndpointEmbeddedSMS(t *testing.T) {
	g := newCaseRouter(t)

	rw := doJSON(t, g, http.MethodPost, "/api/cases/send", gin.H{
		"key":   "key-1",
		"title": "contract",
		"flow":  "embedded_sms",
		"participants": []gin.H{
			// local notation is normalized before validation
			{"name": "Yamada", "phoneNumber": "090-1234-5678", "order": 1},
		},
		"files": []gin.H{{"name": "contract.pdf", "key": "contracts/key-1/contract.pdf"}},
	})
	require.Equal(t, http.StatusOK, rw.Code)

	var out struct {
		Consents []struct {
			Token     string `json:"token"`
			MyPageURL string `json:"myPageUrl"`
		} `json:"consents"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out))
	require.Len(t, out.Consents, 1)
	require.NotEmpty(t, out.Consents[0].Token)
	require.NotEmpty(t, out.Consents[0].MyPageURL)
}

func TestSendFlowReportsFailedStep(t *testing.T) {
	g := newCaseRouter(t)

	// no files: the flow dies at the send step with a validation problem
	rw := doJSON(t, g, http.MethodPost, "/api/cases/send", gin.H{
		"key":   "key-1",
		"title": "contract",
		"flow":  "standard",
		"participants": []gin.H{
			{"name": "Yamada", "email": "yamada@example.com", "order": 1},
		},
	})
	require.Equal(t, http.StatusBadRequest, rw.Code)

	var out struct {
		Step string `json:"step"`
	}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out))
	require.Equal(t, "send", out.Step)
}
