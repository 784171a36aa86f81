package cloudsign

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Remote document status codes as returned by the CloudSign API.
const (
	RemoteStatusDraft      = 0 // 下書き
	RemoteStatusInProgress = 1 // 先方確認中
	RemoteStatusCompleted  = 2 // 締結済
	RemoteStatusCanceled   = 3
	RemoteStatusDeclined   = 4
)

// DocumentResponse mirrors the envelope resource returned by the API.
type DocumentResponse struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Note         string                `json:"note,omitempty"`
	Status       int                   `json:"status"`
	Participants []ParticipantResponse `json:"participants,omitempty"`
	Files        []FileResponse        `json:"files,omitempty"`
}

type ParticipantResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Order       int    `json:"order"`
}

type FileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParticipantRequest is the payload appended to an envelope. Identity fields
// beyond name/order are flow-dependent; validation happens before this layer.
type ParticipantRequest struct {
	Email       string `json:"email,omitempty"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Order       int    `json:"order"`
}

// ConsentResponse carries the my-page reference for an embedded-flow
// participant: the URL the signer must visit plus the verification token.
type ConsentResponse struct {
	MyPageURL string    `json:"mypage_url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type createDocumentRequest struct {
	Title string `json:"title"`
	Note  string `json:"note,omitempty"`
}

// CreateDocument creates a new draft envelope on the remote side.
func (c *Client) CreateDocument(ctx context.Context, title, note string) (*DocumentResponse, error) {
	var out DocumentResponse
	in := createDocumentRequest{Title: title, Note: note}
	if err := c.doJSON(ctx, http.MethodPost, "/documents", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDocument fetches the envelope including its current status and participants.
func (c *Client) GetDocument(ctx context.Context, id string) (*DocumentResponse, error) {
	var out DocumentResponse
	if err := c.doJSON(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDocument replaces title/note. Only valid while the envelope is a
// remote draft; later updates are rejected by the service.
func (c *Client) UpdateDocument(ctx context.Context, id, title, note string) (*DocumentResponse, error) {
	var out DocumentResponse
	in := createDocumentRequest{Title: title, Note: note}
	if err := c.doJSON(ctx, http.MethodPut, "/documents/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddParticipant appends one participant to the envelope.
func (c *Client) AddParticipant(ctx context.Context, docID string, p ParticipantRequest) (*DocumentResponse, error) {
	var out DocumentResponse
	if err := c.doJSON(ctx, http.MethodPost, "/documents/"+url.PathEscape(docID)+"/participants", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendDocument dispatches the envelope to its participants.
func (c *Client) SendDocument(ctx context.Context, id string) (*DocumentResponse, error) {
	var out DocumentResponse
	if err := c.doJSON(ctx, http.MethodPost, "/documents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AttachFile uploads a contract PDF to the envelope as a multipart form.
func (c *Client) AttachFile(ctx context.Context, docID, name string, r io.Reader) (*FileResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("uploadfile", name)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("read file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/documents/"+url.PathEscape(docID)+"/files", buf.Bytes(), mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out FileResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, &NetworkError{Op: "attach file", Err: err}
	}
	return &out, nil
}

// DownloadFile returns the raw (signed) PDF bytes for a file of the envelope.
func (c *Client) DownloadFile(ctx context.Context, docID, fileID string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(docID)+"/files/"+url.PathEscape(fileID), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "download file", Err: err}
	}
	return b, nil
}

// MyPageURL fetches the consent my-page reference for an embedded-flow
// participant of a sent envelope.
func (c *Client) MyPageURL(ctx context.Context, docID, participantID string) (*ConsentResponse, error) {
	var out ConsentResponse
	path := "/documents/" + url.PathEscape(docID) + "/participants/" + url.PathEscape(participantID) + "/mypage_url"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
