package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/cloudsign"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document/service"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/participants"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/signing"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/storage"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/logger"
)

// CaseHandler exposes the signing lifecycle over HTTP: draft creation, file
// upload, participant setup, the three one-shot send flows, status refresh and
// signed-PDF download.
type CaseHandler struct {
	svc   *service.Service
	orch  *signing.Orchestrator
	store *storage.MinIOStorage
}

func NewCaseHandler(svc *service.Service, orch *signing.Orchestrator, store *storage.MinIOStorage) *CaseHandler {
	return &CaseHandler{svc: svc, orch: orch, store: store}
}

// RegisterCaseRoutes registers the case API under /api/cases.
func (h *CaseHandler) RegisterCaseRoutes(r *gin.Engine, mw ...gin.HandlerFunc) {
	g := r.Group("/api/cases", mw...)
	g.POST("", h.CreateCase)
	g.GET("/:id", h.GetCase)
	g.PATCH("/:id", h.UpdateCase)
	g.POST("/:id/files", h.UploadFile)
	g.POST("/:id/participants", h.SetParticipants)
	g.POST("/:id/send", h.SendCase)
	g.POST("/send", h.SendFlow)
	g.GET("/:id/status", h.RefreshStatus)
	g.GET("/:id/download", h.DownloadSigned)
}

type participantBody struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Order       int    `json:"order"`
}

func toParticipants(in []participantBody) []document.Participant {
	out := make([]document.Participant, 0, len(in))
	for _, p := range in {
		out = append(out, document.Participant{
			Name:        p.Name,
			Email:       p.Email,
			PhoneNumber: participants.NormalizePhone(p.PhoneNumber),
			Order:       p.Order,
		})
	}
	return out
}

func caseView(d *document.Document) gin.H {
	return gin.H{
		"id":           d.ID,
		"remoteId":     d.RemoteID,
		"title":        d.Title,
		"note":         d.Note,
		"status":       d.Status,
		"flow":         d.Flow,
		"sentEmbedded": d.SentEmbedded,
		"participants": d.Participants,
		"fileKeys":     d.FileKeys,
		"createdAt":    d.CreatedAt,
		"updatedAt":    d.UpdatedAt,
	}
}

// CreateCase opens a remote draft envelope. The caller may pass its own
// idempotency key; absent one, a fresh UUID is minted so the request is
// single-shot.
func (h *CaseHandler) CreateCase(c *gin.Context) {
	var req struct {
		Key   string `json:"key"`
		Title string `json:"title"`
		Note  string `json:"note"`
		Flow  string `json:"flow"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Key == "" {
		req.Key = uuid.NewString()
	}
	if req.Flow == "" {
		req.Flow = string(document.FlowStandard)
	}
	doc, err := h.svc.Create(c.Request.Context(), req.Key, req.Title, req.Note, document.SigningFlow(req.Flow))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, caseView(doc))
}

// GetCase returns the local case record without touching the remote side.
func (h *CaseHandler) GetCase(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, caseView(doc))
}

// UpdateCase changes title/note while the envelope is still editable.
func (h *CaseHandler) UpdateCase(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
		Note  string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.svc.UpdateDetails(c.Request.Context(), c.Param("id"), req.Title, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, caseView(doc))
}

// UploadFile accepts a multipart contract file, parks a copy in object
// storage and attaches it to the remote envelope.
func (h *CaseHandler) UploadFile(c *gin.Context) {
	id := c.Param("id")
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	key := storage.ContractKey(id, fh.Filename)
	if h.store != nil {
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/pdf"
		}
		if err := h.store.UploadFile(c.Request.Context(), key, f, fh.Size, contentType); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "store file: " + err.Error()})
			return
		}
		if _, err := f.Seek(0, 0); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	doc, err := h.svc.AttachFile(c.Request.Context(), id, fh.Filename, key, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, caseView(doc))
}

// SetParticipants submits the signer set for the case.
func (h *CaseHandler) SetParticipants(c *gin.Context) {
	var req struct {
		Participants []participantBody `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.svc.SetParticipants(c.Request.Context(), c.Param("id"), toParticipants(req.Participants))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, caseView(doc))
}

// SendCase dispatches an already prepared case (files attached, participants
// set) to its signers.
func (h *CaseHandler) SendCase(c *gin.Context) {
	doc, err := h.svc.Send(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, caseView(doc))
}

// SendFlow runs a whole signing flow in one request: create, attach stored
// files, set participants, send. Repeating the request with the same key
// resumes from the last completed step.
func (h *CaseHandler) SendFlow(c *gin.Context) {
	var req struct {
		Key          string            `json:"key"`
		Title        string            `json:"title"`
		Note         string            `json:"note"`
		Flow         string            `json:"flow"`
		Participants []participantBody `json:"participants"`
		Files        []struct {
			Name string `json:"name"`
			Key  string `json:"key"`
		} `json:"files"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Key == "" {
		req.Key = uuid.NewString()
	}

	sreq := signing.SendRequest{
		Key:          req.Key,
		Title:        req.Title,
		Note:         req.Note,
		Participants: toParticipants(req.Participants),
	}
	for _, f := range req.Files {
		sreq.Files = append(sreq.Files, signing.FileRef{Name: f.Name, Key: f.Key})
	}

	var (
		res *signing.Result
		err error
	)
	switch document.SigningFlow(req.Flow) {
	case document.FlowStandard, "":
		res, err = h.orch.SendStandard(c.Request.Context(), sreq)
	case document.FlowEmbeddedSMS:
		res, err = h.orch.SendEmbeddedSMS(c.Request.Context(), sreq)
	case document.FlowSimplifiedAuth:
		res, err = h.orch.SendSimplifiedAuth(c.Request.Context(), sreq)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown flow " + req.Flow})
		return
	}
	if err != nil {
		var fe *signing.FlowError
		if errors.As(err, &fe) {
			logger.Warnf("send flow %s stopped at step %s: %v", req.Key, fe.Step, fe.Err)
			writeFlowError(c, fe)
			return
		}
		writeError(c, err)
		return
	}

	out := gin.H{"case": caseView(res.Document)}
	if len(res.Consents) > 0 {
		consents := make([]gin.H, 0, len(res.Consents))
		for _, rec := range res.Consents {
			consents = append(consents, gin.H{
				"token":           rec.Token,
				"participantName": rec.ParticipantName,
				"myPageUrl":       rec.MyPageURL,
				"expiresAt":       rec.ExpiresAt,
			})
		}
		out["consents"] = consents
	}
	c.JSON(http.StatusOK, out)
}

// RefreshStatus polls the remote envelope and returns the reconciled record.
func (h *CaseHandler) RefreshStatus(c *gin.Context) {
	doc, err := h.svc.RefreshStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, caseView(doc))
}

// DownloadSigned streams the signed contract PDF back to the caller.
func (h *CaseHandler) DownloadSigned(c *gin.Context) {
	data, err := h.svc.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="contract.pdf"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// writeError maps domain errors onto HTTP statuses. Validation problems are
// the caller's fault, state conflicts are 409, remote-side failures surface
// as 502 so they are distinguishable from bugs in this service.
func writeError(c *gin.Context, err error) {
	var (
		verr *participants.ValidationError
		serr *document.InvalidStateError
		rerr *cloudsign.RemoteError
		aerr *cloudsign.AuthError
		nerr *cloudsign.NetworkError
	)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.As(err, &serr):
		c.JSON(http.StatusConflict, gin.H{"error": serr.Error()})
	case errors.As(err, &aerr):
		logger.Errorf("remote auth failure: %v", aerr)
		c.JSON(http.StatusBadGateway, gin.H{"error": "signing service authentication failed"})
	case errors.As(err, &rerr):
		c.JSON(http.StatusBadGateway, gin.H{"error": rerr.Error()})
	case errors.As(err, &nerr):
		c.JSON(http.StatusBadGateway, gin.H{"error": nerr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func writeFlowError(c *gin.Context, fe *signing.FlowError) {
	// same mapping as writeError, with the failed step attached so the UI can
	// offer a resume
	var (
		verr *participants.ValidationError
		serr *document.InvalidStateError
	)
	status := http.StatusBadGateway
	switch {
	case errors.As(fe.Err, &verr):
		status = http.StatusBadRequest
	case errors.As(fe.Err, &serr):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": fe.Err.Error(), "step": fe.Step})
}
