package signing

import (
	"context"
	"fmt"
	"io"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document/service"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/logger"
)

// Step identifies the orchestrator stage a flow failure occurred in. The UI
// layer uses it to offer "resume from last successful step" instead of a
// restart.
type Step string

const (
	StepCreate       Step = "create"
	StepAttachFiles  Step = "attach_files"
	StepParticipants Step = "participants"
	StepSend         Step = "send"
	StepConsent      Step = "consent"
)

// FlowError wraps the underlying failure with the step it occurred in.
// The document keeps the state of the last successful step, so re-running
// the same flow entry point skips completed work.
type FlowError struct {
	Step Step
	Err  error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("signing: step %s failed: %v", e.Step, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }

// FileRef points at a contract file held in object storage.
type FileRef struct {
	Name string
	Key  string
}

// FileSource fetches stored contract file content. Satisfied by
// storage.MinIOStorage.
type FileSource interface {
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
}

// SendRequest carries everything a flow entry point needs. Key is the
// caller-generated idempotency key for the envelope.
type SendRequest struct {
	Key          string
	Title        string
	Note         string
	Participants []document.Participant
	Files        []FileRef
}

// Result is what a completed (or partially completed) flow returns.
// Consents is populated only by the embedded-SMS flow.
type Result struct {
	Document *document.Document
	Consents []*ConsentRecord
}

// Orchestrator combines the document service, consent store and file source
// into the three end-to-end signing flows. It holds no state of its own; all
// progress lives in the document lifecycle, which is what makes flows
// resumable after a step failure.
type Orchestrator struct {
	docs     *service.Service
	consents ConsentStore
	files    FileSource
}

func NewOrchestrator(docs *service.Service, consents ConsentStore, files FileSource) *Orchestrator {
	return &Orchestrator{docs: docs, consents: consents, files: files}
}

// SendStandard runs create → attach files → set participants → send with
// email-based signing. Terminal success once the document reaches Sent.
func (o *Orchestrator) SendStandard(ctx context.Context, req SendRequest) (*Result, error) {
	doc, err := o.run(ctx, req, document.FlowStandard)
	if err != nil {
		return nil, err
	}
	return &Result{Document: doc}, nil
}

// SendEmbeddedSMS runs the shared mechanics, then obtains a ConsentRecord
// (my-page URL + verification token) for every participant. The flow is not
// fully complete until each participant's SMS verification is confirmed,
// which arrives later through polling or the webhook channel.
func (o *Orchestrator) SendEmbeddedSMS(ctx context.Context, req SendRequest) (*Result, error) {
	doc, err := o.run(ctx, req, document.FlowEmbeddedSMS)
	if err != nil {
		return nil, err
	}

	consents := make([]*ConsentRecord, 0, len(doc.Participants))
	for _, p := range doc.Participants {
		ref, err := o.docs.ConsentReference(ctx, doc.ID, p.RemoteID)
		if err != nil {
			return nil, &FlowError{Step: StepConsent, Err: err}
		}
		rec := &ConsentRecord{
			Token:               ref.Token,
			DocumentID:          doc.ID,
			ParticipantRemoteID: p.RemoteID,
			ParticipantName:     p.Name,
			MyPageURL:           ref.MyPageURL,
			ExpiresAt:           ref.ExpiresAt,
		}
		if err := o.consents.Put(ctx, rec); err != nil {
			return nil, &FlowError{Step: StepConsent, Err: err}
		}
		consents = append(consents, rec)
	}
	logger.Infof("issued %d consent references for document %s", len(consents), doc.RemoteID)
	return &Result{Document: doc, Consents: consents}, nil
}

// SendSimplifiedAuth runs the shared mechanics with no consent step; the
// remote side enforces its own participant authentication. The resulting
// document carries the embedded-signature flag for case-list display.
func (o *Orchestrator) SendSimplifiedAuth(ctx context.Context, req SendRequest) (*Result, error) {
	doc, err := o.run(ctx, req, document.FlowSimplifiedAuth)
	if err != nil {
		return nil, err
	}
	return &Result{Document: doc}, nil
}

// ConfirmConsent marks a pending SMS verification as completed and discards
// the consent record. Called from the webhook handler; unknown or expired
// tokens are a no-op so replays stay harmless.
func (o *Orchestrator) ConfirmConsent(ctx context.Context, token string) (*ConsentRecord, error) {
	rec, err := o.consents.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if err := o.consents.Delete(ctx, token); err != nil {
		return nil, err
	}
	logger.Infof("consent confirmed for participant %s on document %s", rec.ParticipantName, rec.DocumentID)
	return rec, nil
}

// run executes the mechanics shared by all three flows, skipping steps the
// document has already completed so partially failed flows resume cleanly.
func (o *Orchestrator) run(ctx context.Context, req SendRequest, flow document.SigningFlow) (*document.Document, error) {
	doc, err := o.docs.Create(ctx, req.Key, req.Title, req.Note, flow)
	if err != nil {
		return nil, &FlowError{Step: StepCreate, Err: err}
	}
	if doc.Flow != flow {
		return nil, &FlowError{Step: StepCreate, Err: fmt.Errorf("document %s was created with flow %s", doc.ID, doc.Flow)}
	}

	if doc.Status == document.StatusCreated {
		if doc, err = o.attachMissing(ctx, doc, req.Files); err != nil {
			return nil, &FlowError{Step: StepAttachFiles, Err: err}
		}
		if doc, err = o.docs.SetParticipants(ctx, doc.ID, req.Participants); err != nil {
			return nil, &FlowError{Step: StepParticipants, Err: err}
		}
	}

	if doc.Status == document.StatusParticipantsSet {
		if doc, err = o.docs.Send(ctx, doc.ID); err != nil {
			return nil, &FlowError{Step: StepSend, Err: err}
		}
	}
	return doc, nil
}

// attachMissing uploads the requested files that are not yet recorded on the
// document, fetching content from object storage.
func (o *Orchestrator) attachMissing(ctx context.Context, doc *document.Document, files []FileRef) (*document.Document, error) {
	attached := make(map[string]bool, len(doc.FileKeys))
	for _, k := range doc.FileKeys {
		attached[k] = true
	}
	for _, f := range files {
		if attached[f.Key] {
			continue
		}
		if o.files == nil {
			return nil, fmt.Errorf("no file storage configured, cannot fetch %s", f.Key)
		}
		rc, err := o.files.DownloadFile(ctx, f.Key)
		if err != nil {
			return nil, fmt.Errorf("fetch stored file %s: %w", f.Key, err)
		}
		doc, err = o.docs.AttachFile(ctx, doc.ID, f.Name, f.Key, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}
