package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/cloudsign"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document/repository"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/participants"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/logger"
)

var ErrNotFound = repository.ErrNotFound

// Service owns the document-side state machine. It mirrors the remote
// envelope lifecycle into the local case record and routes every remote call
// through the authenticated client. The service never retries remote calls:
// a failed step leaves the document in its last reached state so the caller
// can resume.
type Service struct {
	api  *cloudsign.Client
	repo repository.Repository
}

func New(api *cloudsign.Client, repo repository.Repository) *Service {
	return &Service{api: api, repo: repo}
}

// Create creates the remote envelope for the given idempotency key. Calling
// it again with the same key returns the existing document instead of
// minting a duplicate envelope, which makes retries after a timed-out create
// safe.
//
// One window stays open: if the remote create succeeds but its response is
// lost (timeout after the envelope exists), the local record has no RemoteID
// and a retry creates a second remote envelope. The remote service offers no
// idempotency key or lookup-by-attribute to reconcile this, so the orphan has
// to be cleaned up out of band; the local record only ever tracks one
// envelope.
func (s *Service) Create(ctx context.Context, key, title, note string, flow document.SigningFlow) (*document.Document, error) {
	if key == "" {
		return nil, &participants.ValidationError{Reason: "idempotency key is required"}
	}
	if !flow.Valid() {
		return nil, &participants.ValidationError{Reason: fmt.Sprintf("unknown signing flow %q", flow)}
	}

	doc, err := s.repo.Get(ctx, key)
	switch {
	case err == nil:
		if doc.RemoteID != "" {
			// envelope already created for this key
			return doc, nil
		}
	case errors.Is(err, repository.ErrNotFound):
		doc = &document.Document{ID: key, Title: title, Note: note, Status: document.StatusDraft, Flow: flow}
		if cerr := s.repo.Create(ctx, doc); cerr != nil {
			if !errors.Is(cerr, repository.ErrExists) {
				return nil, cerr
			}
			// concurrent create for the same key won the race
			doc, err = s.repo.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if doc.RemoteID != "" {
				return doc, nil
			}
		}
	default:
		return nil, err
	}

	resp, err := s.api.CreateDocument(ctx, doc.Title, doc.Note)
	if err != nil {
		return nil, err
	}
	doc.RemoteID = resp.ID
	if err := s.transition(doc, document.StatusCreated, "create"); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	logger.Infof("created remote document %s for case %s", doc.RemoteID, doc.ID)
	return doc, nil
}

// Get returns the local case record.
func (s *Service) Get(ctx context.Context, id string) (*document.Document, error) {
	return s.repo.Get(ctx, id)
}

// GetByRemoteID resolves a case record from the remote envelope identifier,
// as delivered by webhook events.
func (s *Service) GetByRemoteID(ctx context.Context, remoteID string) (*document.Document, error) {
	return s.repo.GetByRemoteID(ctx, remoteID)
}

// SetParticipants validates the signer set for the document's flow and
// submits it in order-index order. Allowed only in the Created state; the
// participant set is append-only afterwards.
func (s *Service) SetParticipants(ctx context.Context, id string, ps []document.Participant) (*document.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != document.StatusCreated {
		return nil, &document.InvalidStateError{Op: "set participants", From: doc.Status}
	}
	if err := participants.Validate(doc.Flow, ps); err != nil {
		return nil, err
	}

	// orders already submitted remotely during an earlier, partially failed
	// call; a retry must not re-submit them
	done := make(map[int]document.Participant, len(doc.Participants))
	for _, p := range doc.Participants {
		if p.RemoteID != "" {
			done[p.Order] = p
		}
	}

	ordered := participants.Sorted(ps)
	submitted := make([]document.Participant, 0, len(ordered))
	for _, p := range ordered {
		if prev, ok := done[p.Order]; ok {
			submitted = append(submitted, prev)
			continue
		}
		req := cloudsign.ParticipantRequest{Name: p.Name, Order: p.Order}
		switch doc.Flow {
		case document.FlowStandard:
			req.Email = p.Email
		case document.FlowEmbeddedSMS:
			req.PhoneNumber = p.PhoneNumber
			req.Email = p.Email // stored for display only
		}
		resp, err := s.api.AddParticipant(ctx, doc.RemoteID, req)
		if err != nil {
			// the document remains Created with the progress so far on
			// record, so the caller can retry this step without duplicating
			// already-submitted participants
			return nil, err
		}
		p.RemoteID = remoteParticipantID(resp, p.Order)
		submitted = append(submitted, p)
		doc.Participants = submitted
		if uerr := s.repo.Update(ctx, doc); uerr != nil {
			return nil, uerr
		}
	}

	doc.Participants = submitted
	if err := s.transition(doc, document.StatusParticipantsSet, "set participants"); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// AttachFile uploads a contract file to the remote envelope and records both
// the object-storage key and the remote file ID. Files can be attached until
// the document is sent.
func (s *Service) AttachFile(ctx context.Context, id, name, storageKey string, r io.Reader) (*document.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != document.StatusCreated && doc.Status != document.StatusParticipantsSet {
		return nil, &document.InvalidStateError{Op: "attach file", From: doc.Status}
	}
	resp, err := s.api.AttachFile(ctx, doc.RemoteID, name, r)
	if err != nil {
		return nil, err
	}
	doc.RemoteFileIDs = append(doc.RemoteFileIDs, resp.ID)
	if storageKey != "" {
		doc.FileKeys = append(doc.FileKeys, storageKey)
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDetails changes title/note while the envelope is still a remote draft.
func (s *Service) UpdateDetails(ctx context.Context, id, title, note string) (*document.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != document.StatusCreated && doc.Status != document.StatusParticipantsSet {
		return nil, &document.InvalidStateError{Op: "update details", From: doc.Status}
	}
	if _, err := s.api.UpdateDocument(ctx, doc.RemoteID, title, note); err != nil {
		return nil, err
	}
	doc.Title = title
	doc.Note = note
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Send dispatches the envelope. Requires ParticipantsSet and at least one
// attached contract file.
func (s *Service) Send(ctx context.Context, id string) (*document.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != document.StatusParticipantsSet {
		return nil, &document.InvalidStateError{Op: "send", From: doc.Status}
	}
	if len(doc.RemoteFileIDs) == 0 {
		return nil, &participants.ValidationError{Reason: "at least one contract file must be attached before send"}
	}
	if _, err := s.api.SendDocument(ctx, doc.RemoteID); err != nil {
		return nil, err
	}
	if err := s.transition(doc, document.StatusSent, "send"); err != nil {
		return nil, err
	}
	doc.SentEmbedded = doc.Flow != document.FlowStandard
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	logger.Infof("sent document %s (flow=%s)", doc.RemoteID, doc.Flow)
	return doc, nil
}

// RefreshStatus re-fetches remote state and maps it into the local
// lifecycle. A 404 for a document that had a remote identifier means the
// envelope aged out remotely and is mapped to Expired.
func (s *Service) RefreshStatus(ctx context.Context, id string) (*document.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.RemoteID == "" {
		return nil, &document.InvalidStateError{Op: "refresh status", From: doc.Status}
	}

	resp, err := s.api.GetDocument(ctx, doc.RemoteID)
	if err != nil {
		if cloudsign.IsNotFound(err) {
			return s.ApplyRemoteStatus(ctx, doc.ID, document.StatusExpired)
		}
		return nil, err
	}

	mapped, ok := mapRemoteStatus(resp.Status)
	if !ok || mapped == doc.Status {
		return doc, nil
	}
	return s.ApplyRemoteStatus(ctx, doc.ID, mapped)
}

// ApplyRemoteStatus applies a status observed from the remote side — by
// polling or by webhook; both sources are equivalent. Replaying the current
// status (including a terminal one) is a no-op; any transition outside the
// lifecycle table fails with InvalidStateError.
func (s *Service) ApplyRemoteStatus(ctx context.Context, id string, st document.Status) (*document.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == st {
		return doc, nil
	}
	if err := s.transition(doc, st, "status update"); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	logger.Infof("document %s advanced to %s", doc.RemoteID, st)
	return doc, nil
}

// Download fetches the (signed) PDF for the document's first contract file.
func (s *Service) Download(ctx context.Context, id string) ([]byte, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.RemoteID == "" {
		return nil, &document.InvalidStateError{Op: "download", From: doc.Status}
	}
	fileIDs := doc.RemoteFileIDs
	if len(fileIDs) == 0 {
		resp, err := s.api.GetDocument(ctx, doc.RemoteID)
		if err != nil {
			return nil, err
		}
		for _, f := range resp.Files {
			fileIDs = append(fileIDs, f.ID)
		}
	}
	if len(fileIDs) == 0 {
		return nil, &document.InvalidStateError{Op: "download", From: doc.Status}
	}
	return s.api.DownloadFile(ctx, doc.RemoteID, fileIDs[0])
}

// ConsentReference fetches the my-page reference for an embedded-flow
// participant of a sent document.
func (s *Service) ConsentReference(ctx context.Context, id, participantRemoteID string) (*cloudsign.ConsentResponse, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != document.StatusSent && doc.Status != document.StatusInProgress {
		return nil, &document.InvalidStateError{Op: "consent reference", From: doc.Status}
	}
	return s.api.MyPageURL(ctx, doc.RemoteID, participantRemoteID)
}

func (s *Service) transition(doc *document.Document, to document.Status, op string) error {
	if !document.CanTransition(doc.Status, to) {
		return &document.InvalidStateError{Op: op, From: doc.Status, To: to}
	}
	doc.Status = to
	return nil
}

// mapRemoteStatus translates CloudSign numeric status codes into the local
// lifecycle. The remote draft code maps to nothing: locally the document is
// already Created or further along.
func mapRemoteStatus(code int) (document.Status, bool) {
	switch code {
	case cloudsign.RemoteStatusInProgress:
		return document.StatusInProgress, true
	case cloudsign.RemoteStatusCompleted:
		return document.StatusCompleted, true
	case cloudsign.RemoteStatusCanceled:
		return document.StatusCanceled, true
	case cloudsign.RemoteStatusDeclined:
		return document.StatusDeclined, true
	}
	return "", false
}

func remoteParticipantID(resp *cloudsign.DocumentResponse, order int) string {
	for _, rp := range resp.Participants {
		if rp.Order == order {
			return rp.ID
		}
	}
	return ""
}
