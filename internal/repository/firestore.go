package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
)

// FirestoreStore keeps one Firestore document per tender upload.
type FirestoreStore struct {
	client *firestore.Client
	coll   *firestore.CollectionRef
	logger *slog.Logger
	opts   options
}

var _ DocumentRepository = (*FirestoreStore)(nil)

type firestoreDocument struct {
	FileName     string           `firestore:"pdfName"`
	Status       string           `firestore:"status"`
	Fields       map[string]any   `firestore:"fields"`
	Submittals   []map[string]any `firestore:"submittals"`
	PageCount    int64            `firestore:"pageCount"`
	ErrorMessage string           `firestore:"errorMessage"`
	CreatedAt    time.Time        `firestore:"createdAt"`
	UpdatedAt    time.Time        `firestore:"updatedAt"`
}

// NewFirestoreStore connects to Firestore. FIRESTORE_EMULATOR_HOST is honored by the client library.
func NewFirestoreStore(ctx context.Context, projectID, collection string, logger *slog.Logger, opts ...Option) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	if collection == "" {
		collection = "documents"
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	logger.Info("connected to firestore", "project", projectID, "collection", collection)
	return &FirestoreStore{
		client: client,
		coll:   client.Collection(collection),
		logger: logger,
		opts:   buildOptions(opts),
	}, nil
}

func (s *FirestoreStore) Create(ctx context.Context, fileName string) (string, error) {
	id := s.opts.newID()
	now := s.opts.now().UTC()
	rec := firestoreDocument{
		FileName:   fileName,
		Status:     string(constants.StatusPending),
		Submittals: []map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.coll.Doc(id).Create(ctx, rec); err != nil {
		s.logger.Error("document create failed", "file_name", fileName, "error", err)
		return "", common.StoreWriteError("create document", err)
	}
	s.logger.Info("document created", "doc_id", id, "file_name", fileName)
	return id, nil
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*entity.Document, error) {
	snap, err := s.coll.Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, common.ErrRecordNotFound
	}
	if err != nil {
		s.logger.Error("document get failed", "doc_id", id, "error", err)
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return decodeSnapshot(snap)
}

// Update reads, checks the transition and writes inside one transaction.
func (s *FirestoreStore) Update(ctx context.Context, id string, u entity.DocumentUpdate) error {
	ref := s.coll.Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return common.ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		if u.Status != nil {
			cur, err := snap.DataAt("status")
			if err != nil {
				return err
			}
			from := constants.DocumentStatus(fmt.Sprint(cur))
			if !constants.CanTransition(from, *u.Status) {
				return fmt.Errorf("%w: document %s is %s", common.ErrInvalidStatusTransition, id, from)
			}
		}
		return tx.Update(ref, firestoreUpdates(u, s.opts.now().UTC()))
	})
	switch {
	case err == nil:
		return nil
	case isDomainError(err):
		return err
	default:
		s.logger.Error("document update failed", "doc_id", id, "error", err)
		return common.StoreWriteError("update document", err)
	}
}

func (s *FirestoreStore) ListSummaries(ctx context.Context) ([]entity.DocumentSummary, error) {
	snaps, err := s.coll.Select("pdfName", "status", "createdAt").
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		s.logger.Error("document list failed", "error", err)
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]entity.DocumentSummary, 0, len(snaps))
	for _, snap := range snaps {
		var rec firestoreDocument
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", snap.Ref.ID, err)
		}
		out = append(out, entity.DocumentSummary{
			ID:        snap.Ref.ID,
			FileName:  rec.FileName,
			CreatedAt: rec.CreatedAt.UTC(),
			Status:    constants.DocumentStatus(rec.Status),
		})
	}
	return out, nil
}

func (s *FirestoreStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := s.coll.Limit(1).Documents(ctx).GetAll()
	return err
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func firestoreUpdates(u entity.DocumentUpdate, now time.Time) []firestore.Update {
	ups := []firestore.Update{{Path: "updatedAt", Value: now}}
	if u.Status != nil {
		ups = append(ups, firestore.Update{Path: "status", Value: string(*u.Status)})
	}
	if u.Fields != nil {
		ups = append(ups, firestore.Update{Path: "fields", Value: fieldsToMap(u.Fields)})
	}
	if u.Submittals != nil {
		ups = append(ups, firestore.Update{Path: "submittals", Value: submittalsToMaps(*u.Submittals)})
	}
	if u.PageCount != nil {
		ups = append(ups, firestore.Update{Path: "pageCount", Value: int64(*u.PageCount)})
	}
	if u.ErrorMessage != nil {
		ups = append(ups, firestore.Update{Path: "errorMessage", Value: *u.ErrorMessage})
	}
	return ups
}

func fieldsToMap(f entity.Fields) map[string]any {
	m := make(map[string]any, len(f))
	for k, v := range f {
		if v == nil {
			m[k] = nil
		} else {
			m[k] = *v
		}
	}
	return m
}

func submittalsToMaps(subs []entity.Submittal) []map[string]any {
	out := make([]map[string]any, len(subs))
	for i, s := range subs {
		var page any
		if s.Page != nil {
			page = int64(*s.Page)
		}
		out[i] = map[string]any{"item": s.Item, "page": page, "reason": s.Reason}
	}
	return out
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*entity.Document, error) {
	var rec firestoreDocument
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", snap.Ref.ID, err)
	}
	doc := &entity.Document{
		ID:           snap.Ref.ID,
		FileName:     rec.FileName,
		Status:       constants.DocumentStatus(rec.Status),
		PageCount:    int(rec.PageCount),
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt.UTC(),
		UpdatedAt:    rec.UpdatedAt.UTC(),
		Submittals:   make([]entity.Submittal, 0, len(rec.Submittals)),
	}
	if rec.Fields != nil {
		doc.Fields = make(entity.Fields, len(rec.Fields))
		for k, v := range rec.Fields {
			if s, ok := v.(string); ok {
				doc.Fields[k] = &s
			} else {
				doc.Fields[k] = nil
			}
		}
	}
	for _, m := range rec.Submittals {
		sub := entity.Submittal{}
		sub.Item, _ = m["item"].(string)
		sub.Reason, _ = m["reason"].(string)
		if p, ok := m["page"].(int64); ok {
			n := int(p)
			sub.Page = &n
		}
		doc.Submittals = append(doc.Submittals, sub)
	}
	return doc, nil
}

func isDomainError(err error) bool {
	return errors.Is(err, common.ErrRecordNotFound) || errors.Is(err, common.ErrInvalidStatusTransition)
}
