package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
)

// MemoryStore is a process-local DocumentRepository used in tests and
// single-instance development runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*memoryRecord
	seq  int
	opts options
}

type memoryRecord struct {
	doc entity.Document
	seq int
}

var _ DocumentRepository = (*MemoryStore)(nil)

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*memoryRecord),
		opts: buildOptions(opts),
	}
}

func (m *MemoryStore) Create(_ context.Context, fileName string) (string, error) {
	id := m.opts.newID()
	now := m.opts.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[id]; exists {
		return "", common.StoreWriteError("create document", fmt.Errorf("duplicate id %s", id))
	}
	m.seq++
	m.docs[id] = &memoryRecord{
		seq: m.seq,
		doc: entity.Document{
			ID:         id,
			FileName:   fileName,
			Status:     constants.StatusPending,
			Submittals: []entity.Submittal{},
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
	return id, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*entity.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.docs[id]
	if !ok {
		return nil, common.ErrRecordNotFound
	}
	return copyDocument(&rec.doc), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, u entity.DocumentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[id]
	if !ok {
		return common.ErrRecordNotFound
	}
	if u.Status != nil && !constants.CanTransition(rec.doc.Status, *u.Status) {
		return fmt.Errorf("%w: document %s is %s", common.ErrInvalidStatusTransition, id, rec.doc.Status)
	}
	u.Apply(&rec.doc)
	rec.doc.UpdatedAt = m.opts.now().UTC()
	return nil
}

func (m *MemoryStore) ListSummaries(_ context.Context) ([]entity.DocumentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := make([]*memoryRecord, 0, len(m.docs))
	for _, r := range m.docs {
		recs = append(recs, r)
	}

	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			return a.doc.CreatedAt.After(b.doc.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]entity.DocumentSummary, len(recs))
	for i, r := range recs {
		out[i] = entity.DocumentSummary{
			ID:        r.doc.ID,
			FileName:  r.doc.FileName,
			CreatedAt: r.doc.CreatedAt,
			Status:    r.doc.Status,
		}
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func copyDocument(d *entity.Document) *entity.Document {
	out := *d
	out.Fields = d.Fields.Clone()
	out.Submittals = make([]entity.Submittal, len(d.Submittals))
	for i, s := range d.Submittals {
		if s.Page != nil {
			p := *s.Page
			s.Page = &p
		}
		out.Submittals[i] = s
	}
	return &out
}
