package repository

import (
	"context"
	"time"

	"github.com/joseph-ayodele/tender-extractor/internal/entity"
)

// DocumentRepository persists tender documents and their extraction results.
//
// Update enforces forward-only status moves (see constants.CanTransition) and
// returns common.ErrInvalidStatusTransition otherwise. Get and Update return
// common.ErrRecordNotFound for unknown ids. Write failures match
// common.ErrStoreWrite.
type DocumentRepository interface {
	Create(ctx context.Context, fileName string) (string, error)
	Get(ctx context.Context, id string) (*entity.Document, error)
	Update(ctx context.Context, id string, u entity.DocumentUpdate) error
	ListSummaries(ctx context.Context) ([]entity.DocumentSummary, error)
	Ping(ctx context.Context) error
	Close() error
}

type options struct {
	now   func() time.Time
	newID func() string
}

// Option configures a store.
type Option func(*options)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		newID: newDocumentID,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
