package repository

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
)

// SQLStore keeps documents in a relational database (Postgres or SQLite)
// through ent's dialect-aware query builders.
type SQLStore struct {
	drv     *entsql.Driver
	db      *stdsql.DB
	b       *entsql.DialectBuilder
	onClose func()
	logger  *slog.Logger
	opts    options
}

var _ DocumentRepository = (*SQLStore)(nil)

// NewSQLStore migrates the documents table and returns the store. onClose,
// if set, runs after the driver is closed (e.g. closing a pgx pool).
func NewSQLStore(ctx context.Context, drv *entsql.Driver, onClose func(), logger *slog.Logger, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		drv:     drv,
		db:      drv.DB(),
		b:       entsql.Dialect(drv.Dialect()),
		onClose: onClose,
		logger:  logger,
		opts:    buildOptions(opts),
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates or alters the documents table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		s.logger.Error("schema migration failed", "dialect", s.drv.Dialect(), "error", err)
		return fmt.Errorf("migrate documents: %w", err)
	}
	s.logger.Info("schema migrated", "dialect", s.drv.Dialect())
	return nil
}

func (s *SQLStore) Create(ctx context.Context, fileName string) (string, error) {
	id := s.opts.newID()
	now := s.opts.now().UTC()

	q, args := s.b.Insert(documentsTableName).
		Columns(documentColumns...).
		Values(id, fileName, string(constants.StatusPending), nil, "[]", 0, nil, now, now).
		Query()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.logger.Error("document create failed", "file_name", fileName, "error", err)
		return "", common.StoreWriteError("create document", err)
	}
	s.logger.Info("document created", "doc_id", id, "file_name", fileName)
	return id, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*entity.Document, error) {
	q, args := s.b.Select(documentColumns...).
		From(s.b.Table(documentsTableName)).
		Where(entsql.EQ("id", id)).
		Query()
	doc, err := scanDocument(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, common.ErrRecordNotFound
	}
	if err != nil {
		s.logger.Error("document get failed", "doc_id", id, "error", err)
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *SQLStore) Update(ctx context.Context, id string, u entity.DocumentUpdate) error {
	ub := s.b.Update(documentsTableName).Set("updated_at", s.opts.now().UTC())
	if u.Status != nil {
		ub.Set("status", string(*u.Status))
	}
	if u.Fields != nil {
		raw, err := encodeFields(u.Fields)
		if err != nil {
			return common.StoreWriteError("update document", err)
		}
		ub.Set("fields", *raw)
	}
	if u.Submittals != nil {
		raw, err := encodeSubmittals(*u.Submittals)
		if err != nil {
			return common.StoreWriteError("update document", err)
		}
		ub.Set("submittals", raw)
	}
	if u.PageCount != nil {
		ub.Set("page_count", *u.PageCount)
	}
	if u.ErrorMessage != nil {
		ub.Set("error_message", *u.ErrorMessage)
	}

	// The status guard lives in the WHERE clause so the check and the write are one statement.
	pred := entsql.EQ("id", id)
	if u.Status != nil {
		preds := constants.Predecessors(*u.Status)
		if len(preds) == 0 {
			return s.missingOr(ctx, id, common.ErrInvalidStatusTransition)
		}
		from := make([]any, len(preds))
		for i, p := range preds {
			from[i] = string(p)
		}
		pred = entsql.And(pred, entsql.In("status", from...))
	}

	q, args := ub.Where(pred).Query()
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		s.logger.Error("document update failed", "doc_id", id, "error", err)
		return common.StoreWriteError("update document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.StoreWriteError("update document", err)
	}
	if n == 0 {
		return s.missingOr(ctx, id, common.ErrInvalidStatusTransition)
	}
	if u.Status != nil {
		s.logger.Info("document status updated", "doc_id", id, "status", *u.Status)
	}
	return nil
}

// missingOr returns ErrRecordNotFound when id does not exist, otherwise err.
func (s *SQLStore) missingOr(ctx context.Context, id string, err error) error {
	doc, gerr := s.Get(ctx, id)
	if gerr != nil {
		return gerr
	}
	return fmt.Errorf("%w: document %s is %s", err, id, doc.Status)
}

func (s *SQLStore) ListSummaries(ctx context.Context) ([]entity.DocumentSummary, error) {
	q, args := s.b.Select("id", "file_name", "created_at", "status").
		From(s.b.Table(documentsTableName)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logger.Error("document list failed", "error", err)
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []entity.DocumentSummary{}
	for rows.Next() {
		var (
			sum    entity.DocumentSummary
			status string
		)
		if err := rows.Scan(&sum.ID, &sum.FileName, &sum.CreatedAt, &status); err != nil {
			return nil, fmt.Errorf("scan document summary: %w", err)
		}
		sum.Status = constants.DocumentStatus(status)
		sum.CreatedAt = sum.CreatedAt.UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return HealthCheck(ctx, s.db, 2*time.Second, s.logger)
}

func (s *SQLStore) Close() error {
	err := s.drv.Close()
	if s.onClose != nil {
		s.onClose()
	}
	if err != nil {
		s.logger.Error("failed to close database", "error", err)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc        entity.Document
		status     string
		fields     stdsql.NullString
		submittals stdsql.NullString
		errMsg     stdsql.NullString
	)
	if err := row.Scan(&doc.ID, &doc.FileName, &status, &fields, &submittals,
		&doc.PageCount, &errMsg, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Status = constants.DocumentStatus(status)
	doc.ErrorMessage = errMsg.String
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()

	var err error
	if doc.Fields, err = decodeFields(fields.String); err != nil {
		return nil, err
	}
	if doc.Submittals, err = decodeSubmittals(submittals.String); err != nil {
		return nil, err
	}
	return &doc, nil
}
