package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/types"
)

// Document is one stored record. Data is the raw JSON payload; timestamps
// are store-assigned on create and update.
type Document struct {
	Path      string          `json:"path"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Condition is one field/operator/value triple of a conjunctive query.
type Condition struct {
	Field string
	Op    string
	Value interface{}
}

const (
	OpEq  = "=="
	OpNeq = "!="
	OpLt  = "<"
	OpLte = "<="
	OpGt  = ">"
	OpGte = ">="
)

var sqlOps = map[string]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpLt:  "<",
	OpLte: "<=",
	OpGt:  ">",
	OpGte: ">=",
}

type queryOptions struct {
	orderField string
	orderDesc  bool
	limit      int
}

type QueryOption func(*queryOptions)

func OrderBy(field string, desc bool) QueryOption {
	return func(o *queryOptions) {
		o.orderField = field
		o.orderDesc = desc
	}
}

func Limit(n int) QueryOption {
	return func(o *queryOptions) { o.limit = n }
}

type WriteKind string

const (
	WriteCreate WriteKind = "create"
	WriteUpdate WriteKind = "update"
	WriteDelete WriteKind = "delete"
)

type WriteOp struct {
	Kind  WriteKind
	Path  string
	DocID string
	Data  interface{}
}

// Store is the hierarchical document store consumed by the persistence
// router and the subscription manager. Read returns (nil, nil) for an
// absent document; absence is a normal result, not a failure. All failures
// surface as *StoreError and are never swallowed at this layer.
type Store interface {
	Create(ctx context.Context, path, id string, data interface{}) error
	Read(ctx context.Context, path, id string) (*Document, error)
	Update(ctx context.Context, path, id string, partial map[string]interface{}) error
	Delete(ctx context.Context, path, id string) error
	Query(ctx context.Context, path string, conds []Condition, opts ...QueryOption) ([]Document, error)
	BatchWrite(ctx context.Context, ops []WriteOp) error
	Subscribe(target Target, onChange func(ev ChangeEvent), onError func(err error)) (func(), error)
}

type gormStore struct {
	db       *gorm.DB
	notifier Notifier
	log      *logger.Logger
	subs     *subscriptionSet
}

func NewGormStore(db *gorm.DB, notifier Notifier, baseLog *logger.Logger) *gormStore {
	return &gormStore{
		db:       db,
		notifier: notifier,
		log:      baseLog.With("repo", "DocumentStore"),
		subs:     newSubscriptionSet(),
	}
}

// Start wires the notifier's event feed into subscription dispatch. Call
// once after construction; events arriving before Start are dropped by the
// notifier.
func (s *gormStore) Start(ctx context.Context) error {
	return s.notifier.Start(ctx, s.dispatch)
}

func (s *gormStore) Create(ctx context.Context, path, id string, data interface{}) error {
	const op = "create"
	if err := validateCollectionPath(path); err != nil {
		return validationErr(op, path, id, err)
	}
	if err := validateDocID(id); err != nil {
		return validationErr(op, path, id, err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return validationErr(op, path, id, err)
	}

	row := &types.DocumentRow{Path: path, DocID: id, Data: datatypes.JSON(raw)}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return wrapErr(op, path, id, err)
	}
	s.publish(ctx, ChangeEvent{Path: path, DocID: id, Kind: ChangeCreated})
	return nil
}

func (s *gormStore) Read(ctx context.Context, path, id string) (*Document, error) {
	const op = "read"
	if err := validateCollectionPath(path); err != nil {
		return nil, validationErr(op, path, id, err)
	}
	if err := validateDocID(id); err != nil {
		return nil, validationErr(op, path, id, err)
	}

	var row types.DocumentRow
	err := s.db.WithContext(ctx).
		Where("path = ? AND doc_id = ?", path, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(op, path, id, err)
	}
	return rowToDocument(&row), nil
}

func (s *gormStore) Update(ctx context.Context, path, id string, partial map[string]interface{}) error {
	const op = "update"
	if err := validateCollectionPath(path); err != nil {
		return validationErr(op, path, id, err)
	}
	if err := validateDocID(id); err != nil {
		return validationErr(op, path, id, err)
	}
	if len(partial) == 0 {
		return validationErr(op, path, id, fmt.Errorf("empty partial update"))
	}
	raw, err := json.Marshal(partial)
	if err != nil {
		return validationErr(op, path, id, err)
	}

	res := s.db.WithContext(ctx).
		Model(&types.DocumentRow{}).
		Where("path = ? AND doc_id = ?", path, id).
		Updates(map[string]interface{}{
			"data":       gorm.Expr("data || ?::jsonb", string(raw)),
			"updated_at": gorm.Expr("now()"),
		})
	if res.Error != nil {
		return wrapErr(op, path, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundErr(op, path, id)
	}
	s.publish(ctx, ChangeEvent{Path: path, DocID: id, Kind: ChangeUpdated})
	return nil
}

func (s *gormStore) Delete(ctx context.Context, path, id string) error {
	const op = "delete"
	if err := validateCollectionPath(path); err != nil {
		return validationErr(op, path, id, err)
	}
	if err := validateDocID(id); err != nil {
		return validationErr(op, path, id, err)
	}

	res := s.db.WithContext(ctx).
		Where("path = ? AND doc_id = ?", path, id).
		Delete(&types.DocumentRow{})
	if res.Error != nil {
		return wrapErr(op, path, id, res.Error)
	}
	if res.RowsAffected > 0 {
		s.publish(ctx, ChangeEvent{Path: path, DocID: id, Kind: ChangeDeleted})
	}
	return nil
}

func (s *gormStore) Query(ctx context.Context, path string, conds []Condition, opts ...QueryOption) ([]Document, error) {
	const op = "query"
	if err := validateCollectionPath(path); err != nil {
		return nil, validationErr(op, path, "", err)
	}
	var qo queryOptions
	for _, apply := range opts {
		apply(&qo)
	}

	q := s.db.WithContext(ctx).
		Model(&types.DocumentRow{}).
		Where("path = ?", path)

	for _, c := range conds {
		frag, arg, err := conditionSQL(c)
		if err != nil {
			return nil, validationErr(op, path, "", err)
		}
		q = q.Where(frag, arg)
	}

	if qo.orderField != "" {
		if !fieldPattern.MatchString(qo.orderField) {
			return nil, validationErr(op, path, "", fmt.Errorf("invalid order field %q", qo.orderField))
		}
		dir := "ASC"
		if qo.orderDesc {
			dir = "DESC"
		}
		q = q.Order(fmt.Sprintf("data->>'%s' %s", qo.orderField, dir))
	}
	if qo.limit > 0 {
		q = q.Limit(qo.limit)
	}

	var rows []types.DocumentRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrapErr(op, path, "", err)
	}
	out := make([]Document, 0, len(rows))
	for i := range rows {
		out = append(out, *rowToDocument(&rows[i]))
	}
	return out, nil
}

// BatchWrite applies every operation in one transaction: all visible or
// none. Operations are validated up front so a malformed op cannot abort a
// half-applied batch.
func (s *gormStore) BatchWrite(ctx context.Context, ops []WriteOp) error {
	const op = "batch_write"
	if len(ops) == 0 {
		return nil
	}

	type prepared struct {
		kind  WriteKind
		path  string
		docID string
		raw   []byte
	}
	preps := make([]prepared, 0, len(ops))
	for _, w := range ops {
		if err := validateCollectionPath(w.Path); err != nil {
			return validationErr(op, w.Path, w.DocID, err)
		}
		if err := validateDocID(w.DocID); err != nil {
			return validationErr(op, w.Path, w.DocID, err)
		}
		p := prepared{kind: w.Kind, path: w.Path, docID: w.DocID}
		switch w.Kind {
		case WriteCreate, WriteUpdate:
			raw, err := json.Marshal(w.Data)
			if err != nil {
				return validationErr(op, w.Path, w.DocID, err)
			}
			p.raw = raw
		case WriteDelete:
		default:
			return validationErr(op, w.Path, w.DocID, fmt.Errorf("unknown write kind %q", w.Kind))
		}
		preps = append(preps, p)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range preps {
			switch p.kind {
			case WriteCreate:
				row := &types.DocumentRow{Path: p.path, DocID: p.docID, Data: datatypes.JSON(p.raw)}
				if err := tx.Create(row).Error; err != nil {
					return wrapErr(op, p.path, p.docID, err)
				}
			case WriteUpdate:
				res := tx.Model(&types.DocumentRow{}).
					Where("path = ? AND doc_id = ?", p.path, p.docID).
					Updates(map[string]interface{}{
						"data":       gorm.Expr("data || ?::jsonb", string(p.raw)),
						"updated_at": gorm.Expr("now()"),
					})
				if res.Error != nil {
					return wrapErr(op, p.path, p.docID, res.Error)
				}
				if res.RowsAffected == 0 {
					return notFoundErr(op, p.path, p.docID)
				}
			case WriteDelete:
				if err := tx.Where("path = ? AND doc_id = ?", p.path, p.docID).
					Delete(&types.DocumentRow{}).Error; err != nil {
					return wrapErr(op, p.path, p.docID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return wrapErr(op, "", "", err)
	}

	for _, p := range preps {
		kind := ChangeCreated
		switch p.kind {
		case WriteUpdate:
			kind = ChangeUpdated
		case WriteDelete:
			kind = ChangeDeleted
		}
		s.publish(ctx, ChangeEvent{Path: p.path, DocID: p.docID, Kind: kind})
	}
	return nil
}

// publish failures never fail the committed write; the write is durable and
// subscribers self-heal on the next event.
func (s *gormStore) publish(ctx context.Context, ev ChangeEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.log.Warn("change event publish failed",
			"path", ev.Path, "doc_id", ev.DocID, "kind", string(ev.Kind), "error", err)
	}
}

func rowToDocument(row *types.DocumentRow) *Document {
	return &Document{
		Path:      row.Path,
		ID:        row.DocID,
		Data:      json.RawMessage(row.Data),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// conditionSQL renders one condition against the JSONB payload. Field names
// are whitelisted by pattern because they are interpolated into the
// fragment; values always travel as bind parameters.
func conditionSQL(c Condition) (string, interface{}, error) {
	if !fieldPattern.MatchString(c.Field) {
		return "", nil, fmt.Errorf("invalid condition field %q", c.Field)
	}
	sqlOp, ok := sqlOps[c.Op]
	if !ok {
		return "", nil, fmt.Errorf("unsupported condition operator %q", c.Op)
	}
	switch v := c.Value.(type) {
	case string:
		return fmt.Sprintf("data->>'%s' %s ?", c.Field, sqlOp), v, nil
	case bool:
		return fmt.Sprintf("(data->>'%s')::boolean %s ?", c.Field, sqlOp), v, nil
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("(data->>'%s')::numeric %s ?", c.Field, sqlOp), v, nil
	default:
		return "", nil, fmt.Errorf("unsupported condition value type %T", c.Value)
	}
}
