package storage

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"voucher-node/internal/storage/models"
	"voucher-node/internal/transport"
)

// Endpoint makes the node's own database one of the pool's replicas, so every
// published record survives locally even when all remote relays are down.
type Endpoint struct {
	name string
	db   *gorm.DB
}

// NewEndpoint wraps a gorm handle as a transport endpoint.
func NewEndpoint(name string, db *gorm.DB) *Endpoint {
	return &Endpoint{name: name, db: db}
}

func (e *Endpoint) Name() string { return e.name }

// Publish upserts the record by its content-derived ID.
func (e *Endpoint) Publish(ctx context.Context, rec transport.Record) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return errors.Wrap(err, "encode record tags")
	}
	row := models.StoredRecord{
		ID:         rec.ID,
		Kind:       rec.Kind,
		LogicalKey: rec.Key,
		Owner:      rec.Owner,
		CreatedAt:  rec.CreatedAt,
		Tags:       tags,
		Content:    rec.Content,
	}
	return e.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// Query loads every matching record.
func (e *Endpoint) Query(ctx context.Context, sel transport.Selector) ([]transport.Record, error) {
	q := e.db.WithContext(ctx).Model(&models.StoredRecord{})
	if len(sel.Kinds) > 0 {
		q = q.Where("kind IN ?", sel.Kinds)
	}
	if len(sel.Keys) > 0 {
		q = q.Where("logical_key IN ?", sel.Keys)
	}
	if len(sel.Owners) > 0 {
		q = q.Where("owner IN ?", sel.Owners)
	}
	if sel.Limit > 0 {
		q = q.Limit(sel.Limit)
	}
	var rows []models.StoredRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]transport.Record, 0, len(rows))
	for _, row := range rows {
		var tags map[string]string
		if len(row.Tags) > 0 {
			if err := json.Unmarshal(row.Tags, &tags); err != nil {
				return nil, errors.Wrapf(err, "decode tags of record %s", row.ID)
			}
		}
		out = append(out, transport.Record{
			ID:        row.ID,
			Kind:      row.Kind,
			Key:       row.LogicalKey,
			Owner:     row.Owner,
			CreatedAt: row.CreatedAt,
			Tags:      tags,
			Content:   row.Content,
		})
	}
	return out, nil
}
