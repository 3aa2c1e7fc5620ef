package models

// StoredRecord is the persisted form of a transport record. CreatedAt is the
// writer-assigned logical timestamp, not a database-managed column.
type StoredRecord struct {
	ID         string `gorm:"type:varchar(64);primaryKey" json:"id"`
	Kind       string `gorm:"type:varchar(32);index" json:"kind"`
	LogicalKey string `gorm:"index" json:"key"`
	Owner      string `gorm:"type:varchar(64);index" json:"owner"`
	CreatedAt  int64  `gorm:"autoCreateTime:false" json:"created_at"`
	Tags       []byte `json:"tags"` // JSON-encoded tag map
	Content    []byte `json:"content"`
}
