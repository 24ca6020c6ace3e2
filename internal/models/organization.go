package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Organization is a tenant. Each tenant may carry its own pre-authorization
// key and the tags and group applied to devices joining through it.
type Organization struct {
	ID             string      `gorm:"primaryKey;type:varchar(36)"     json:"id"`
	Name           string      `gorm:"type:varchar(255);uniqueIndex"   json:"name"`
	TailnetAuthKey string      `gorm:"type:varchar(255)"               json:"-"`
	TailnetTags    StringArray `gorm:"type:json"                       json:"tailnet_tags"`
	TailnetGroup   string      `gorm:"type:varchar(100)"               json:"tailnet_group,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Organization) TableName() string {
	return "organizations"
}

// StringArray is a []string stored as a JSON column.
type StringArray []string

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = StringArray{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to unmarshal StringArray value")
	}
	return json.Unmarshal(raw, s)
}

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
