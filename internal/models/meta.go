// Package models defines the versioned record types synchronized between the
// local store and the remote store, and the Dataset envelope that groups them
// by entity type.
package models

import (
	"time"

	"github.com/tallybook/tallybook/internal/common"
)

// DateLayout is the wire format for user-entered dates. Dates are kept as
// strings because they originate from other clients and may be malformed;
// parse failures must stay local to the record that carries them.
const DateLayout = "2006-01-02"

// Meta is the versioned-record envelope every synchronized entity embeds.
//
// Version starts at 1 and is bumped by exactly 1 on every local mutation.
// Deleted is a tombstone: deleted records stay in storage and participate in
// merges, but are filtered out of live views. Conflicted is transient state
// set by the merge resolver and cleared by the next clean mutation.
type Meta struct {
	ID           string    `json:"id"`
	Version      int64     `json:"version"`
	LastModified time.Time `json:"lastModified"`
	Deleted      bool      `json:"deleted"`
	Conflicted   bool      `json:"conflicted,omitempty"`
}

// Key returns the record's logical key. Entities with a composite key shadow
// this method. An underivable key is a malformed record.
func (m Meta) Key() (string, error) {
	if m.ID == "" {
		return "", common.ErrMalformedRecord
	}
	return m.ID, nil
}

// MetaRef exposes the embedded envelope for the mutation path and the merge
// resolver. Promoted to every entity's pointer type.
func (m *Meta) MetaRef() *Meta { return m }

// ParseDate parses a YYYY-MM-DD string in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
