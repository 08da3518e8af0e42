package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Note is one entry of a line's note log.
type Note struct {
	At      time.Time `json:"timestamp"`
	Actor   string    `json:"actor"`
	Content string    `json:"content"`
}

// QtyChange records a revision of a line's quantity.
type QtyChange struct {
	At     time.Time `json:"timestamp"`
	Actor  string    `json:"actor"`
	Old    int       `json:"old"`
	New    int       `json:"new"`
	Reason string    `json:"reason"`
}

// NoteLog is an append-only list of notes. Append returns a new log; the
// entries of a log are never modified in place.
type NoteLog struct {
	entries []Note
}

func NewNoteLog(notes ...Note) NoteLog {
	return NoteLog{entries: append([]Note(nil), notes...)}
}

func (l NoteLog) Append(n Note) NoteLog {
	out := make([]Note, len(l.entries), len(l.entries)+1)
	copy(out, l.entries)
	return NoteLog{entries: append(out, n)}
}

func (l NoteLog) Len() int { return len(l.entries) }

func (l NoteLog) Entries() []Note {
	return append([]Note(nil), l.entries...)
}

func (l NoteLog) Last() (Note, bool) {
	if len(l.entries) == 0 {
		return Note{}, false
	}
	return l.entries[len(l.entries)-1], true
}

func (l NoteLog) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

func (l *NoteLog) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &l.entries)
}

func (l NoteLog) Value() (driver.Value, error) {
	b, err := l.MarshalJSON()
	return string(b), err
}

func (l *NoteLog) Scan(value interface{}) error {
	b, err := jsonBytes(value)
	if err != nil || b == nil {
		return err
	}
	return l.UnmarshalJSON(b)
}

func (NoteLog) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}

// QtyChangeLog is the append-only quantity revision history of a line.
type QtyChangeLog struct {
	entries []QtyChange
}

func (l QtyChangeLog) Append(c QtyChange) QtyChangeLog {
	out := make([]QtyChange, len(l.entries), len(l.entries)+1)
	copy(out, l.entries)
	return QtyChangeLog{entries: append(out, c)}
}

func (l QtyChangeLog) Len() int { return len(l.entries) }

func (l QtyChangeLog) Entries() []QtyChange {
	return append([]QtyChange(nil), l.entries...)
}

func (l QtyChangeLog) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

func (l *QtyChangeLog) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &l.entries)
}

func (l QtyChangeLog) Value() (driver.Value, error) {
	b, err := l.MarshalJSON()
	return string(b), err
}

func (l *QtyChangeLog) Scan(value interface{}) error {
	b, err := jsonBytes(value)
	if err != nil || b == nil {
		return err
	}
	return l.UnmarshalJSON(b)
}

func (QtyChangeLog) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to audit log", value)
	}
}

func jsonColumnType(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	case "sqlserver":
		return "NVARCHAR(MAX)"
	}
	return "TEXT"
}
