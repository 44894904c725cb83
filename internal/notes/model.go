package notes

import "time"

// NoteStatus tracks where a note is in its lifecycle.
type NoteStatus string

const (
	StatusPending    NoteStatus = "pending"
	StatusProcessing NoteStatus = "processing"
	StatusCompleted  NoteStatus = "completed"
	StatusFailed     NoteStatus = "failed"
)

// Note models one persisted recording, finished or failed. The style
// fields are snapshots taken at creation time so catalog edits never
// rewrite history. A failed note carries empty content/transcript, a
// non-null last_error, and the path of the audio uploaded before the
// failure.
type Note struct {
	ID                string     `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	UserID            string     `gorm:"column:user_id;size:190;not null;index:idx_notes_user_status,priority:1" json:"user_id"`
	StyleID           string     `gorm:"column:style_id;size:64;not null" json:"style_id"`
	StyleName         string     `gorm:"column:style_name;size:190;not null" json:"style_name"`
	StyleDescription  string     `gorm:"column:style_description;type:text;not null" json:"style_description"`
	Title             string     `gorm:"column:title;size:512;not null" json:"title"`
	Content           string     `gorm:"column:content;type:text;not null" json:"content"`
	Transcript        string     `gorm:"column:transcript;type:text;not null" json:"transcript"`
	TranscriptSummary *string    `gorm:"column:transcript_summary;type:text" json:"transcript_summary"`
	AudioPath         string     `gorm:"column:audio_path;size:512;not null" json:"audio_path"`
	AudioMIMEType     string     `gorm:"column:audio_mime_type;size:128;not null" json:"audio_mime_type"`
	Status            NoteStatus `gorm:"column:status;size:32;not null;index:idx_notes_user_status,priority:2" json:"status"`
	LastError         *string    `gorm:"column:last_error;type:text" json:"last_error"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}
