package modapi

import "time"

type PlayerRef struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Ranking      *int   `json:"ranking,omitempty"`
	Professional bool   `json:"professional,omitempty"`
	IsModerator  bool   `json:"is_moderator,omitempty"`
}

type NoteTranslation struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	SourceText     string `json:"source_text"`
	TargetText     string `json:"target_text"`
}

type Conversation struct {
	Content []string `json:"content"`
}

// Report is an incident report as the moderation endpoints return it.
type Report struct {
	ID                      int64            `json:"id"`
	ReportType              string           `json:"report_type"`
	State                   string           `json:"state"`
	Created                 time.Time        `json:"created"`
	Moderator               *PlayerRef       `json:"moderator"`
	ReportedUser            *PlayerRef       `json:"reported_user"`
	ReportingUser           *PlayerRef       `json:"reporting_user"`
	ReporterNote            string           `json:"reporter_note"`
	ReporterNoteTranslation *NoteTranslation `json:"reporter_note_translation,omitempty"`
	SystemNote              string           `json:"system_note"`
	ModeratorNote           string           `json:"moderator_note"`
	URL                     string           `json:"url"`
	ReportedGame            int64            `json:"reported_game,omitempty"`
	ReportedReview          int64            `json:"reported_review,omitempty"`
	ReportedConversation    *Conversation    `json:"reported_conversation,omitempty"`
}
