package modapi

// ActionRequest is posted to moderation/incident/<id>.
type ActionRequest struct {
	ID          int64   `json:"id"`
	Action      string  `json:"action"`
	Note        *string `json:"note,omitempty"`
	ModeratorID int64   `json:"moderator_id,omitempty"`
}

// PlayerPage is one page of the players listing.
type PlayerPage struct {
	Count   int         `json:"count"`
	Next    string      `json:"next,omitempty"`
	Results []PlayerRef `json:"results"`
}

// NoteBody and AssignBody are the desk endpoint payloads.
type NoteBody struct {
	Note string `json:"note"`
}

type AssignBody struct {
	ModeratorID int64 `json:"moderator_id"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
