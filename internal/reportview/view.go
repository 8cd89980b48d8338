package reportview

import (
	"math"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
	"github.com/park285/goban-desk/internal/reports"
)

// SelectOption is one entry of a select box.
type SelectOption struct {
	ID       int64
	Label    string
	Selected bool
}

type Translation struct {
	Source    string
	Languages string
	Target    string
}

type Labels struct {
	AllDone        string
	Newer          string
	Older          string
	ModeratorHint  string
	ReportedUser   string
	ReportedBy     string
	ReporterNotes  string
	SystemNotes    string
	ModeratorNotes string
	Review         string
	Claim          string
	Unclaim        string
	Good           string
	Bad            string
	Reopen         string
	Ignore         string
}

// View is the rendered projection of the viewer.
type View struct {
	Empty bool
	Error string

	ReportID      int64
	Header        string
	InList        bool
	ReportOptions []SelectOption
	NewerID       int64
	OlderID       int64
	Moderators    []SelectOption
	Actions       Actions

	Category      string
	When          string
	ReportedUser  string
	ReportingUser string
	ReporterNote  string
	Translation   *Translation
	SystemNote    string
	ModeratorNote string
	URL           string
	ReportedGame  int64
	Review        int64
	Appeal        bool
	Conversation  []string

	Labels Labels
}

func shortID(id int64) string {
	s := strconv.FormatInt(id, 10)
	if len(s) > 3 {
		s = s[len(s)-3:]
	}
	return "R" + s
}

func (v *Viewer) View() View {
	v.mu.Lock()
	s := v.state
	ids := append([]int64(nil), v.reports...)
	mods := v.moderators
	me := v.me
	v.mu.Unlock()

	out := View{Labels: v.labels()}
	if s.Error != "" {
		out.Error = s.Error
		return out
	}
	r := s.Confirmed
	if r == nil {
		out.Empty = true
		return out
	}

	out.ReportID = r.ID
	out.Header = shortID(r.ID)
	out.InList = contains(ids, r.ID)
	if out.InList {
		for _, id := range ids {
			out.ReportOptions = append(out.ReportOptions, SelectOption{ID: id, Label: shortID(id), Selected: id == r.ID})
		}
	}
	out.NewerID, out.OlderID = Neighbors(ids, r.ID)

	modID := s.EffectiveModeratorID()
	for _, m := range mods {
		out.Moderators = append(out.Moderators, SelectOption{ID: m.ID, Label: m.Username, Selected: m.ID == modID})
	}
	out.Actions = availableActions(s, me)

	if c, ok := reports.CategoryFor(r.ReportType); ok {
		out.Category = c.Title
	}
	if !r.Created.IsZero() {
		out.When = fromNow(r.Created, v.now())
	}
	if r.ReportedUser != nil {
		out.ReportedUser = r.ReportedUser.Username
	}
	if r.ReportingUser != nil {
		out.ReportingUser = r.ReportingUser.Username
	}
	out.ReporterNote = r.ReporterNote
	if t := r.ReporterNoteTranslation; t != nil {
		out.ReporterNote = t.SourceText
		tr := &Translation{Source: t.SourceText}
		if t.SourceLanguage != t.TargetLanguage {
			tr.Languages = t.SourceLanguage + " => " + t.TargetLanguage
			tr.Target = t.TargetText
		}
		out.Translation = tr
	}
	out.SystemNote = r.SystemNote
	if me.IsModerator {
		out.ModeratorNote = s.Note
	}
	out.URL = r.URL
	out.ReportedGame = r.ReportedGame
	out.Review = r.ReportedReview
	out.Appeal = r.ReportType == "appeal"
	if r.ReportedConversation != nil {
		out.Conversation = append([]string(nil), r.ReportedConversation.Content...)
	}
	return out
}

func (v *Viewer) labels() Labels {
	t := func(k string) string { return v.cat.Text(k, nil) }
	return Labels{
		AllDone:        t("report.all_done"),
		Newer:          t("report.newer"),
		Older:          t("report.older"),
		ModeratorHint:  t("report.moderator_placeholder"),
		ReportedUser:   t("report.reported_user"),
		ReportedBy:     t("report.reported_by"),
		ReporterNotes:  t("report.reporter_notes"),
		SystemNotes:    t("report.system_notes"),
		ModeratorNotes: t("report.moderator_notes"),
		Review:         t("report.review"),
		Claim:          t("report.action.claim"),
		Unclaim:        t("report.action.unclaim"),
		Good:           t("report.action.good"),
		Bad:            t("report.action.bad"),
		Reopen:         t("report.action.reopen"),
		Ignore:         t("report.action.ignore"),
	}
}

var relMagnitudes = []humanize.RelTimeMagnitude{
	{D: 45 * time.Second, Format: "a few seconds %s", DivBy: 1},
	{D: 2 * time.Minute, Format: "a minute %s", DivBy: 1},
	{D: 45 * time.Minute, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "an hour %s", DivBy: 1},
	{D: 22 * time.Hour, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "a day %s", DivBy: 1},
	{D: 26 * humanize.Day, Format: "%d days %s", DivBy: humanize.Day},
	{D: 2 * humanize.Month, Format: "a month %s", DivBy: 1},
	{D: 320 * humanize.Day, Format: "%d months %s", DivBy: humanize.Month},
	{D: 2 * humanize.Year, Format: "a year %s", DivBy: 1},
	{D: math.MaxInt64, Format: "%d years %s", DivBy: 365 * humanize.Day},
}

// fromNow renders a coarse relative time.
func fromNow(t, now time.Time) string {
	return humanize.CustomRelTime(t, now, "ago", "from now", relMagnitudes)
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

func gameURL(id int64) templ.SafeURL { return templ.SafeURL("/game/" + formatID(id)) }

func reviewURL(id int64) templ.SafeURL { return templ.SafeURL("/review/" + formatID(id)) }

func boardSrc(id int64) string { return "/games/" + formatID(id) + "/board.png" }
