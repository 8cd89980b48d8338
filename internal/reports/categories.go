package reports

type Category struct {
	Type        string
	Title       string
	Description string
}

var categories = []Category{
	{Type: "stalling", Title: "Stalling", Description: "Opponent is stalling the game."},
	{Type: "inappropriate_content", Title: "Inappropriate Content", Description: "Offensive content in chat, names or reviews."},
	{Type: "harassment", Title: "Harassment", Description: "Targeted abuse of a player."},
	{Type: "score_cheating", Title: "Score Cheating", Description: "Dead stones marked alive or vice versa."},
	{Type: "sandbagging", Title: "Sandbagging", Description: "Deliberately losing to lower rank."},
	{Type: "escaping", Title: "Stopped Playing", Description: "Opponent left the game without resigning."},
	{Type: "ai_use", Title: "AI Use", Description: "Suspected use of AI assistance."},
	{Type: "appeal", Title: "Ban Appeal", Description: "A suspended player asks for review."},
	{Type: "other", Title: "Other", Description: "Anything else."},
}

// CategoryFor looks up a report type. Unknown types return false.
func CategoryFor(reportType string) (Category, bool) {
	for _, c := range categories {
		if c.Type == reportType {
			return c, true
		}
	}
	return Category{}, false
}

func Categories() []Category {
	return append([]Category(nil), categories...)
}
