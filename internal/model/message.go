package model

// Button is a quick-reply option. Platforms cap titles at 20 characters and
// buttons at three per message.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

type ListMessage struct {
	Header      string        `json:"header"`
	Body        string        `json:"body"`
	ButtonLabel string        `json:"buttonLabel"`
	Sections    []ListSection `json:"sections"`
}

const (
	MaxButtons     = 3
	MaxButtonTitle = 20
	MaxListRows    = 10
	MaxRowTitle    = 24
)

// MainActions are the three primary options offered from the menu.
func MainActions() []Button {
	return []Button{
		{ID: "find_service", Title: "Find a service"},
		{ID: "buy_item", Title: "Buy an item"},
		{ID: "ask_question", Title: "Ask a question"},
	}
}
