package service

import "strings"

// ActionKind is the closed set of interactive reply ids the dialogue understands.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionFindService
	ActionManualService
	ActionBuyItem
	ActionAskQuestion
	ActionTransactions
	ActionMainMenu
	ActionCategory
	ActionService
	ActionState
	ActionSelectProvider
	ActionViewProvider
	ActionConfirmTransaction
	ActionAppealTransaction
)

func (k ActionKind) String() string {
	switch k {
	case ActionFindService:
		return "find_service"
	case ActionManualService:
		return "manual_service"
	case ActionBuyItem:
		return "buy_item"
	case ActionAskQuestion:
		return "ask_question"
	case ActionTransactions:
		return "transactions"
	case ActionMainMenu:
		return "main_menu"
	case ActionCategory:
		return "category"
	case ActionService:
		return "service"
	case ActionState:
		return "state"
	case ActionSelectProvider:
		return "select_provider"
	case ActionViewProvider:
		return "view_provider"
	case ActionConfirmTransaction:
		return "confirm_tx"
	case ActionAppealTransaction:
		return "appeal_tx"
	default:
		return "unknown"
	}
}

// ChangesStage reports whether the action moves the session to another stage.
func (k ActionKind) ChangesStage() bool {
	switch k {
	case ActionTransactions, ActionViewProvider, ActionUnknown:
		return false
	}
	return true
}

type Action struct {
	Kind ActionKind
	Arg  string
}

var simpleActions = map[string]ActionKind{
	"find_service":    ActionFindService,
	"request_service": ActionFindService,
	"browse_services": ActionFindService,
	"manual_service":  ActionManualService,
	"buy_item":        ActionBuyItem,
	"ask_question":    ActionAskQuestion,
	"transactions":    ActionTransactions,
	"main_menu":       ActionMainMenu,
}

var prefixedActions = map[string]ActionKind{
	"category":        ActionCategory,
	"service":         ActionService,
	"state":           ActionState,
	"select_provider": ActionSelectProvider,
	"view_provider":   ActionViewProvider,
	"confirm_tx":      ActionConfirmTransaction,
	"appeal_tx":       ActionAppealTransaction,
}

// ParseAction maps a reply id onto an Action. Anything outside the closed
// set, including a known prefix with an empty argument, is ActionUnknown.
func ParseAction(id string) Action {
	id = strings.TrimSpace(id)
	if kind, ok := simpleActions[id]; ok {
		return Action{Kind: kind}
	}

	prefix, arg, found := strings.Cut(id, ":")
	if !found {
		return Action{Kind: ActionUnknown, Arg: id}
	}
	kind, ok := prefixedActions[prefix]
	arg = strings.TrimSpace(arg)
	if !ok || arg == "" {
		return Action{Kind: ActionUnknown, Arg: id}
	}
	return Action{Kind: kind, Arg: arg}
}

func actionID(kind ActionKind, arg string) string {
	return kind.String() + ":" + arg
}
