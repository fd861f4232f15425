package model

type AssistantRequest struct {
	UserName     string
	Stage        Stage
	History      []Turn
	FreshSegment bool
}

// AssistantReply is the oracle's answer plus a directive telling the
// dialogue whether to show the main actions.
type AssistantReply struct {
	Text             string
	OfferMainActions bool
}
