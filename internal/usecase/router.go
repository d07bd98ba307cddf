package usecase

import (
	"context"
	"fmt"

	"trakii-bot/internal/domain"
)

// Label is the closed set of triage intents. The classifier's structured
// output is constrained to this set; ParseLabel is the last line of defense
// against a model that produces anything else.
type Label string

const (
	LabelLocation Label = "location"
	LabelSpeed    Label = "speed"
	LabelStatus   Label = "status"
	LabelList     Label = "list"
	LabelAsk      Label = "ask"
	LabelIgnore   Label = "ignore"
)

// Labels lists every member of the closed set, in prompt order.
func Labels() []Label {
	return []Label{LabelLocation, LabelSpeed, LabelStatus, LabelList, LabelAsk, LabelIgnore}
}

// ParseLabel validates a raw classifier label against the closed set.
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case LabelLocation, LabelSpeed, LabelStatus, LabelList, LabelAsk, LabelIgnore:
		return Label(s), nil
	}
	return "", fmt.Errorf("usecase: label %q is not in the triage set", s)
}

// handlerFunc runs one handler against the turn. Each handler appends exactly
// one assistant message to the turn.
type handlerFunc func(ctx context.Context, turn *Turn, creds domain.Credentials)

// route maps a label to its handler. This is a lookup table, not a decision
// tree: the mapping is total over the Label set, so a nil return is only
// reachable with a label that bypassed ParseLabel.
func (s *TriageService) route(label Label) handlerFunc {
	switch label {
	case LabelLocation:
		return s.handleLocation
	case LabelSpeed:
		return s.handleSpeed
	case LabelStatus:
		return s.handleStatus
	case LabelList:
		return s.handleList
	case LabelAsk:
		return s.handleAsk
	case LabelIgnore:
		return s.handleIgnore
	}
	return nil
}
