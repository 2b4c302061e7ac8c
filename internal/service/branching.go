package service

import (
	"fmt"

	"github.com/ravi1997/spars/internal/model/entity"
)

// Branch links come in two forms. Definition payloads carry label
// references: a question's id field is a client-chosen label and
// parent_option_id is the 1-based position of the trigger option within
// the parent's option list. The single-question endpoints attach against
// persisted row ids. Both forms are validated here before any write.

// branchNode is the payload-level view of one question's branch link.
type branchNode struct {
	Label       int
	ParentLabel *int
	OptionPos   *int
	OptionCount int
	IsChoice    bool
}

// validatePayloadLinks checks every branch reference in a definition
// payload: the parent label must resolve within the payload, a question
// cannot be its own parent, the trigger option position must fall inside
// a choice parent's option list, and the parent chain must be acyclic.
func validatePayloadLinks(nodes []branchNode) error {
	byLabel := make(map[int]*branchNode, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		if n.Label == 0 {
			continue
		}
		if _, dup := byLabel[n.Label]; dup {
			return fmt.Errorf("%w: duplicate question id %d in payload", ErrValidation, n.Label)
		}
		byLabel[n.Label] = n
	}

	for i := range nodes {
		n := &nodes[i]
		if n.ParentLabel == nil {
			if n.OptionPos != nil {
				return fmt.Errorf("%w: parent_option_id set without parent_question_id", ErrValidation)
			}
			continue
		}
		parent, ok := byLabel[*n.ParentLabel]
		if !ok {
			return fmt.Errorf("%w: parent question %d is not part of this survey", ErrValidation, *n.ParentLabel)
		}
		if n.Label != 0 && *n.ParentLabel == n.Label {
			return fmt.Errorf("%w: question %d cannot be its own parent", ErrValidation, n.Label)
		}
		if n.OptionPos != nil {
			if !parent.IsChoice {
				return fmt.Errorf("%w: parent question %d has no options", ErrValidation, *n.ParentLabel)
			}
			if *n.OptionPos < 1 || *n.OptionPos > parent.OptionCount {
				return fmt.Errorf("%w: option %d does not belong to parent question %d", ErrValidation, *n.OptionPos, *n.ParentLabel)
			}
		}
	}

	// Walk each parent chain; revisiting the start label means a cycle.
	for i := range nodes {
		start := &nodes[i]
		seen := map[int]bool{}
		if start.Label != 0 {
			seen[start.Label] = true
		}
		cur := start
		for cur.ParentLabel != nil {
			next := byLabel[*cur.ParentLabel]
			if next == nil {
				break
			}
			if seen[next.Label] {
				return fmt.Errorf("%w: branch links form a cycle through question %d", ErrValidation, next.Label)
			}
			seen[next.Label] = true
			cur = next
		}
	}
	return nil
}

// ValidateAttach checks a branch link against persisted state, for the
// single-question endpoints. questionID is zero when the question is new.
func ValidateAttach(survey *entity.Survey, questionID int, parentQuestionID, parentOptionID *int) error {
	if parentQuestionID == nil {
		if parentOptionID != nil {
			return fmt.Errorf("%w: parent_option_id set without parent_question_id", ErrValidation)
		}
		return nil
	}
	if questionID != 0 && *parentQuestionID == questionID {
		return fmt.Errorf("%w: a question cannot be its own parent", ErrValidation)
	}

	var parent *entity.Question
	byID := make(map[int]*entity.Question, len(survey.Questions))
	for i := range survey.Questions {
		q := &survey.Questions[i]
		byID[q.ID] = q
		if q.ID == *parentQuestionID {
			parent = q
		}
	}
	if parent == nil {
		return fmt.Errorf("%w: parent question %d is not part of this survey", ErrValidation, *parentQuestionID)
	}

	if parentOptionID != nil {
		found := false
		for _, o := range parent.Options {
			if o.ID == *parentOptionID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: option %d does not belong to parent question %d", ErrValidation, *parentOptionID, *parentQuestionID)
		}
	}

	// Follow the parent chain upward; reaching the question being edited
	// would close a loop.
	seen := map[int]bool{}
	cur := parent
	for cur != nil {
		if cur.ID == questionID && questionID != 0 {
			return fmt.Errorf("%w: branch links form a cycle through question %d", ErrValidation, cur.ID)
		}
		if seen[cur.ID] {
			break
		}
		seen[cur.ID] = true
		if cur.ParentQuestionID == nil {
			break
		}
		cur = byID[*cur.ParentQuestionID]
	}
	return nil
}

// ResolveVisibleTree returns the questions visible for a given set of
// selected option ids, in definition order with every parent emitted
// before its children. A question with no parent is always visible; a
// branched question is visible when its parent has no selected option at
// all, or when its trigger option is among the selections.
func ResolveVisibleTree(survey *entity.Survey, selectedOptionIDs []int) []entity.Question {
	selected := make(map[int]bool, len(selectedOptionIDs))
	for _, id := range selectedOptionIDs {
		selected[id] = true
	}

	children := make(map[int][]*entity.Question)
	var roots []*entity.Question
	for i := range survey.Questions {
		q := &survey.Questions[i]
		if q.ParentQuestionID == nil {
			roots = append(roots, q)
		} else {
			children[*q.ParentQuestionID] = append(children[*q.ParentQuestionID], q)
		}
	}

	optionSelected := func(q *entity.Question) bool {
		for _, o := range q.Options {
			if selected[o.ID] {
				return true
			}
		}
		return false
	}

	var out []entity.Question
	var walk func(q *entity.Question)
	walk = func(q *entity.Question) {
		out = append(out, *q)
		anySelected := optionSelected(q)
		for _, child := range children[q.ID] {
			if !anySelected {
				// Parent unanswered so far; the branch stays visible.
				walk(child)
				continue
			}
			if child.ParentOptionID != nil && selected[*child.ParentOptionID] {
				walk(child)
			}
		}
	}
	for _, q := range roots {
		walk(q)
	}
	return out
}
