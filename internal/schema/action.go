package schema

import (
	"fmt"
	"net/http"
	"strings"
)

// RowToken is the URL-template placeholder that makes an action row-scoped.
// Its presence in To is the entire page/row classification predicate.
const RowToken = ":id"

// ActionDescriptor is a declarative button/operation definition.
type ActionDescriptor struct {
	Label   string `json:"label"`
	Icon    string `json:"icon,omitempty"`
	To      string `json:"to,omitempty"`
	Method  string `json:"method,omitempty"`
	Variant string `json:"variant,omitempty"`

	// When is an optional CEL expression evaluated against the row;
	// actions whose rule evaluates false are not offered.
	When string `json:"when,omitempty"`
}

// RowScoped reports whether the action applies to a single row. An action is
// row-scoped iff its URL template contains the :id token.
func (a ActionDescriptor) RowScoped() bool {
	return strings.Contains(a.To, RowToken)
}

// Mutating reports whether dispatching the action issues a state-changing
// HTTP call (a method is declared and it is not GET).
func (a ActionDescriptor) Mutating() bool {
	return a.Method != "" && !strings.EqualFold(a.Method, http.MethodGet)
}

// Dangerous reports whether execution must be deferred behind an explicit
// user confirmation.
func (a ActionDescriptor) Dangerous() bool {
	return a.Variant == "danger"
}

// ExpandURL substitutes the row identifier into the URL template.
func (a ActionDescriptor) ExpandURL(id any) string {
	if id == nil {
		return a.To
	}
	return strings.ReplaceAll(a.To, RowToken, fmt.Sprint(id))
}

// ActionKind is the closed classification of what dispatching an action does.
type ActionKind int

const (
	// ActionNone is pure navigation, left to the surrounding router.
	ActionNone ActionKind = iota
	// ActionNavigateCreate signals navigation to the entity's create form.
	ActionNavigateCreate
	// ActionNavigateEdit signals navigation to the row's edit form.
	ActionNavigateEdit
	// ActionMutate executes an HTTP mutation immediately.
	ActionMutate
	// ActionMutateConfirm defers the mutation behind a confirmation prompt.
	ActionMutateConfirm
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionNavigateCreate:
		return "navigate-create"
	case ActionNavigateEdit:
		return "navigate-edit"
	case ActionMutate:
		return "mutate"
	case ActionMutateConfirm:
		return "mutate-confirm"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Classify maps an action descriptor to its dispatch kind. Mutations win over
// path conventions; a /new suffix signals create navigation and an
// :id-then-/edit suffix signals edit navigation.
func (a ActionDescriptor) Classify() ActionKind {
	switch {
	case a.Mutating() && a.Dangerous():
		return ActionMutateConfirm
	case a.Mutating():
		return ActionMutate
	case strings.HasSuffix(a.To, "/new"):
		return ActionNavigateCreate
	case strings.HasSuffix(a.To, RowToken+"/edit"):
		return ActionNavigateEdit
	default:
		return ActionNone
	}
}

// PartitionActions splits declared actions into page-scoped and row-scoped
// sets. The split is a disjoint cover keyed solely on the :id token.
func PartitionActions(actions []ActionDescriptor) (page, row []ActionDescriptor) {
	for _, a := range actions {
		if a.RowScoped() {
			row = append(row, a)
		} else {
			page = append(page, a)
		}
	}
	return page, row
}
