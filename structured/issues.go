package structured

import (
	"fmt"
	"strings"
)

// Issue groups: warnings["reader"], errors["ref"], errors["validation"].
const (
	GroupReader     = "reader"
	GroupRef        = "ref"
	GroupValidation = "validation"
)

// Src locates an issue in the input: the type (table), the column header,
// the 1-based row, and for validation issues the row's best identifying
// value.
type Src struct {
	Type   string `json:"type,omitempty"`
	Column string `json:"column,omitempty"`
	Row    int    `json:"row,omitempty"`
	ID     string `json:"id,omitempty"`
}

// Issue is one accumulated diagnostic. Exactly one of Warning and Error is
// set; Kind further categorizes validation errors.
type Issue struct {
	Src     Src    `json:"src"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// FormatIssue renders an issue the way reports show them:
// "Type.column [row]: message".
func FormatIssue(issue Issue) string {
	var src strings.Builder
	if issue.Src.Type != "" {
		src.WriteString(issue.Src.Type)
	}
	if issue.Src.Column != "" {
		if src.Len() > 0 {
			src.WriteByte('.')
		}
		src.WriteString(issue.Src.Column)
	}
	if issue.Src.Row > 0 {
		if src.Len() > 0 {
			src.WriteByte(' ')
		}
		fmt.Fprintf(&src, "[%d]", issue.Src.Row)
	}
	message := issue.Error
	if message == "" {
		message = issue.Warning
	}
	if src.Len() == 0 {
		if issue.Warning != "" {
			src.WriteString("Warning")
		} else {
			src.WriteString("Error")
		}
	}
	return fmt.Sprintf("%s: %s", src.String(), message)
}

func noteIssue(issues map[string][]Issue, group string, issue Issue) {
	issues[group] = append(issues[group], issue)
}
