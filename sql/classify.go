package sql

import (
	"fmt"
	"regexp"
	"strings"
)

type Kind int

const (
	Query Kind = iota
	NoResult
	Skip
)

func (kind Kind) String() string {
	switch kind {
	case Query:
		return "query"
	case NoResult:
		return "no-result"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("Kind(%d)", int(kind))
	}
}

// Statement is the classified, possibly rewritten, form of a statement.
type Statement struct {
	Kind     Kind
	SQL      string
	Original string
}

// Rewritten reports whether SQL differs from the text that was classified.
func (statement Statement) Rewritten() bool {
	return statement.SQL != statement.Original
}

var (
	dropTablePattern         = regexp.MustCompile(`(?i)DROP TABLE`)
	dropTableIfExistsPattern = regexp.MustCompile(`(?i)DROP TABLE IF EXISTS`)
)

const deleteFrom = "DELETE FROM"

// Classify decides how a statement is dispatched. Checks run in order: any
// text containing DROP TABLE is rewritten to DELETE FROM and becomes
// NoResult; a bare COMMIT or ROLLBACK is Skip; the rest is Query.
func Classify(text string) Statement {
	if dropTablePattern.MatchString(text) {
		return Statement{
			Kind:     NoResult,
			SQL:      RewriteDropTable(text),
			Original: text,
		}
	}

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "commit", "rollback":
		return Statement{Kind: Skip, SQL: text, Original: text}
	}

	return Statement{Kind: Query, SQL: text, Original: text}
}

// RewriteDropTable replaces every DROP TABLE IF EXISTS, then every remaining
// DROP TABLE, with DELETE FROM. Matching ignores case.
func RewriteDropTable(text string) string {
	text = dropTableIfExistsPattern.ReplaceAllLiteralString(text, deleteFrom)
	return dropTablePattern.ReplaceAllLiteralString(text, deleteFrom)
}
