// Package filter assembles parameterized SELECT statements for listing
// endpoints.
//
// Every listing (categories, topics, replies, users) goes through a Builder:
// optional predicates are appended one at a time and joined with AND, the sort
// key is resolved through a per-entity allow-list, and LIMIT/OFFSET are bound
// as parameters. The same predicate set also produces a COUNT(*) query used
// for page totals.
//
// Caller-supplied values only ever travel as bound arguments. Column names
// come from the Columns allow-list or from string literals in the repository
// code, never from a request.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/sakif/forum/internal/apperror"
)

// Direction is a sort direction. The zero value sorts ascending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc" or "desc" (case-insensitive).
// The empty string parses to Asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	default:
		return "", apperror.ValidationFailed("sort", fmt.Sprintf("sort must be asc or desc, got %q", s))
	}
}

func (d Direction) sql() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Columns maps public sort keys to SQL column expressions.
type Columns map[string]string

// Sort is the sort request of a listing. Key is matched against a Columns
// allow-list; unknown keys are dropped.
type Sort struct {
	Key string
	Dir Direction
}

// Window is the requested page: Limit rows starting at Offset.
type Window struct {
	Limit  int
	Offset int
}

// ValidatePage rejects limit < 1 and offset < 0.
func ValidatePage(w Window) error {
	if w.Limit < 1 {
		return apperror.ValidationFailed("limit", "limit must be at least 1")
	}
	if w.Offset < 0 {
		return apperror.ValidationFailed("offset", "offset must not be negative")
	}
	return nil
}

// TotalPages returns ceil(total/size), or 0 when size < 1.
func TotalPages(total, size int) int {
	if size < 1 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Builder accumulates the pieces of one listing query.
// The zero value is not usable; call New.
type Builder struct {
	base     string
	preds    []string
	args     []any
	order    string
	tiebreak string
	limit    int
	offset   int
	paged    bool
}

// New starts a query from a base "SELECT ... FROM ... [JOIN ...]" without a
// WHERE clause.
func New(base string) *Builder {
	return &Builder{base: strings.TrimSpace(base)}
}

// Tiebreak sets a column appended to every ORDER BY (and used alone when no
// sort key was accepted) so that pages do not overlap.
func (b *Builder) Tiebreak(col string) *Builder {
	b.tiebreak = col
	return b
}

// Eq adds "col = ?".
func (b *Builder) Eq(col string, v any) *Builder {
	return b.Where(col+" = ?", v)
}

// Contains adds a substring match. Wildcards in s are escaped, so "50%"
// matches the literal text "50%".
func (b *Builder) Contains(col, s string) *Builder {
	return b.Where(col+` LIKE ? ESCAPE '\'`, "%"+escapeLike(s)+"%")
}

// After adds "col > ?".
func (b *Builder) After(col string, t time.Time) *Builder {
	return b.Where(col+" > ?", t.UTC())
}

// Before adds "col < ?".
func (b *Builder) Before(col string, t time.Time) *Builder {
	return b.Where(col+" < ?", t.UTC())
}

// Where adds a fixed predicate with its bound arguments. The expression must
// be a literal written by the caller; values go in args.
func (b *Builder) Where(expr string, args ...any) *Builder {
	b.preds = append(b.preds, expr)
	b.args = append(b.args, args...)
	return b
}

// OrderBy resolves s.Key through cols. A key outside the allow-list leaves
// the order unset (only the tiebreak applies). It reports whether the key was
// accepted.
func (b *Builder) OrderBy(cols Columns, s Sort) bool {
	col, ok := cols[s.Key]
	if !ok {
		b.order = ""
		return false
	}
	b.order = col + " " + s.Dir.sql()
	return true
}

// Page sets LIMIT/OFFSET. A limit below 1 disables pagination.
func (b *Builder) Page(w Window) *Builder {
	if w.Limit < 1 {
		b.paged = false
		return b
	}
	b.paged = true
	b.limit = w.Limit
	b.offset = max(w.Offset, 0)
	return b
}

func (b *Builder) where() string {
	if len(b.preds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.preds, " AND ")
}

// SelectSQL returns the full listing query and its arguments.
func (b *Builder) SelectSQL() (string, []any) {
	var sb strings.Builder
	sb.WriteString(b.base)
	sb.WriteString(b.where())

	var order []string
	if b.order != "" {
		order = append(order, b.order)
	}
	if b.tiebreak != "" {
		order = append(order, b.tiebreak+" ASC")
	}
	if len(order) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	}

	args := append([]any(nil), b.args...)
	if b.paged {
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, b.limit, b.offset)
	}
	return sb.String(), args
}

// CountSQL returns a COUNT(*) over the same predicates, ignoring order and
// pagination.
func (b *Builder) CountSQL() (string, []any) {
	inner := b.base + b.where()
	return "SELECT COUNT(*) FROM (" + inner + ") AS matched", append([]any(nil), b.args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
