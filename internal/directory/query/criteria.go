package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/reposync/admin-backend/internal/directory"
)

// ErrInvalidQuery marks criteria the compiler cannot serve: unknown resource
// kinds or structurally malformed inputs. Callers surface it as a client
// error; it is never downgraded to "no filter".
var ErrInvalidQuery = errors.New("query: invalid query")

type Kind string

const (
	Users        Kind = "users"
	Groups       Kind = "groups"
	Repositories Kind = "repositories"
)

type Order string

const (
	OrderNone       Order = ""
	OrderAscending  Order = "ascending"
	OrderDescending Order = "descending"
)

// Date is a plain calendar date; the compiler anchors it in the configured
// civil timezone when turning it into an instant bound.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func ParseDate(v string) (Date, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return Date{}, fmt.Errorf("%w: bad date %q", ErrInvalidQuery, v)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// Criteria carries already-validated search criteria. Zero values mean the
// criterion is absent; absent criteria are omitted from the compiled filter
// entirely; the security scope predicate is the one exception and is never
// omitted for non-admins.
type Criteria struct {
	Query         string
	IDs           []string
	RepositoryIDs []string
	GroupIDs      []string
	UserIDs       []string
	Roles         []directory.Role

	CreatedFrom Date
	CreatedTo   Date

	SortBy    string
	SortOrder Order

	Page     int
	PageSize int
}

// Compiled is the remote search request this core produces: a filter
// expression plus pagination and sort parameters. Nil pointer fields are
// omitted from the outgoing request.
type Compiled struct {
	Filter     string
	StartIndex *int
	Count      *int
	SortBy     string
	SortOrder  Order
}

const DefaultPageSize = 20
