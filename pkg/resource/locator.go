package resource

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Resource kinds, as they appear in the second path segment.
const (
	KindSchema    = "_schema"
	KindTable     = "_table"
	KindProcedure = "_proc"
	KindFunction  = "_func"
)

// DefaultLimit is the page size assumed by the remote API when no limit is sent.
const DefaultLimit = 10

// QueryParams is the mutable bag of query parameters sent with retrieve calls.
type QueryParams struct {
	Fields        string
	Related       string
	Filter        string
	Limit         int
	Offset        int
	Order         string
	Group         string
	IncludeCount  bool
	IncludeSchema bool
	IDs           string
}

// DefaultQueryParams returns the parameter bag every new Locator starts with.
func DefaultQueryParams() QueryParams {
	return QueryParams{Limit: DefaultLimit}
}

// Locator addresses a remote resource collection or item:
//
//	SERVICE_NAME/RESOURCE_KIND/RESOURCE_NAME/RESOURCE_ID
//
// Service is fixed at construction. Kind, Name and ID are set-once: the first
// non-empty assignment wins and later assignments are ignored.
type Locator struct {
	service string
	kind    string
	name    string
	id      int64

	// Params are sent as the query string on retrieve calls.
	Params QueryParams

	// Body is sent as-is by create, overwrite and remove calls that are not
	// given a record. Used for bulk bodies and non-table resources.
	Body any
}

// NewLocator creates a Locator. Empty kind/name and a zero id leave the
// corresponding segment unset so it can still be assigned later.
func NewLocator(service, kind, name string, id int64) *Locator {
	l := &Locator{
		service: service,
		Params:  DefaultQueryParams(),
	}
	l.SetKind(kind)
	l.SetName(name)
	l.SetID(id)
	return l
}

// Table is shorthand for a locator addressing a database table.
func Table(service, table string) *Locator {
	return NewLocator(service, KindTable, table, 0)
}

// Service returns the service name.
func (l *Locator) Service() string { return l.service }

// Kind returns the resource kind.
func (l *Locator) Kind() string { return l.kind }

// Name returns the resource name.
func (l *Locator) Name() string { return l.name }

// ID returns the resource id, 0 when unset.
func (l *Locator) ID() int64 { return l.id }

// SetKind assigns the kind if it is still unset. It reports whether the value
// was taken.
func (l *Locator) SetKind(kind string) bool {
	if l.kind != "" || kind == "" {
		return false
	}
	l.kind = kind
	return true
}

// SetName assigns the name if it is still unset.
func (l *Locator) SetName(name string) bool {
	if l.name != "" || name == "" {
		return false
	}
	l.name = name
	return true
}

// SetID assigns the id if it is still unset.
func (l *Locator) SetID(id int64) bool {
	if l.id != 0 || id == 0 {
		return false
	}
	l.id = id
	return true
}

// Clone returns an independent copy of the locator. Body is shared.
func (l *Locator) Clone() *Locator {
	c := *l
	return &c
}

// Validate checks that the locator can be turned into a request path.
func (l *Locator) Validate() error {
	return validation.Errors{
		"service": validation.Validate(l.service, validation.Required),
		"id":      validation.Validate(l.id, validation.Min(int64(0))),
	}.Filter()
}

// Path builds the resource path relative to the API base URL.
func (l *Locator) Path() string {
	var b strings.Builder
	if l.service != "" {
		b.WriteString(l.service)
		b.WriteByte('/')
	}
	if l.kind != "" {
		b.WriteString(l.kind)
		b.WriteByte('/')
	}
	if l.name != "" {
		b.WriteString(l.name)
		b.WriteByte('/')
	}
	if l.id != 0 {
		b.WriteString(strconv.FormatInt(l.id, 10))
	}
	return b.String()
}

// QueryString renders the non-default parameters as "key=value&" pairs in a
// fixed order. The trailing separator is left in place.
func (l *Locator) QueryString() string {
	p := l.Params
	var b strings.Builder

	add := func(key, value string) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte('&')
	}

	if p.Fields != "" {
		add("fields", EscapeComponent(p.Fields))
	}
	if p.Related != "" {
		add("related", EscapeComponent(p.Related))
	}
	if p.Filter != "" {
		add("filter", EscapeComponent(p.Filter))
	}
	if p.Limit != DefaultLimit {
		add("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset != 0 {
		add("offset", strconv.Itoa(p.Offset))
	}
	if p.Order != "" {
		add("order", EscapeComponent(p.Order))
	}
	if p.Group != "" {
		add("group", EscapeComponent(p.Group))
	}
	if p.IncludeCount {
		add("include_count", "true")
	}
	if p.IncludeSchema {
		add("include_schema", "true")
	}
	if p.IDs != "" {
		add("ids", EscapeComponent(p.IDs))
	}

	return b.String()
}

// URL joins base and the resource path.
func (l *Locator) URL(base string) string {
	return base + l.Path()
}

// QueryURL joins base, the resource path and the query string.
func (l *Locator) QueryURL(base string) string {
	return l.URL(base) + "?" + l.QueryString()
}

// String implements fmt.Stringer.
func (l *Locator) String() string {
	return fmt.Sprintf("%s?%s", l.Path(), l.QueryString())
}

var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EscapeComponent percent-encodes s the way browsers encode a URI component:
// everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is escaped and spaces
// become %20.
func EscapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
