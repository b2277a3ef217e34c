package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocator_Path(t *testing.T) {
	tests := []struct {
		name    string
		locator *Locator
		want    string
	}{
		{
			name:    "service only",
			locator: NewLocator("db", "", "", 0),
			want:    "db/",
		},
		{
			name:    "table",
			locator: Table("db", "contact"),
			want:    "db/_table/contact/",
		},
		{
			name:    "table with id",
			locator: NewLocator("db", KindTable, "contact", 42),
			want:    "db/_table/contact/42",
		},
		{
			name:    "name without kind",
			locator: NewLocator("user", "", "session", 0),
			want:    "user/session/",
		},
		{
			name:    "id without name",
			locator: NewLocator("files", KindProcedure, "", 3),
			want:    "files/_proc/3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.locator.Path())
		})
	}
}

func TestLocator_SetOnceFields(t *testing.T) {
	l := NewLocator("db", "", "", 0)

	assert.True(t, l.SetName("A"))
	assert.False(t, l.SetName("B"))
	assert.Equal(t, "A", l.Name())

	assert.False(t, l.SetKind(""), "empty values are never taken")
	assert.True(t, l.SetKind(KindTable))
	assert.False(t, l.SetKind(KindFunction))
	assert.Equal(t, KindTable, l.Kind())

	assert.True(t, l.SetID(5))
	assert.False(t, l.SetID(6))
	assert.Equal(t, int64(5), l.ID())

	// Constructor values count as the first write.
	l2 := NewLocator("db", KindTable, "first", 0)
	l2.SetName("second")
	assert.Equal(t, "first", l2.Name())
}

func TestLocator_QueryString_Defaults(t *testing.T) {
	l := Table("db", "contact")
	assert.Empty(t, l.QueryString(), "default params must not be rendered")
}

func TestLocator_QueryString(t *testing.T) {
	tests := []struct {
		name   string
		params func(p *QueryParams)
		want   string
	}{
		{
			name:   "filter is percent encoded",
			params: func(p *QueryParams) { p.Filter = "(name like 'A%') and (age > 3)" },
			want:   "filter=(name%20like%20'A%25')%20and%20(age%20%3E%203)&",
		},
		{
			name:   "limit other than default",
			params: func(p *QueryParams) { p.Limit = 25 },
			want:   "limit=25&",
		},
		{
			name:   "limit zero is not the default",
			params: func(p *QueryParams) { p.Limit = 0 },
			want:   "limit=0&",
		},
		{
			name:   "offset",
			params: func(p *QueryParams) { p.Offset = 20 },
			want:   "offset=20&",
		},
		{
			name: "boolean flags only when true",
			params: func(p *QueryParams) {
				p.IncludeCount = true
				p.IncludeSchema = false
			},
			want: "include_count=true&",
		},
		{
			name: "fixed enumeration order",
			params: func(p *QueryParams) {
				p.IDs = "1,2"
				p.Fields = "id,name"
				p.Order = "name desc"
				p.IncludeSchema = true
				p.Related = "owner_by_owner_id"
				p.Group = "city"
			},
			want: "fields=id%2Cname&related=owner_by_owner_id&order=name%20desc&group=city&include_schema=true&ids=1%2C2&",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Table("db", "contact")
			tt.params(&l.Params)
			assert.Equal(t, tt.want, l.QueryString())
		})
	}
}

func TestLocator_URLs(t *testing.T) {
	l := Table("db", "contact")
	l.Params.IDs = "7"

	assert.Equal(t, "https://df.local/api/v2/db/_table/contact/", l.URL("https://df.local/api/v2/"))
	assert.Equal(t, "https://df.local/api/v2/db/_table/contact/?ids=7&", l.QueryURL("https://df.local/api/v2/"))
}

func TestLocator_Clone(t *testing.T) {
	l := Table("db", "contact")
	l.Params.IDs = "1"

	c := l.Clone()
	c.Params.IDs = "2"
	c.SetID(9)

	assert.Equal(t, "1", l.Params.IDs)
	assert.Equal(t, int64(0), l.ID())
	assert.Equal(t, int64(9), c.ID())
}

func TestLocator_Validate(t *testing.T) {
	require.NoError(t, Table("db", "contact").Validate())

	err := NewLocator("", KindTable, "contact", 0).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service")
}

func TestEscapeComponent(t *testing.T) {
	assert.Equal(t, "a%20b", EscapeComponent("a b"))
	assert.Equal(t, "-_.!~*'()", EscapeComponent("-_.!~*'()"))
	assert.Equal(t, "%26%3D%3F%2F", EscapeComponent("&=?/"))
}
