// Package records implements the record commands: list, get, create, update,
// delete and call.
package records

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
	"github.com/elvisfernandes/ng-dfservice/pkg/datastore"
	"github.com/elvisfernandes/ng-dfservice/pkg/resource"
)

// tableArgs parses SERVICE TABLE [ID].
func tableArgs(c *base.Command, args []string, withID bool) (*resource.Locator, int64, bool) {
	want := 2
	usage := "SERVICE TABLE"
	if withID {
		want = 3
		usage += " ID"
	}
	if len(args) != want {
		c.UI.Error(fmt.Sprintf("expected arguments %s, got %d argument(s)", usage, len(args)))
		return nil, 0, false
	}

	loc := resource.Table(args[0], args[1])
	if err := loc.Validate(); err != nil {
		c.UI.Error(fmt.Sprintf("invalid resource: %v", err))
		return nil, 0, false
	}
	if !withID {
		return loc, 0, true
	}

	id, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || id <= 0 {
		c.UI.Error(fmt.Sprintf("invalid record id %q", args[2]))
		return nil, 0, false
	}
	return loc, id, true
}

// parseData decodes a -data flag value into a record.
func parseData(data string) (resource.Map, error) {
	if data == "" {
		return nil, fmt.Errorf("-data is required")
	}
	rec := resource.NewMap()
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("invalid -data: %w", err)
	}
	return rec, nil
}

// rows converts records for output.
func rows(recs []resource.Map) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, map[string]any(r))
	}
	return out
}

// report turns a store outcome into an exit code.
func report(c *base.Command, op string, out datastore.Outcome, err error) bool {
	if err != nil {
		c.UI.Error(fmt.Sprintf("%s failed: %v", op, err))
		return false
	}
	switch out {
	case datastore.OutcomeApplied:
		return true
	case datastore.OutcomeSkipped:
		c.UI.Warn(fmt.Sprintf("%s skipped", op))
	default:
		c.UI.Warn(fmt.Sprintf("%s: unexpected response from server, nothing changed", op))
	}
	return false
}
