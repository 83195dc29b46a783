package form

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// FormatSummary renders the controller's current field state as a markdown
// table, one row per registered field.
func (c *Controller) FormatSummary() string {
	c.mu.Lock()
	snap := c.snap
	keys := make([]string, 0, len(c.defs))
	for k := range c.defs {
		keys = append(keys, k)
	}
	c.mu.Unlock()
	sort.Strings(keys)

	var buf strings.Builder
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Value", "Dirty", "Valid", "Error")
	for _, key := range keys {
		v, _ := snap.Value(key)
		vr := snap.Validation(key)
		valid := "yes"
		if vr.IsValidating {
			valid = "validating"
		} else if !vr.IsValid {
			valid = "no"
		}
		dirty := ""
		if snap.IsDirty(key) {
			dirty = "yes"
		}
		_ = table.Append(key, fmt.Sprintf("%v", v), dirty, valid, vr.ErrorMessage)
	}
	_ = table.Render()
	return buf.String()
}
