package dashboard

import (
	"fmt"
	"strings"
)

// Report renders a plain-text report of one issue as it appears in the table.
func (p *Page) Report(issueID string) (string, error) {
	v := p.View()
	for _, r := range v.Rows {
		if r.ID != issueID {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Issue Report #%s\n", r.ID)
		fmt.Fprintf(&b, "Summary: %s\n", r.Summary)
		fmt.Fprintf(&b, "Tenant: %s\n", r.TenantName)
		fmt.Fprintf(&b, "Date Reported: %s\n", r.DateReported)
		fmt.Fprintf(&b, "Status: %s\n", r.Status)
		fmt.Fprintf(&b, "Vendor: %s\n", r.VendorName)
		fmt.Fprintf(&b, "Cost: %s\n", r.CostDisplay)
		return b.String(), nil
	}
	return "", ErrIssueNotFound
}
