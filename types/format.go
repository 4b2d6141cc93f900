package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

const DateLayout = "2006-01-02"

func formatVerdictSection(v *EligibilityVerdict) string {
	if v == nil {
		return ""
	}
	days := "unknown"
	if v.DaysSinceDelivery != nil {
		days = strconv.Itoa(*v.DaysSinceDelivery)
	}
	windowEnds := "unknown"
	if v.WindowEndsOn != nil {
		windowEnds = v.WindowEndsOn.Format(DateLayout)
	}
	var buf strings.Builder
	buf.WriteString("# Eligibility facts (authoritative):\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Fact", "Value")
	_ = table.Append("Status", string(v.Status))
	_ = table.Append("Days since delivery", days)
	_ = table.Append("Return window (days)", strconv.Itoa(v.WindowDays))
	_ = table.Append("Window ends on", windowEnds)
	if v.FutureDelivery {
		_ = table.Append("Note", "delivery date is after the current date")
	}
	_ = table.Render()
	return buf.String()
}

func FormatExplanationRequest(req *ExplanationRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("nil explanation request")
	}
	sections := []string{
		fmt.Sprintf("# Current Date:\n%s", req.CurrentDate.Format(DateLayout)),
	}
	if req.OrderNumber != "" {
		sections = append(sections, fmt.Sprintf("# Order Number:\n%s", req.OrderNumber))
	}
	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "No order information available."
	}
	sections = append(sections, fmt.Sprintf("# Order Info:\n%s", orderInfo))
	policyText := req.PolicyText
	if policyText == "" {
		policyText = "Standard return policy applies."
	}
	sections = append(sections, fmt.Sprintf("# Return Policy:\n%s", policyText))
	if s := formatVerdictSection(req.Verdict); s != "" {
		sections = append(sections, s)
	}
	return strings.Join(sections, "\n\n"), nil
}
