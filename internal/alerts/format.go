package alerts

import (
	"fmt"
	"sort"
	"strings"
)

func categoryIcon(cat Category) string {
	switch cat {
	case CategoryWeather:
		return "⛈"
	case CategorySeismic:
		return "🌍"
	case CategoryFlood:
		return "🌊"
	case CategoryNDMA:
		return "📢"
	}
	return "🔔"
}

// Text renders n as plain text for chat or terminal delivery.
func (n Notification) Text() string {
	var b strings.Builder
	b.WriteString(categoryIcon(n.Category))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(string(n.Category)))
	if n.Severity != "" {
		b.WriteString(" · ")
		b.WriteString(strings.ToUpper(string(n.Severity)))
	}
	b.WriteString("\n")
	if n.Title != "" {
		b.WriteString(n.Title)
		b.WriteString("\n")
	}
	if n.Body != "" {
		b.WriteString(n.Body)
		b.WriteString("\n")
	}
	if n.Area != "" {
		fmt.Fprintf(&b, "Area: %s\n", n.Area)
	}
	if n.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", n.Source)
	}
	if p := n.Proximity; p != nil {
		where := "outside the alert zone"
		if p.Inside {
			where = "inside the alert zone"
		}
		fmt.Fprintf(&b, "📍 %.1f km away, %s\n", p.DistanceKM, where)
	}
	if len(n.Extra) > 0 {
		keys := make([]string, 0, len(n.Extra))
		for k := range n.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, n.Extra[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
