package router

import (
	"sort"
	"strings"

	"alertbot/pkg/tgui"
)

// helpText renders /help [path...] in Telegram HTML.
func (m *CommandManager) helpText(path []string) string {
	m.mu.RLock()
	root, alias := m.root, m.alias
	m.mu.RUnlock()

	if len(path) == 0 {
		return helpIndex(root).String()
	}

	node, full := root, make([]string, 0, len(path))
	for _, tok := range path {
		next, ok := node.child(tok)
		if !ok {
			leaf := alias[tok]
			if leaf == nil || leaf.cmd == nil {
				return tgui.JoinH("\n", "❓ "+tgui.B("Unknown command"), "Send "+tgui.Code("/help")+" for the list.").String()
			}
			node, full = leaf, splitRoute(leaf.cmd.Route)
			break
		}
		node, full = next, append(full, tok)
	}
	return helpNode(node, full).String()
}

// helpIndex lists top-level commands; owner-only ones sort last.
func helpIndex(root *cmdNode) tgui.H {
	type row struct {
		name  string
		owner bool
		desc  string
	}
	var rows []row
	for _, name := range root.childNames() {
		n, _ := root.child(name)
		rows = append(rows, row{name: name, owner: ownerOnly(n), desc: describeNode(n)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].owner != rows[j].owner {
			return !rows[i].owner
		}
		return rows[i].name < rows[j].name
	})

	lines := []tgui.H{
		"🚨 " + tgui.B("alertbot commands"),
		"Send " + tgui.Code("/help <cmd>") + " for details.",
	}
	for _, r := range rows {
		lines = append(lines, bullet(r.owner, "/"+r.name, r.desc))
	}
	return tgui.JoinH("\n", lines...)
}

func helpNode(n *cmdNode, full []string) tgui.H {
	lines := []tgui.H{"📚 " + tgui.B("Help") + " " + tgui.Code("/"+strings.Join(full, " "))}

	if c := n.cmd; c != nil {
		lines = append(lines, tgui.Esc(strings.TrimSpace(c.Description)))
		if c.Access == AccessOwnerOnly {
			lines = append(lines, "🔒 "+tgui.I("owners only"))
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			lines = append(lines, tgui.B("Usage")+" "+tgui.Code(u))
		}
		if short := shortcuts(*c); len(short) > 0 {
			codes := make([]tgui.H, 0, len(short))
			for _, s := range short {
				codes = append(codes, tgui.Code("/"+s))
			}
			lines = append(lines, tgui.B("Shortcuts")+" "+tgui.JoinH(", ", codes...))
		}
	} else if ownerOnly(n) {
		lines = append(lines, "🔒 "+tgui.I("owners only"))
	}

	for _, name := range n.childNames() {
		ch, _ := n.child(name)
		route := append(append([]string(nil), full...), name)
		lines = append(lines, bullet(ownerOnly(ch), "/"+strings.Join(route, " "), describeNode(ch)))
	}
	return tgui.JoinH("\n", lines...)
}

func bullet(owner bool, cmd, desc string) tgui.H {
	prefix := tgui.H("•")
	if owner {
		prefix = "• 🔒"
	}
	line := tgui.JoinH(" ", prefix, tgui.Code(cmd))
	if desc != "" {
		line = tgui.JoinH(" — ", line, tgui.Esc(desc))
	}
	return line
}

// describeNode is the command description, or a hint listing a group's
// first subcommands.
func describeNode(n *cmdNode) string {
	if n.cmd != nil && strings.TrimSpace(n.cmd.Description) != "" {
		return strings.TrimSpace(n.cmd.Description)
	}
	kids := n.childNames()
	if len(kids) == 0 {
		return ""
	}
	if len(kids) > 3 {
		return "subcommands: " + strings.Join(kids[:3], ", ") + ", …"
	}
	return "subcommands: " + strings.Join(kids, ", ")
}

// ownerOnly reports whether no command at or under n is open to everyone.
func ownerOnly(n *cmdNode) bool {
	if n.cmd != nil {
		return n.cmd.Access == AccessOwnerOnly
	}
	for _, ch := range n.children {
		if !ownerOnly(ch) {
			return false
		}
	}
	return true
}

// shortcuts lists the menu name and single-word aliases of c, sorted.
func shortcuts(c Command) []string {
	seen := map[string]bool{}
	if menu, ok := telegramCommandNameFromRoute(splitRoute(c.Route)); ok {
		seen[menu] = true
	}
	for _, a := range c.Aliases {
		a = strings.TrimSpace(a)
		if a == "" || strings.Contains(a, " ") {
			continue
		}
		seen[a] = true
		if sa := sanitizeTelegramCommand(a); sa != "" {
			seen[sa] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
