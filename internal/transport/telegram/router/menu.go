package router

import (
	"sort"
	"strings"

	kit "alertbot/internal/transport"
)

const (
	maxMenuCommands  = 100
	maxCommandLen    = 32
	maxMenuDescBytes = 256
)

// sanitizeTelegramCommand maps s onto Telegram's [a-z0-9_]{1,32} command
// alphabet. Separators collapse to one underscore and other runes are dropped.
// Names starting with a digit get a "cmd_" prefix.
func sanitizeTelegramCommand(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		case r == '_', r == '-', r == '/', r == ' ', r == '\t':
			pending = true
		}
	}
	out := b.String()
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > maxCommandLen {
		out = strings.TrimRight(out[:maxCommandLen], "_")
	}
	return out
}

// telegramCommandNameFromRoute joins a route with underscores:
//
//	["read", "all"] -> "read_all"
//	["clear-all"]   -> "clear_all"
func telegramCommandNameFromRoute(route []string) (string, bool) {
	out := sanitizeTelegramCommand(strings.Join(route, "_"))
	return out, out != ""
}

// buildTelegramMenuCommands lists top-level commands first, then shortcuts
// for multi-word routes. Owner-only entries carry a lock.
func buildTelegramMenuCommands(root *cmdNode, leafCmds []Command) []kit.BotCommand {
	type entry struct {
		desc string
		prio int
	}
	byCmd := map[string]entry{}
	add := func(name, desc string, owner bool, prio int) {
		name = sanitizeTelegramCommand(name)
		if name == "" {
			return
		}
		desc = strings.Join(strings.Fields(desc), " ")
		if desc == "" {
			desc = name
		}
		if owner {
			desc = "🔒 " + desc
		}
		if len(desc) > maxMenuDescBytes {
			desc = desc[:maxMenuDescBytes]
		}
		if cur, ok := byCmd[name]; ok && cur.prio <= prio {
			return
		}
		byCmd[name] = entry{desc: desc, prio: prio}
	}

	for _, name := range root.childNames() {
		n, _ := root.child(name)
		add(name, describeNode(n), ownerOnly(n), 0)
	}
	for _, c := range leafCmds {
		route := splitRoute(c.Route)
		if len(route) < 2 {
			continue
		}
		if menu, ok := telegramCommandNameFromRoute(route); ok {
			add(menu, c.Description, c.Access == AccessOwnerOnly, 1)
		}
	}

	names := make([]string, 0, len(byCmd))
	for name := range byCmd {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := byCmd[names[i]], byCmd[names[j]]
		if a.prio != b.prio {
			return a.prio < b.prio
		}
		return names[i] < names[j]
	})
	if len(names) > maxMenuCommands {
		names = names[:maxMenuCommands]
	}

	out := make([]kit.BotCommand, 0, len(names))
	for _, name := range names {
		out = append(out, kit.BotCommand{Command: name, Description: byCmd[name].desc})
	}
	return out
}
