package router

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTelegramCommand(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Read All", "read_all"},
		{"clear-all", "clear_all"},
		{"--weird__name--", "weird_name"},
		{"5min", "cmd_5min"},
		{"émoji🚨", "moji"},
		{"", ""},
		{"a_very_long_command_name_that_goes_past_the_limit", "a_very_long_command_name_that_go"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, sanitizeTelegramCommand(tc.in), tc.in)
	}
}

func testTree() (*cmdNode, []Command) {
	noop := func(context.Context, *Request) error { return nil }
	cmds := []Command{
		{Route: "alerts", Description: "list notifications", Access: AccessEveryone, Handle: noop},
		{Route: "read all", Description: "mark everything read", Access: AccessOwnerOnly, Handle: noop},
		{Route: "read one", Description: "mark one read", Access: AccessOwnerOnly, Handle: noop},
		{Route: "weather", Aliases: []string{"rain-alert"}, Description: "schedule a weather alert", Usage: "/weather <text>", Access: AccessOwnerOnly, Handle: noop},
	}
	root := newRoot()
	for _, c := range cmds {
		root.add(splitRoute(c.Route), c)
	}
	return root, cmds
}

func TestBuildTelegramMenuCommands(t *testing.T) {
	root, cmds := testTree()
	menu := buildTelegramMenuCommands(root, cmds)

	names := make([]string, 0, len(menu))
	for _, c := range menu {
		names = append(names, c.Command)
	}
	assert.Equal(t, []string{"alerts", "read", "weather", "read_all", "read_one"}, names)
	assert.Equal(t, "list notifications", menu[0].Description)
	assert.Equal(t, "🔒 subcommands: all, one", menu[1].Description)
	assert.Equal(t, "🔒 mark everything read", menu[3].Description)
}

func TestHelpNode(t *testing.T) {
	root, _ := testTree()
	weather, _ := root.child("weather")
	out := helpNode(weather, []string{"weather"}).String()
	assert.Contains(t, out, "<code>/weather</code>")
	assert.Contains(t, out, "owners only")
	assert.Contains(t, out, "<code>/weather &lt;text&gt;</code>")
	assert.Contains(t, out, "<code>/rain_alert</code>")
	assert.Contains(t, out, "<code>/rain-alert</code>")

	idx := helpIndex(root).String()
	assert.Less(t, strings.Index(idx, "/alerts"), strings.Index(idx, "/read"), "open commands first")
}
