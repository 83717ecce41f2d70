package adapter

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "alertbot/internal/transport"
)

func TestSplitTelegramTextShort(t *testing.T) {
	got := splitTelegramText("hello", 10, "")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	s := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	got := splitTelegramText(s, 10, "")
	if len(got) != 2 || got[0] != "aaaaaa" || got[1] != "bbbbbb" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTelegramTextAvoidsHTMLTags(t *testing.T) {
	s := "abcdef<b>bold</b>"
	got := splitTelegramText(s, 8, "HTML")
	for _, c := range got {
		if strings.Count(c, "<") != strings.Count(c, ">") {
			t.Fatalf("chunk splits a tag: %q (all %q)", c, got)
		}
	}
	if strings.Join(got, "") != s {
		t.Fatalf("lost text: %q", got)
	}
}

func TestSendOptionsMapping(t *testing.T) {
	opt := &kit.SendOptions{Silent: true, Buttons: [][]kit.Button{{{Text: "Read", Data: "alerts:read:n1"}}}}
	so := sendOptions(opt, 7, true)
	if !so.DisableNotification || so.ThreadID != 7 {
		t.Fatalf("got %+v", so)
	}
	if so.ReplyMarkup == nil || so.ReplyMarkup.InlineKeyboard[0][0].Data != "alerts:read:n1" {
		t.Fatalf("markup: %+v", so.ReplyMarkup)
	}
	if sendOptions(opt, 0, false).ReplyMarkup != nil {
		t.Fatal("markup attached to continuation chunk")
	}
}

func TestWrapErrClassifies(t *testing.T) {
	forbidden := wrapErr(fmt.Errorf("telegram: Forbidden: bot was blocked by the user (403)"))
	if !errors.Is(forbidden, kit.ErrForbidden) {
		t.Fatalf("want forbidden, got %v", forbidden)
	}
	var api *APIError
	if !errors.As(forbidden, &api) || !api.Permanent() {
		t.Fatalf("want permanent APIError, got %#v", forbidden)
	}

	flood := wrapErr(fmt.Errorf("telegram: Too Many Requests: retry after 3 (429)"))
	if errors.As(flood, &api) && api.Permanent() {
		t.Fatal("429 must be retryable")
	}

	if !errors.Is(wrapErr(tele.ErrChatNotFound), kit.ErrNotFound) {
		t.Fatal("chat not found must map to ErrNotFound")
	}

	plain := errors.New("dial tcp: timeout")
	if wrapErr(plain) != plain {
		t.Fatal("network errors pass through")
	}
	if wrapErr(nil) != nil {
		t.Fatal("nil stays nil")
	}
}
