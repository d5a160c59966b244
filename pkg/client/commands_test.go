package client

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/mustangchat/pkg/protocol"
)

func msg(m protocol.Message) *protocol.Message { return &m }

func TestSessionHandle(t *testing.T) {
	s := NewSession()

	steps := []struct {
		line       string
		want       Command
		wantActive string
		wantJoined []string
	}{
		{"", Command{}, "Common", []string{"Common"}},
		{"hello", Command{Message: msg(protocol.Say("Common", "hello"))}, "Common", []string{"Common"}},
		{"/join dev", Command{Message: msg(protocol.Join("dev"))}, "dev", []string{"Common", "dev"}},
		{"  typing in dev  ", Command{Message: msg(protocol.Say("dev", "typing in dev"))}, "dev", []string{"Common", "dev"}},
		{"/switch Common", Command{Output: "Switched to Common"}, "Common", []string{"Common", "dev"}},
		{"/switch ops", Command{Output: OutputJoinFirst}, "Common", []string{"Common", "dev"}},
		{"/switch dev", Command{Output: "Switched to dev"}, "dev", []string{"Common", "dev"}},
		{"/leave ops", Command{Output: OutputNotJoined}, "dev", []string{"Common", "dev"}},
		{"/leave dev", Command{Message: msg(protocol.Leave("dev"))}, "Common", []string{"Common"}},
		{"/who Common", Command{Message: msg(protocol.WhoIsOn("Common"))}, "Common", []string{"Common"}},
		{"/list", Command{Message: msg(protocol.ListChannels())}, "Common", []string{"Common"}},
		{"/join", Command{Output: "usage: /join <channel>"}, "Common", []string{"Common"}},
		{"/exit", Command{Message: msg(protocol.Deregister()), Output: OutputGoodbye, Quit: true}, "Common", []string{"Common"}},
	}
	for _, st := range steps {
		got := s.Handle(st.line)
		if diff := cmp.Diff(st.want, got); diff != "" {
			t.Fatalf("Handle(%q) mismatch (-want +got):\n%s", st.line, diff)
		}
		if s.Active() != st.wantActive {
			t.Fatalf("after %q: active = %q, want %q", st.line, s.Active(), st.wantActive)
		}
		if diff := cmp.Diff(st.wantJoined, s.Joined()); diff != "" {
			t.Fatalf("after %q: joined mismatch (-want +got):\n%s", st.line, diff)
		}
	}
}

func TestSessionRejectsLocally(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"channel too long", "/join " + strings.Repeat("c", 33)},
		{"text too long", strings.Repeat("x", 257)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewSession().Handle(tt.line)
			if got.Message != nil {
				t.Fatalf("Handle(%q) sent %+v, want local rejection", tt.line, *got.Message)
			}
			if got.Output == "" {
				t.Fatalf("Handle(%q) printed nothing", tt.line)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	got := NewSession().Handle("/help")
	for _, cmd := range []string{"/join", "/leave", "/switch", "/list", "/who", "/exit"} {
		if !strings.Contains(got.Output, cmd) {
			t.Errorf("help text is missing %s", cmd)
		}
	}
}

func TestLeaveCommonFallsBackToCommon(t *testing.T) {
	s := NewSession()
	s.Handle("/leave Common")
	if s.Active() != "Common" || len(s.Joined()) != 0 {
		t.Fatalf("active=%q joined=%v", s.Active(), s.Joined())
	}
	// Saying into the still-active Common is left for the server to refuse.
	got := s.Handle("anyone?")
	if diff := cmp.Diff(msg(protocol.Say("Common", "anyone?")), got.Message); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
