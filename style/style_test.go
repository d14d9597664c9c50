package style

import "testing"

func TestSelect(t *testing.T) {
	s := NewSelector(nil)

	tests := []struct {
		app  string
		want Style
	}{
		{"Slack", Chat},
		{"Discord.exe", Chat},
		{"Mail", Email},
		{"Microsoft Outlook", Email},
		{"Code", Code},
		{"Visual Studio Code", Code},
		{"iTerm2", Code},
		{"GoLand", Code},
		{"Pages", Prose},
		{"", Prose},
		{"   ", Prose},
	}

	for _, tt := range tests {
		t.Run(tt.app, func(t *testing.T) {
			if got := s.Select(tt.app); got != tt.want {
				t.Errorf("Select(%q) = %q, want %q", tt.app, got, tt.want)
			}
		})
	}
}

func TestSelectCustomRulesFirst(t *testing.T) {
	s := NewSelector([]Rule{
		{Match: []string{"Slack"}, Style: Email},
		{Match: []string{"obsidian"}, Style: Prose},
		{Match: []string{"ignored"}, Style: "shouting"},
		{Match: nil, Style: Code},
	})

	if got := s.Select("slack"); got != Email {
		t.Errorf("custom rule should override default, got %q", got)
	}
	if got := s.Select("Ignored App"); got != Prose {
		t.Errorf("invalid style rule should be skipped, got %q", got)
	}
}

func TestSelectCaseFolding(t *testing.T) {
	s := NewSelector([]Rule{{Match: []string{"ÉCOLE"}, Style: Email}})
	if got := s.Select("école notes"); got != Email {
		t.Errorf("expected case-folded match, got %q", got)
	}
}

func TestInstruction(t *testing.T) {
	for _, st := range []Style{Chat, Email, Code, Prose, "unknown"} {
		if st.Instruction() == "" {
			t.Errorf("empty instruction for %q", st)
		}
	}
}
