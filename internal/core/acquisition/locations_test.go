package acquisition

import "testing"

func TestLocationRender(t *testing.T) {
	locs := DefaultLocations()
	if got := locs[0].Render("C1", "v42"); got != "stories/C1/v42.json" {
		t.Errorf("story path = %q", got)
	}
	if got := locs[2].Render("C1", "v42"); got != "drafts/C1/v42/draft_content.json" {
		t.Errorf("draft path = %q", got)
	}
	if got := locs[0].Render("../etc", "a/b"); got != "stories/..%2Fetc/a%2Fb.json" {
		t.Errorf("escaped path = %q", got)
	}
	if got := locs[0].Render("..", "."); got != "stories/%2E%2E/%2E.json" {
		t.Errorf("dot ids path = %q", got)
	}
}

func TestLocationRender_DistinctIDsNeverCollide(t *testing.T) {
	pairs := [][2]string{
		{"a/b", "a_b"},
		{"a\\b", "a_b"},
		{"a/b", "a%2Fb"},
		{"..", "_"},
	}
	for _, loc := range DefaultLocations() {
		for _, p := range pairs {
			if loc.Render(p[0], "v1") == loc.Render(p[1], "v1") {
				t.Errorf("%s: creators %q and %q share path %s", loc.Name, p[0], p[1], loc.Render(p[0], "v1"))
			}
		}
	}
	if Key("a/b", "c") == Key("a", "b/c") {
		t.Error("keys must not collide across the creator/content boundary")
	}
	if Key("a/b", "v1") == Key("a_b", "v1") {
		t.Error("keys must not collide after escaping")
	}
}

func TestVerdict(t *testing.T) {
	tests := []struct {
		policy  MatchPolicy
		found   int
		checked int
		want    bool
	}{
		{MatchAny, 1, 4, true},
		{MatchAny, 0, 4, false},
		{MatchAll, 3, 4, false},
		{MatchAll, 4, 4, true},
		{MatchAll, 0, 0, false},
	}

	for _, tt := range tests {
		if got := Verdict(tt.policy, tt.found, tt.checked); got != tt.want {
			t.Errorf("Verdict(%s, %d, %d) = %v, want %v", tt.policy, tt.found, tt.checked, got, tt.want)
		}
	}
}

func TestKey(t *testing.T) {
	if Key("C1", "v1") != Key("C1", "v1") {
		t.Error("key must be deterministic")
	}
	if Key("C1", "v1") == Key("C2", "v1") {
		t.Error("keys for different creators must differ")
	}
}
