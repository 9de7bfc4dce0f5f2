package identity

import "testing"

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"TRT 1":              "trt1",
		"Show TV HD":         "showtvhd",
		"Çocuk Kanalı":       "cocukkanal",
		"Bein Sports 1 (TR)": "beinsports1tr",
		"Télé-Québec":        "telequebec",
		"  ":                 "",
		"":                   "",
		"***":                "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"", "Sports HD", "Çocuk Kanalı", "İZ TV", "ÆØÅ 24/7", "\x00\xff", "a b c"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestStripKnownSuffixes(t *testing.T) {
	tests := map[string]string{
		"Sports HD":       "Sports",
		"Sports (HD)":     "Sports",
		"Sports HD TR":    "Sports",
		"Sports":          "Sports",
		"HD":              "HD",
		"HD TR":           "HD",
		"  News  UHD  ":   "News",
		"Cinema 4K":       "Cinema",
		"History Channel": "History Channel",
		"":                "",
	}
	for in, want := range tests {
		if got := StripKnownSuffixes(in); got != want {
			t.Errorf("StripKnownSuffixes(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRulesWith(t *testing.T) {
	r := DefaultRules().With("plus")
	if got := r.StripSuffixes("Movie Plus HD"); got != "Movie" {
		t.Fatalf("StripSuffixes = %q, want Movie", got)
	}
	if got := (Rules{}).StripSuffixes("Movie HD"); got != "Movie HD" {
		t.Fatalf("zero Rules stripped %q", got)
	}
	if r.Suffixes() != DefaultRules().Suffixes()+1 {
		t.Fatalf("Suffixes() = %d", r.Suffixes())
	}
}

func TestKey(t *testing.T) {
	r := DefaultRules()
	if r.Key("Sports HD") != r.Key("Sports") {
		t.Fatalf("Key(Sports HD)=%q Key(Sports)=%q", r.Key("Sports HD"), r.Key("Sports"))
	}
}
