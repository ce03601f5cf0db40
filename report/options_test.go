package report

import "testing"

func TestResolveGeometry(t *testing.T) {
	cases := []struct {
		name     string
		size     PageSize
		margin   int
		wantSize PageSize
		wantErr  ErrorKind
	}{
		{name: "letter default", size: "Letter", margin: 40, wantSize: PageLetter},
		{name: "a4 lowercase", size: "a4", margin: 40, wantSize: PageA4},
		{name: "zero margin", size: "us-letter", margin: 0, wantSize: PageLetter},
		{name: "width exhausted", size: "Letter", margin: 306, wantErr: KindGeometry},
		{name: "huge margin", size: "Letter", margin: 2000, wantErr: KindGeometry},
		{name: "unknown size", size: "Legal", margin: 40, wantErr: KindValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			geo, err := ResolveGeometry(RenderOptions{PageSize: tc.size, MarginPx: tc.margin})
			if tc.wantErr != "" {
				if KindFromError(err) != tc.wantErr {
					t.Fatalf("expected %s, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if geo.PageSize != tc.wantSize {
				t.Fatalf("expected %s, got %s", tc.wantSize, geo.PageSize)
			}
			if geo.ContentWidth() <= 0 || geo.ContentHeight() <= 0 {
				t.Fatalf("expected positive content area, got %+v", geo)
			}
		})
	}
}

func TestResolveGeometry_LetterDimensions(t *testing.T) {
	geo, err := ResolveGeometry(DefaultRenderOptions())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if geo.Width != 612 || geo.Height != 792 {
		t.Fatalf("unexpected letter size %+v", geo)
	}
	if geo.ContentWidth() != 532 || geo.Bottom() != 752 {
		t.Fatalf("unexpected content box %+v", geo)
	}
}

func TestMergeOptions(t *testing.T) {
	size := PageA4
	margin := 0
	tables := false
	merged := MergeOptions(DefaultRenderOptions(), OptionsOverride{
		PageSize:      &size,
		MarginPx:      &margin,
		IncludeTables: &tables,
	})
	if merged.PageSize != PageA4 || merged.MarginPx != 0 || merged.IncludeTables {
		t.Fatalf("override not applied: %+v", merged)
	}
	if !merged.IncludeFencedCode || merged.FontFamily != DefaultFontFamily {
		t.Fatalf("unset fields should keep defaults: %+v", merged)
	}
}

func TestResolveFontFamily(t *testing.T) {
	cases := map[string]string{
		"Arial":     "Helvetica",
		"helvetica": "Helvetica",
		" Times ":   "Times",
		"monospace": "Courier",
	}
	for input, want := range cases {
		got, err := ResolveFontFamily(input)
		if err != nil {
			t.Fatalf("resolve %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("resolve %q: expected %s, got %s", input, want, got)
		}
	}
	if _, err := ResolveFontFamily("Papyrus"); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
