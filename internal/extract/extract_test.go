package extract

import (
	"strings"
	"testing"
)

func TestTextPlain(t *testing.T) {
	got, err := Text("notiz.txt", []byte("Urlaubsantrag Mai 2024"))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "Urlaubsantrag Mai 2024" {
		t.Errorf("got %q", got)
	}
}

func TestTextUnsupportedFormat(t *testing.T) {
	got, err := Text("foto.jpg", []byte{0xff, 0xd8, 0xff}) // matcher falls back to metadata
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty for unsupported format", got)
	}
}

func TestTextMalformedPDF(t *testing.T) {
	if _, err := Text("kaputt.pdf", []byte("not a pdf at all")); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}

func TestHTMLToText(t *testing.T) {
	input := []byte(`<html><head><style>p { color: red }</style></head>
		<body><h1>Krankmeldung</h1><p>Arbeitsunf&auml;higkeit vom <b>03.06.2024</b></p>
		<script>alert("x")</script></body></html>`)

	got, err := HTMLToText(input)
	if err != nil {
		t.Fatalf("HTMLToText: %v", err)
	}
	for _, want := range []string{"Krankmeldung", "Arbeitsunfähigkeit", "03.06.2024"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
	for _, unwanted := range []string{"alert", "color"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("output %q leaked %q", got, unwanted)
		}
	}
}

func TestTextEMLUsesHTMLPath(t *testing.T) {
	got, err := Text("mail.eml", []byte("<p>Bewerbung als Entwickler</p>"))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(got, "Bewerbung als Entwickler") {
		t.Errorf("got %q", got)
	}
}
