package resolver

import (
	"encoding/base64"
	"errors"
	"testing"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

const dashWithInit = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static">
  <Period>
    <AdaptationSet mimeType="audio/mp4">
      <Representation id="FLAC,44100,16" codecs="flac">
        <SegmentTemplate initialization="https://sp.example/0.mp4?token=a&amp;b=1" media="https://sp.example/$Number$.mp4?token=a" startNumber="1"/>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

const dashMediaOnly = `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011">
  <BaseURL>https://seg.example/audio/</BaseURL>
  <Period>
    <AdaptationSet>
      <SegmentTemplate media="$RepresentationID$/seg-$Number%05d$.m4a" startNumber="3"/>
      <Representation id="hi"/>
    </AdaptationSet>
  </Period>
</MPD>`

const dashScanOnly = `<MPD><Period><AdaptationSet><Representation id="x">
  <Label>mirror https://files.example/track/77.flac?sig=q</Label>
</Representation></AdaptationSet></Period></MPD>`

func TestExtractURL(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"top-level urls", `{"urls":["https://a/1.flac","https://a/2.flac"]}`, "https://a/1.flac"},
		{"plain list", `["", "https://b/1.mp3"]`, "https://b/1.mp3"},
		{"netease data array", `{"code":200,"data":[{"id":1,"url":"https://m/1.mp3"}]}`, "https://m/1.mp3"},
		{"data object url", `{"data":{"url":"https://q/1.flac"}}`, "https://q/1.flac"},
		{"json manifest", `{"data":{"manifestMimeType":"application/vnd.tidal.bts","manifest":"` + b64(`{"mimeType":"audio/flac","urls":["https://t/1.flac"]}`) + `"}}`, "https://t/1.flac"},
		{"dash initialization", `{"manifest":"` + b64(dashWithInit) + `"}`, "https://sp.example/0.mp4?token=a&b=1"},
		{"dash media template", `{"manifest":"` + b64(dashMediaOnly) + `"}`, "https://seg.example/audio/hi/seg-00003.m4a"},
		{"dash scan", `{"manifest":"` + b64(dashScanOnly) + `"}`, "https://files.example/track/77.flac?sig=q"},
		{"raw base64 body", b64(`{"urls":["https://raw/1.flac"]}`), "https://raw/1.flac"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractURL([]byte(tt.body))
			if err != nil {
				t.Fatalf("ExtractURL error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractURLUnparsable(t *testing.T) {
	bodies := map[string]string{
		"empty":          "   ",
		"html":           "<html><body>502</body></html>",
		"no url":         `{"data":{"foo":"bar"}}`,
		"netease error":  `{"code":404,"msg":"not found","data":[{"url":"https://x/1.mp3"}]}`,
		"empty url list": `{"urls":[]}`,
		"dash relative":  `{"manifest":"` + b64(`<MPD><Period><AdaptationSet><Representation id="a"><SegmentTemplate media="seg-$Number$.m4a"/></Representation></AdaptationSet></Period></MPD>`) + `"}`,
		"bad manifest":   `{"manifest":"` + b64("plain text") + `"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractURL([]byte(body))
			if !errors.Is(err, ErrUnparsable) {
				t.Errorf("err = %v, want ErrUnparsable", err)
			}
		})
	}
}

func TestSubstituteNumber(t *testing.T) {
	if got := substituteNumber("seg-$Number$.mp4", ""); got != "seg-1.mp4" {
		t.Errorf("default start: %q", got)
	}
	if got := substituteNumber("seg-$Number%03d$.mp4", "7"); got != "seg-007.mp4" {
		t.Errorf("padded: %q", got)
	}
}
