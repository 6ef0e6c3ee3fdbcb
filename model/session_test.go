package model

import (
	"errors"
	"testing"
)

func TestDecodeEvent_Update(t *testing.T) {
	frame := []byte(`{"type":"update","id":"T1","title":"Song","artist":"Artist","album":"Album",
		"albumArt":"http://art/x.jpg","score":5,"duration":215000,"time":12.5,"extra":"[00:01.00]A"}`)

	ev, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != EventUpdate || ev.Track == nil {
		t.Fatalf("expected update with track, got %+v", ev)
	}
	tr := ev.Track
	if tr.ID != "T1" || tr.Title != "Song" || tr.Score != 5 {
		t.Errorf("unexpected track fields: %+v", tr)
	}
	if tr.StartOffset != 12.5 {
		t.Errorf("expected start offset 12.5, got %v", tr.StartOffset)
	}
	if tr.DurationSeconds() != 215 {
		t.Errorf("expected 215s duration, got %v", tr.DurationSeconds())
	}
	if tr.ArtURL() != "https://art/x.jpg" {
		t.Errorf("expected https art url, got %q", tr.ArtURL())
	}
	if tr.Lyric != "[00:01.00]A" {
		t.Errorf("unexpected lyric blob %q", tr.Lyric)
	}
}

func TestDecodeEvent_UpdateNullables(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"update","id":"T2","albumArt":null,"extra":null,"duration":1000,"time":0}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Track.Lyric != "" {
		t.Errorf("expected empty lyric, got %q", ev.Track.Lyric)
	}
	if ev.Track.ArtURL() != DefaultAlbumArt {
		t.Errorf("expected default art, got %q", ev.Track.ArtURL())
	}
}

func TestDecodeEvent_UpdateMissingID(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"type":"update","title":"x"}`)); err == nil {
		t.Error("expected error for update without id")
	}
}

func TestDecodeEvent_Ack(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		key   AckKey
		want  float64
	}{
		{"time", `{"type":"ack","key":"time","value":42.25}`, KeyTime, 42.25},
		{"next", `{"type":"ack","key":"next","value":-1}`, KeyNext, -1},
		{"quoted version", `{"type":"ack","key":"version","value":"20514"}`, KeyVersion, 20514},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.frame))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.Type != EventAck || ev.Ack.Key != tt.key {
				t.Fatalf("unexpected event %+v", ev)
			}
			got, err := ev.Ack.Float()
			if err != nil {
				t.Fatalf("unexpected value error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDecodeEvent_Msg(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"msg","value":"hello"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Message != "hello" {
		t.Errorf("expected hello, got %q", ev.Message)
	}
}

func TestDecodeEvent_Unknown(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"bogus"}`))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
	if _, err := DecodeEvent([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestCommand_Encode(t *testing.T) {
	data, err := Command{Key: KeyPending, Value: -1}.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"key":"pending","value":-1}` {
		t.Errorf("unexpected encoding %s", data)
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := map[float64]string{
		-3:     "00:00",
		0:      "00:00",
		65.9:   "01:05",
		3725.2: "1:02:05",
	}
	for in, want := range tests {
		if got := FormatSeconds(in); got != want {
			t.Errorf("FormatSeconds(%v) = %q, want %q", in, got, want)
		}
	}
}
