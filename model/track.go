package model

import (
	"fmt"
	"strings"
)

// DefaultAlbumArt is shown when the server sends no album art.
const DefaultAlbumArt = "default.png"

// Track is the song the session server is currently broadcasting. A Track is
// immutable once built; the next "update" event produces a new one.
type Track struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album"`
	AlbumArt    string  `json:"albumArt"`
	Score       int     `json:"score"`
	DurationMs  float64 `json:"duration"` // 时长（毫秒）
	StartOffset float64 `json:"time"`     // 服务端已播放的秒数
	Lyric       string  `json:"extra"`    // 原始带时间标签的歌词
}

// DurationSeconds returns the track length in seconds.
func (t *Track) DurationSeconds() float64 {
	return t.DurationMs / 1000
}

// ArtURL returns the album art URL to display, upgraded to https.
func (t *Track) ArtURL() string {
	if t.AlbumArt == "" {
		return DefaultAlbumArt
	}
	return strings.Replace(t.AlbumArt, "http://", "https://", 1)
}

// FormatSeconds renders a playback position as mm:ss or h:mm:ss.
func FormatSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(sec)
	hour := total / 3600
	minute := (total / 60) % 60
	second := total % 60
	if hour > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hour, minute, second)
	}
	return fmt.Sprintf("%02d:%02d", minute, second)
}
