package probe

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"dupelens/internal/identity"
)

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	BitRate   string `json:"bit_rate"`
}

type probeFormat struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
	BitRate    string `json:"bit_rate"`
}

func parseOutput(output []byte) (identity.VideoMeta, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return identity.VideoMeta{}, err
	}

	duration := parseFloat(result.Format.Duration)
	if duration <= 0 {
		return identity.VideoMeta{}, errors.New("no usable duration")
	}

	meta := identity.VideoMeta{
		DurationSeconds: duration,
		Container:       normalizeContainer(result.Format.FormatName),
		BitRate:         parseInt(result.Format.BitRate),
	}
	// First stream of each type wins, matching ffprobe's v:0 / a:0 selectors.
	var seenVideo, seenAudio bool
	for _, stream := range result.Streams {
		switch strings.ToLower(strings.TrimSpace(stream.CodecType)) {
		case "video":
			if seenVideo {
				continue
			}
			seenVideo = true
			meta.VideoCodec = strings.ToLower(strings.TrimSpace(stream.CodecName))
			meta.Width = stream.Width
			meta.Height = stream.Height
			meta.VideoBitRate = parseInt(stream.BitRate)
		case "audio":
			if seenAudio {
				continue
			}
			seenAudio = true
			meta.AudioCodec = strings.ToLower(strings.TrimSpace(stream.CodecName))
		}
	}
	return meta, nil
}

// normalizeContainer collapses ffprobe's comma-separated demuxer aliases
// ("mov,mp4,m4a,3gp,3g2,mj2") to the first name so equal containers compare
// equal across files.
func normalizeContainer(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if idx := strings.IndexByte(name, ','); idx >= 0 {
		name = name[:idx]
	}
	return name
}

func parseFloat(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

func parseInt(value string) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
