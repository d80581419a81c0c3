package fpcache

import (
	"time"

	"dupelens/internal/identity"
)

// cacheLine is the wire form of one appended record. Fields beyond the
// identity triple are optional; readers tolerate unknown fields from newer
// versions because encoding/json ignores them.
type cacheLine struct {
	Path      string       `json:"path"`
	Size      int64        `json:"size"`
	MTimeNS   int64        `json:"mtime_ns"`
	FullHash  *string      `json:"full_hash,omitempty"`
	Partial   *partialLine `json:"partial,omitempty"`
	Video     *videoLine   `json:"video_meta,omitempty"`
	Signature *[]uint64    `json:"phash,omitempty"`
}

type partialLine struct {
	Algorithm string `json:"algo"`
	Head      string `json:"head"`
	Tail      string `json:"tail"`
	Mid       string `json:"mid,omitempty"`
	SpanBytes int64  `json:"span_bytes"`
}

type videoLine struct {
	DurationSeconds float64 `json:"duration"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	Container       string  `json:"container,omitempty"`
	VideoCodec      string  `json:"video_codec,omitempty"`
	AudioCodec      string  `json:"audio_codec,omitempty"`
	BitRate         int64   `json:"bit_rate,omitempty"`
	VideoBitRate    int64   `json:"video_bit_rate,omitempty"`
}

func (l cacheLine) identity() identity.FileIdentity {
	return identity.FileIdentity{
		Path:    l.Path,
		Size:    l.Size,
		ModTime: time.Unix(0, l.MTimeNS),
	}
}

// mergeInto overlays the fields present in this line onto the record. Fields
// absent from the line keep their earlier values.
func (l cacheLine) mergeInto(rec *identity.Record) {
	if l.FullHash != nil {
		rec.SetFullHash(*l.FullHash)
	}
	if l.Partial != nil {
		rec.SetPartial(identity.PartialHash{
			Algorithm: l.Partial.Algorithm,
			Head:      l.Partial.Head,
			Tail:      l.Partial.Tail,
			Mid:       l.Partial.Mid,
			SpanBytes: l.Partial.SpanBytes,
		})
	}
	if l.Video != nil {
		rec.SetVideo(identity.VideoMeta{
			DurationSeconds: l.Video.DurationSeconds,
			Width:           l.Video.Width,
			Height:          l.Video.Height,
			Container:       l.Video.Container,
			VideoCodec:      l.Video.VideoCodec,
			AudioCodec:      l.Video.AudioCodec,
			BitRate:         l.Video.BitRate,
			VideoBitRate:    l.Video.VideoBitRate,
		})
	}
	if l.Signature != nil {
		rec.SetSignature(identity.Signature(*l.Signature))
	}
}

func newPartialLine(p identity.PartialHash) *partialLine {
	return &partialLine{
		Algorithm: p.Algorithm,
		Head:      p.Head,
		Tail:      p.Tail,
		Mid:       p.Mid,
		SpanBytes: p.SpanBytes,
	}
}

func newVideoLine(m identity.VideoMeta) *videoLine {
	return &videoLine{
		DurationSeconds: m.DurationSeconds,
		Width:           m.Width,
		Height:          m.Height,
		Container:       m.Container,
		VideoCodec:      m.VideoCodec,
		AudioCodec:      m.AudioCodec,
		BitRate:         m.BitRate,
		VideoBitRate:    m.VideoBitRate,
	}
}
