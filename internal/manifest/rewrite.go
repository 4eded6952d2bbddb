// Package manifest rewrites DASH manifests so segment URLs point back at
// this gateway. The transform is best-effort text splicing over quoted
// attribute values, not XML-correct rewriting: every byte outside the
// matched quoted spans is preserved, malformed markup included.
package manifest

import (
	"fmt"
	"strings"
)

// Segment-naming templates. The $RepresentationID$ and zero-padded $Number$
// placeholders are expanded by the player, never by the gateway.
const (
	InitSegmentTemplate  = "init-stream$RepresentationID$.m4s"
	MediaSegmentTemplate = "chunk-stream$RepresentationID$-$Number%05d$.m4s"
)

// Rewrite points every initialization= and media= attribute at
// {baseURL}/{mediaID}/chunk/ plus the fixed segment template. Input with
// neither token comes back byte-identical.
func Rewrite(content, baseURL, mediaID string) string {
	base := strings.TrimRight(baseURL, "/") + "/" + mediaID + "/chunk/"
	content = replaceAttr(content, "initialization=", base+InitSegmentTemplate)
	content = replaceAttr(content, "media=", base+MediaSegmentTemplate)
	return content
}

// replaceAttr scans left-to-right for the literal attr token and replaces
// the contents of the first quoted span after each occurrence. Matches do
// not overlap: scanning resumes at the closing quote.
func replaceAttr(s, attr, replacement string) string {
	if !strings.Contains(s, attr) {
		return s
	}
	var b strings.Builder
	pos := 0
	for {
		rel := strings.Index(s[pos:], attr)
		if rel < 0 {
			break
		}
		after := pos + rel + len(attr)
		q := strings.IndexByte(s[after:], '"')
		if q < 0 {
			break
		}
		start := after + q + 1
		end := strings.IndexByte(s[start:], '"')
		if end < 0 {
			break
		}
		b.WriteString(s[pos:start])
		b.WriteString(replacement)
		pos = start + end
	}
	b.WriteString(s[pos:])
	return b.String()
}

// InjectSubtitleTracks inserts one text AdaptationSet per language before
// the first </Period>. A manifest without that marker is returned
// unmodified; that is a no-op, not an error.
func InjectSubtitleTracks(content, subtitleBaseURL string, langs []string) string {
	idx := strings.Index(content, "</Period>")
	if idx < 0 || len(langs) == 0 {
		return content
	}
	base := strings.TrimRight(subtitleBaseURL, "/") + "/"
	var b strings.Builder
	for i, lang := range langs {
		fmt.Fprintf(&b, `<AdaptationSet id="%d" contentType="text" mimeType="text/vtt" lang="%s" segmentAlignment="true">
<Representation id="subtitles_%s" mimeType="text/vtt" codecs="wvtt" bandwidth="256">
<BaseURL>%s%s.vtt</BaseURL>
</Representation>
</AdaptationSet>
`, 100+i, lang, lang, base, lang)
	}
	return content[:idx] + b.String() + content[idx:]
}
