// Package extract locates a usable video URL inside the upstream API's
// heterogeneous response shapes. Strategies are ordered pure functions; the
// first one that yields a validated URL wins.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/reelbot/pkg/videogen"
)

const minURLLength = 10

var invalidURLChars = []string{"<", ">", `"`, "'", "\n", "\r", "\t"}

var (
	videoTagRe = regexp.MustCompile(`(?i)<video[^>]*src=["']([^"'>]+)["'][^>]*>`)
	srcAttrRe  = regexp.MustCompile(`(?i)src=["']([^"'>]+\.mp4[^"'>]*)["']`)
	bareURLRe  = regexp.MustCompile(`(?i)(https?://[^\s<>"')\]}]+\.mp4(\?[^\s<>"')\]}]*)?)`)
	mdLinkRe   = regexp.MustCompile(`(?i)!?\[[^\]]*\]\(([^)]+\.mp4[^)]*)\)`)
	mdRefRe    = regexp.MustCompile(`(?i)!?\[[^\]]*\]:\s*([^\s]+\.mp4[^\s]*)`)
)

// FromChunk attempts structured extraction on a decoded stream frame: a
// top-level video_url field first, then attachment-style lists on each
// choice's message or delta. Returns ("", false) when nothing usable is
// present; a frame missing these fields is normal, not an error.
func FromChunk(chunk *videogen.StreamChunk) (string, bool) {
	if chunk == nil {
		return "", false
	}
	if IsValidVideoURL(chunk.VideoURL) {
		return chunk.VideoURL, true
	}
	for _, choice := range chunk.Choices {
		for _, msg := range []*videogen.ChunkMessage{choice.Message, choice.Delta} {
			if msg == nil {
				continue
			}
			for _, list := range [][]videogen.MediaRef{msg.Attachments, msg.Media, msg.Files} {
				for _, ref := range list {
					if IsValidVideoURL(ref.URL) {
						return ref.URL, true
					}
				}
			}
		}
	}
	return "", false
}

// textStrategies are tried in order on every text snapshot.
var textStrategies = []func(string) (string, bool){
	fromHTMLTag,
	fromBareURL,
	fromMarkdown,
}

// FromText scans accumulated response text with each strategy in priority
// order. As a last resort, HTML-looking text is converted to markdown and
// rescanned, since some deployments wrap the result in a full HTML page.
func FromText(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, strategy := range textStrategies {
		if url, ok := strategy(text); ok {
			return url, true
		}
	}
	if looksLikeHTML(text) {
		md, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			slog.Debug("html to markdown conversion failed", "error", err)
			return "", false
		}
		if url, ok := fromMarkdown(md); ok {
			return url, true
		}
		if url, ok := fromBareURL(md); ok {
			return url, true
		}
	}
	return "", false
}

func fromHTMLTag(text string) (string, bool) {
	if !strings.Contains(text, "<video") && !strings.Contains(text, "src=") {
		return "", false
	}
	for _, re := range []*regexp.Regexp{videoTagRe, srcAttrRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			if IsValidVideoURL(m[1]) {
				return m[1], true
			}
		}
	}
	return "", false
}

func fromBareURL(text string) (string, bool) {
	for _, m := range bareURLRe.FindAllStringSubmatch(text, -1) {
		if IsValidVideoURL(m[1]) {
			return m[1], true
		}
	}
	return "", false
}

func fromMarkdown(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{mdLinkRe, mdRefRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			if IsValidVideoURL(m[1]) {
				return m[1], true
			}
		}
	}
	return "", false
}

func looksLikeHTML(text string) bool {
	return strings.Contains(text, "<") && strings.Contains(text, ">")
}

// IsValidVideoURL is the acceptance gate applied to every candidate. A
// candidate that fails is discarded as if the strategy found nothing.
func IsValidVideoURL(url string) bool {
	if len(url) < minURLLength {
		return false
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	if !strings.Contains(strings.ToLower(url), ".mp4") {
		return false
	}
	for _, c := range invalidURLChars {
		if strings.Contains(url, c) {
			return false
		}
	}
	return true
}
