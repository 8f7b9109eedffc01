package message

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	urlRE     = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"']+`)
	blockRE   = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</tr>|</li>|</h[1-6]>`)
	blankRE   = regexp.MustCompile(`\n{3,}`)
	stripHTML = bluemonday.StrictPolicy()
)

// TextToHTML escapes text, links URLs and turns line breaks into <br/>.
func TextToHTML(text string) string {
	text = html.EscapeString(text)
	text = urlRE.ReplaceAllStringFunc(text, wrapURL)
	replacer := strings.NewReplacer("\r\n", "<br/>\n", "\r", "<br/>\n", "\n", "<br/>\n")
	return replacer.Replace(text)
}

func wrapURL(url string) string {
	unescaped := strings.ReplaceAll(url, "&amp;", "&")
	return fmt.Sprintf("<a href=\"%s\" target=\"_blank\">%s</a>", unescaped, url)
}

// HTMLToText reduces an HTML body to plain text for the text/plain
// alternative. Block ends become line breaks before the tags are stripped.
func HTMLToText(body string) string {
	body = blockRE.ReplaceAllStringFunc(body, func(tag string) string { return tag + "\n" })
	text := html.UnescapeString(stripHTML.Sanitize(body))
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = blankRE.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
