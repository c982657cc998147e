package preview

import (
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
)

// DefaultOfficeViewer embeds office documents through Microsoft's viewer.
const DefaultOfficeViewer = "https://view.officeapps.live.com/op/embed.aspx?src="

var (
	youtubeRe = regexp.MustCompile(`(?i)(?:youtube\.com/(?:watch\?(?:[^#]*&)?v=|embed/|shorts/)|youtu\.be/)([A-Za-z0-9_-]+)`)
	vimeoRe   = regexp.MustCompile(`(?i)vimeo\.com/(?:video/)?(\d+)`)
	driveRe   = regexp.MustCompile(`(?i)drive\.google\.com/file/d/([A-Za-z0-9_-]+)`)
	docsRe    = regexp.MustCompile(`(?i)docs\.google\.com/(document|presentation|spreadsheets)/d/([A-Za-z0-9_-]+)`)
)

var (
	officeExts = []string{"doc", "docx", "ppt", "pptx", "xls", "xlsx"}
	imageExts  = []string{"png", "jpg", "jpeg", "gif", "webp", "svg"}
	videoExts  = []string{"mp4", "webm", "ogg", "mov", "m4v"}
)

// DefaultRules returns the rule list in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "youtube", Match: matchYouTube},
		{Name: "vimeo", Match: matchVimeo},
		{Name: "google-drive", Match: matchDrive},
		{Name: "google-docs", Match: matchDocs},
		officeRule(DefaultOfficeViewer),
		extensionRule("pdf", KindPDF, []string{"pdf"}),
		extensionRule("image", KindImage, imageExts),
		extensionRule("video", KindVideo, videoExts),
	}
}

func matchYouTube(candidate string) (Result, bool) {
	m := youtubeRe.FindStringSubmatch(candidate)
	if m == nil {
		return Result{}, false
	}
	return Result{Kind: KindIframe, URL: "https://www.youtube.com/embed/" + m[1]}, true
}

func matchVimeo(candidate string) (Result, bool) {
	m := vimeoRe.FindStringSubmatch(candidate)
	if m == nil {
		return Result{}, false
	}
	return Result{Kind: KindIframe, URL: "https://player.vimeo.com/video/" + m[1]}, true
}

func matchDrive(candidate string) (Result, bool) {
	m := driveRe.FindStringSubmatch(candidate)
	if m == nil {
		return Result{}, false
	}
	return Result{Kind: KindIframe, URL: "https://drive.google.com/file/d/" + m[1] + "/preview"}, true
}

func matchDocs(candidate string) (Result, bool) {
	m := docsRe.FindStringSubmatch(candidate)
	if m == nil {
		return Result{}, false
	}
	return Result{Kind: KindIframe, URL: "https://docs.google.com/" + strings.ToLower(m[1]) + "/d/" + m[2] + "/preview"}, true
}

func officeRule(viewer string) Rule {
	return Rule{
		Name: "office",
		Match: func(candidate string) (Result, bool) {
			if !slices.Contains(officeExts, Extension(candidate)) {
				return Result{}, false
			}
			return Result{Kind: KindIframe, URL: viewer + url.QueryEscape(candidate)}, true
		},
	}
}

func extensionRule(name string, kind Kind, exts []string) Rule {
	return Rule{
		Name: name,
		Match: func(candidate string) (Result, bool) {
			if !slices.Contains(exts, Extension(candidate)) {
				return Result{}, false
			}
			return Result{Kind: kind, URL: candidate}, true
		},
	}
}

// Extension returns the lowercased file extension of the URL path, without
// the dot, ignoring query string and fragment. Hosts are never mistaken for
// extensions. Input url.Parse rejects has no extension.
func Extension(candidate string) string {
	u, err := url.Parse(candidate)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
}
