package brand

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Candidate scoring. Explicit brand metadata outranks whatever happens to be
// in the page body.
const (
	scoreOGImage      = 50
	scoreTwitterImage = 40
	scoreLinkIcon     = 30
	scoreImgTag       = 10
	scoreLogoKeyword  = 25
	scoreCDNHost      = 15
	scoreLargeHint    = 10
)

var (
	// cdnPattern matches design-heavy CDNs where brand assets usually live.
	cdnPattern = regexp.MustCompile(`(?i)(pinimg\.com|behance\.net|cloudinary\.com|imgix\.net|cdn\.)`)
	// junkPattern matches sprites, spacers, and tracking pixels.
	junkPattern = regexp.MustCompile(`(?i)(sprite|spacer|blank|tracking|pixel|beacon|1x1)`)
	logoPattern = regexp.MustCompile(`(?i)(logo|brand|mark)`)
	// sizeHint catches dimensions embedded in asset URLs, e.g. hero-1200x630.png.
	sizeHint = regexp.MustCompile(`(\d{2,4})x(\d{2,4})`)
	hexColor = regexp.MustCompile(`#(?:[0-9a-fA-F]{6}|[0-9a-fA-F]{3})\b`)
)

type candidate struct {
	url   string
	score int
}

// ExtractAssets walks the parsed page and returns up to limit asset URLs,
// best first. Relative URLs are resolved against base; junk and tiny images
// are dropped.
func ExtractAssets(base *url.URL, doc *html.Node, limit int) []string {
	byURL := make(map[string]int)
	var order []string

	add := func(raw string, score int) {
		resolved := resolveURL(base, raw)
		if resolved == "" {
			return
		}
		if junkPattern.MatchString(resolved) {
			return
		}
		score += urlBonus(resolved)
		if score < 0 {
			return
		}
		if _, seen := byURL[resolved]; !seen {
			order = append(order, resolved)
		}
		if score > byURL[resolved] {
			byURL[resolved] = score
		}
	}

	walk(doc, func(n *html.Node) {
		switch n.Data {
		case "meta":
			prop := strings.ToLower(attr(n, "property") + attr(n, "name"))
			content := attr(n, "content")
			switch {
			case strings.Contains(prop, "og:image"):
				add(content, scoreOGImage)
			case strings.Contains(prop, "twitter:image"):
				add(content, scoreTwitterImage)
			}
		case "link":
			rel := strings.ToLower(attr(n, "rel"))
			if strings.Contains(rel, "icon") || strings.Contains(rel, "apple-touch") {
				add(attr(n, "href"), scoreLinkIcon)
			}
		case "img":
			add(attr(n, "src"), scoreImgTag)
		}
	})

	cands := make([]candidate, 0, len(order))
	for _, u := range order {
		cands = append(cands, candidate{url: u, score: byURL[u]})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.url
	}
	return out
}

// urlBonus scores a resolved URL on its own merits: brand keywords, known
// CDNs, and size hints. A dimension hint under 32px marks a tracking-pixel
// class asset and disqualifies it.
func urlBonus(u string) int {
	bonus := 0
	if logoPattern.MatchString(u) {
		bonus += scoreLogoKeyword
	}
	if cdnPattern.MatchString(u) {
		bonus += scoreCDNHost
	}
	if m := sizeHint.FindStringSubmatch(u); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w < 32 || h < 32 {
			return -1 << 10
		}
		if w >= 200 && h >= 200 {
			bonus += scoreLargeHint
		}
	}
	return bonus
}

// ExtractPalette pulls hex colors from meta theme-color, <style> blocks, and
// inline style attributes, normalized to lowercase #rrggbb.
func ExtractPalette(doc *html.Node, limit int) []string {
	var palette []string
	seen := make(map[string]bool)

	add := func(raw string) {
		for _, m := range hexColor.FindAllString(raw, -1) {
			c := normalizeHex(m)
			if !seen[c] {
				seen[c] = true
				palette = append(palette, c)
			}
		}
	}

	walk(doc, func(n *html.Node) {
		if n.Data == "meta" && strings.EqualFold(attr(n, "name"), "theme-color") {
			add(attr(n, "content"))
		}
		if n.Data == "style" && n.FirstChild != nil {
			add(n.FirstChild.Data)
		}
		if s := attr(n, "style"); s != "" {
			add(s)
		}
	})

	if limit > 0 && len(palette) > limit {
		palette = palette[:limit]
	}
	return palette
}

// ExtractSiteName prefers og:site_name, falling back to <title>.
func ExtractSiteName(doc *html.Node) string {
	var siteName, title string
	walk(doc, func(n *html.Node) {
		if n.Data == "meta" && strings.EqualFold(attr(n, "property"), "og:site_name") {
			siteName = strings.TrimSpace(attr(n, "content"))
		}
		if n.Data == "title" && title == "" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
		}
	})
	if siteName != "" {
		return siteName
	}
	return title
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func resolveURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// normalizeHex lowercases and expands #abc to #aabbcc.
func normalizeHex(c string) string {
	c = strings.ToLower(c)
	if len(c) == 4 {
		return "#" + strings.Repeat(string(c[1]), 2) + strings.Repeat(string(c[2]), 2) + strings.Repeat(string(c[3]), 2)
	}
	return c
}
