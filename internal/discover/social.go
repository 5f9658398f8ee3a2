package discover

import (
	"net/url"
	"strings"

	"github.com/sells-group/company-intel/internal/model"
)

// permalinkMarkers identify links to a single post, video or page section
// rather than a profile.
var permalinkMarkers = []string{
	"/posts/", "/p/", "/reel/", "/reels/", "/watch", "/shorts/", "/photos/",
	"/photo", "/videos/", "/events/", "/groups/", "/share", "/story.php",
	"/permalink", "/hashtag/", "/explore/", "/stories/", "/tv/", "/playlist",
	"/results", "/search",
}

// socialProfile classifies rawURL as a facebook, instagram or youtube
// profile link. It returns "" for other hosts and for deep permalinks.
func socialProfile(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var network string
	switch host {
	case "facebook.com", "fb.com":
		network = "facebook"
	case "instagram.com":
		network = "instagram"
	case "youtube.com":
		network = "youtube"
	default:
		return ""
	}

	path := strings.ToLower(u.Path)
	if strings.Trim(path, "/") == "" {
		return ""
	}
	for _, m := range permalinkMarkers {
		if strings.Contains(path, m) {
			return ""
		}
	}
	if u.Query().Has("v") || u.Query().Has("story_fbid") {
		return ""
	}
	return network
}

// extractSocial returns the first profile link per network, in result
// order, or nil if none is found.
func extractSocial(urls []string) *model.Social {
	var s model.Social
	for _, raw := range urls {
		clean := strings.TrimSpace(raw)
		switch socialProfile(clean) {
		case "facebook":
			if s.Facebook == nil {
				s.Facebook = &clean
			}
		case "instagram":
			if s.Instagram == nil {
				s.Instagram = &clean
			}
		case "youtube":
			if s.YouTube == nil {
				s.YouTube = &clean
			}
		}
	}
	if s.IsEmpty() {
		return nil
	}
	return &s
}
