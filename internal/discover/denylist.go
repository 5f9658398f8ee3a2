package discover

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// defaultDenylist holds retailer, review, social and directory domains
// that are never a company's official site.
var defaultDenylist = []string{
	// retailers and marketplaces
	"amazon.com", "walmart.com", "target.com", "ebay.com", "etsy.com",
	"costco.com", "kroger.com", "totalwine.com", "drizly.com", "wine.com",
	"reservebar.com", "caskers.com", "instacart.com", "bevmo.com", "shopify.com",
	// reviews and ratings
	"yelp.com", "tripadvisor.com", "vivino.com", "untappd.com", "distiller.com",
	"ratebeer.com", "beeradvocate.com", "winespectator.com", "trustpilot.com",
	"glassdoor.com", "indeed.com",
	// social networks
	"facebook.com", "instagram.com", "youtube.com", "twitter.com", "x.com",
	"tiktok.com", "pinterest.com", "linkedin.com", "reddit.com", "threads.net",
	// directories and data brokers
	"bbb.org", "yellowpages.com", "manta.com", "zoominfo.com", "dnb.com",
	"opencorporates.com", "bizapedia.com", "crunchbase.com", "mapquest.com",
	"chamberofcommerce.com", "buzzfile.com", "corporationwiki.com",
	"wikipedia.org", "google.com", "apple.com",
}

// Denylist matches hosts against a set of blocked registrable domains.
type Denylist struct {
	domains map[string]struct{}
}

// NewDenylist builds a denylist from the built-in domains plus extra.
func NewDenylist(extra ...string) *Denylist {
	d := &Denylist{domains: make(map[string]struct{}, len(defaultDenylist)+len(extra))}
	for _, s := range defaultDenylist {
		d.add(s)
	}
	for _, s := range extra {
		d.add(s)
	}
	return d
}

func (d *Denylist) add(domain string) {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if domain != "" {
		d.domains[domain] = struct{}{}
	}
}

// denylistFile is the on-disk YAML shape.
type denylistFile struct {
	Domains []string `yaml:"domains"`
}

// LoadDenylist reads additional domains from a YAML file of the form
// "domains: [a.com, b.com]" and merges them with the built-ins. An empty
// path yields the built-ins only.
func LoadDenylist(path string) (*Denylist, error) {
	if path == "" {
		return NewDenylist(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "discover: read denylist %s", path)
	}
	var f denylistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "discover: parse denylist %s", path)
	}
	return NewDenylist(f.Domains...), nil
}

// Blocked reports whether rawURL's host is, or is a subdomain of, a
// denylisted domain.
func (d *Denylist) Blocked(rawURL string) bool {
	host := Hostname(rawURL)
	if host == "" {
		return true
	}
	for {
		if _, ok := d.domains[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
}

// Len returns the number of domains.
func (d *Denylist) Len() int {
	return len(d.domains)
}
