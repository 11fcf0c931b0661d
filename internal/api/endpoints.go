// Package api calls the shard-partitioned game API on behalf of an
// authenticated session. Responses are treated as opaque JSON.
package api

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultBaseURL is the partitioned API host. {shard} is replaced per call.
const DefaultBaseURL = "https://pd.{shard}.a.pvp.net"

const shardPlaceholder = "{shard}"

var validShard = regexp.MustCompile(`^[a-z0-9-]+$`)

// Endpoint names
const (
	PlayerInfo         = "player-info"
	MatchHistory       = "match-history"
	CompetitiveUpdates = "competitive-updates"
	Wallet             = "wallet"
)

// Endpoint describes one resource of the partitioned API. Path holds a
// single %s for the subject id.
type Endpoint struct {
	Name        string
	Path        string
	Paged       bool
	Description string
}

var endpoints = map[string]Endpoint{
	PlayerInfo: {
		Name:        PlayerInfo,
		Path:        "/name-service/v2/players/%s",
		Description: "Display name and tag of the authenticated player",
	},
	MatchHistory: {
		Name:        MatchHistory,
		Path:        "/match-history/v1/history/%s",
		Paged:       true,
		Description: "Recent matches of the authenticated player",
	},
	CompetitiveUpdates: {
		Name:        CompetitiveUpdates,
		Path:        "/mmr/v1/players/%s/competitiveupdates",
		Paged:       true,
		Description: "Competitive rating changes of recent matches",
	},
	Wallet: {
		Name:        Wallet,
		Path:        "/store/v1/wallet/%s",
		Description: "Currency balances of the authenticated player",
	},
}

// Lookup returns the endpoint registered under name
func Lookup(name string) (Endpoint, bool) {
	ep, ok := endpoints[name]
	return ep, ok
}

// Endpoints returns every known endpoint, sorted by name
func Endpoints() []Endpoint {
	all := make([]Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		all = append(all, ep)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Page selects a window of a paged endpoint. End is exclusive.
type Page struct {
	Start int
	End   int
}

// DefaultPage is the window used when the caller does not pick one
var DefaultPage = Page{Start: 0, End: 10}

// ErrInvalidPage is returned for windows that are empty or start below zero
var ErrInvalidPage = errors.New("invalid page")

func (p Page) validate() error {
	if p.Start < 0 || p.End <= p.Start {
		return fmt.Errorf("%w [%d, %d)", ErrInvalidPage, p.Start, p.End)
	}
	return nil
}

// ParsePage reads a window from startIndex/endIndex style strings. Missing
// bounds fall back to DefaultPage; a missing end keeps the default width.
func ParsePage(start, end string) (Page, error) {
	page := DefaultPage
	if start != "" {
		n, err := strconv.Atoi(start)
		if err != nil {
			return Page{}, fmt.Errorf("%w: start %q", ErrInvalidPage, start)
		}
		page.Start = n
		page.End = n + (DefaultPage.End - DefaultPage.Start)
	}
	if end != "" {
		n, err := strconv.Atoi(end)
		if err != nil {
			return Page{}, fmt.Errorf("%w: end %q", ErrInvalidPage, end)
		}
		page.End = n
	}
	if err := page.validate(); err != nil {
		return Page{}, err
	}
	return page, nil
}

// BuildURL renders the full URL of ep for the given shard and subject
func BuildURL(baseURL string, ep Endpoint, shard, subjectID string, page Page) (string, error) {
	if !validShard.MatchString(shard) {
		return "", fmt.Errorf("invalid shard %q", shard)
	}
	if subjectID == "" {
		return "", fmt.Errorf("subject id is required")
	}

	base := strings.TrimSuffix(strings.ReplaceAll(baseURL, shardPlaceholder, shard), "/")
	u, err := url.Parse(base + fmt.Sprintf(ep.Path, url.PathEscape(subjectID)))
	if err != nil {
		return "", fmt.Errorf("building %s url: %w", ep.Name, err)
	}

	if ep.Paged {
		if err := page.validate(); err != nil {
			return "", err
		}
		q := u.Query()
		q.Set("startIndex", strconv.Itoa(page.Start))
		q.Set("endIndex", strconv.Itoa(page.End))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
