package fhir

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// SearchsetParams holds the pagination inputs for a searchset bundle.
// Page is 1-based; Total is the server-side match count at query time.
type SearchsetParams struct {
	BaseURL  string
	Type     string
	Query    url.Values
	Page     int
	PageSize int
	Total    int
}

// NewSearchset assembles a searchset Bundle from already-converted
// resources. Entry order mirrors the input order; callers own sorting.
// Navigation links are recomputed from a canonically ordered query string,
// so two calls with identical inputs produce byte-identical link URLs.
func NewSearchset(resources []WireResource, p SearchsetParams) *Bundle {
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			// Wire structs marshal without error for every converter output.
			panic(fmt.Sprintf("fhir: marshal %s entry: %v", r.WireType(), err))
		}
		entries[i] = BundleEntry{
			FullURL:  fmt.Sprintf("%s/%s/%s", p.BaseURL, r.WireType(), r.WireID()),
			Resource: raw,
			Search:   &BundleSearch{Mode: "match"},
		}
	}

	total := p.Total
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Link:         buildSearchsetLinks(p),
		Entry:        entries,
	}
}

// buildSearchsetLinks computes self plus whichever of first/previous/next/
// last apply for the requested page. No link is ever emitted empty.
func buildSearchsetLinks(p SearchsetParams) []BundleLink {
	lastPage := 1
	if p.PageSize > 0 && p.Total > 0 {
		lastPage = (p.Total + p.PageSize - 1) / p.PageSize
	}

	links := []BundleLink{{Relation: "self", URL: pageURL(p, p.Page)}}
	if lastPage > 1 {
		links = append(links, BundleLink{Relation: "first", URL: pageURL(p, 1)})
	}
	if p.Page > 1 {
		prev := p.Page - 1
		if prev > lastPage {
			prev = lastPage
		}
		links = append(links, BundleLink{Relation: "previous", URL: pageURL(p, prev)})
	}
	if p.Page < lastPage {
		links = append(links, BundleLink{Relation: "next", URL: pageURL(p, p.Page+1)})
	}
	if lastPage > 1 {
		links = append(links, BundleLink{Relation: "last", URL: pageURL(p, lastPage)})
	}
	return links
}

// pageURL rebuilds the search URL with the page parameter substituted.
// Filter parameters are emitted in sorted key order so the rendering is
// deterministic regardless of map iteration.
func pageURL(p SearchsetParams, page int) string {
	keys := make([]string, 0, len(p.Query))
	for k := range p.Query {
		if k == "_page" || k == "_count" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := ""
	for _, k := range keys {
		for _, v := range p.Query[k] {
			q += url.QueryEscape(k) + "=" + url.QueryEscape(v) + "&"
		}
	}
	q += "_count=" + strconv.Itoa(p.PageSize) + "&_page=" + strconv.Itoa(page)
	return fmt.Sprintf("%s/%s?%s", p.BaseURL, p.Type, q)
}
