// Package catalog implements the URL Catalog: the authoritative,
// deduplicated registry of discovered URLs and their fetch lifecycle.
package catalog

import (
	"fmt"
	"strconv"
	"time"
)

// Kind enumerates the catalog-entry content categories detected from a
// normalized URL.
type Kind string

const (
	KindWebPage      Kind = "web_page"
	KindDocSitePage  Kind = "doc_site_page"
	KindRepo         Kind = "repo"
	KindVideo        Kind = "video"
	KindVideoChannel Kind = "video_channel"
)

// Status tracks a CatalogEntry's position in the fetch lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusFetched Status = "fetched"
	StatusFailed  Status = "failed"
)

// Priority tiers used when inserting discovered URLs; higher claims first.
const (
	PriorityUserGiven     = 100
	PrioritySearchDerived = 50
	PriorityCrawled       = 50
)

// RefreshPolicy describes how a CatalogEntry is scheduled for refresh.
// The zero value is the invalid policy; use NeverRefresh or Days(n).
type RefreshPolicy struct {
	Never bool
	Days  int
}

// NeverRefresh is the policy assigned to videos: immutable once fetched.
func NeverRefresh() RefreshPolicy { return RefreshPolicy{Never: true} }

// Days returns a refresh policy with the given window in days.
func Days(n int) RefreshPolicy { return RefreshPolicy{Days: n} }

// String renders the policy in the catalog's persisted text form
// ("never" or "days:N").
func (p RefreshPolicy) String() string {
	if p.Never {
		return "never"
	}
	return "days:" + strconv.Itoa(p.Days)
}

// DefaultRefreshPolicy returns the refresh_policy a newly discovered
// entry gets for its kind (spec §3): videos never refresh; repos
// check weekly; documentation sites every two weeks; everything else
// (plain web pages) monthly.
func DefaultRefreshPolicy(kind Kind) RefreshPolicy {
	switch kind {
	case KindVideo, KindVideoChannel:
		return NeverRefresh()
	case KindRepo:
		return Days(7)
	case KindDocSitePage:
		return Days(14)
	default:
		return Days(30)
	}
}

// NextFrom computes the next_refresh_at timestamp for a mark_fetched
// call at `when`, or nil for a policy that never refreshes (spec §4.9
// step 5: "mark_fetched with next_refresh_at = now + refresh_policy").
func (p RefreshPolicy) NextFrom(when time.Time) *time.Time {
	if p.Never || p.Days <= 0 {
		return nil
	}
	next := when.AddDate(0, 0, p.Days)
	return &next
}

// ParseRefreshPolicy parses the persisted text form back into a RefreshPolicy.
func ParseRefreshPolicy(s string) RefreshPolicy {
	if s == "never" || s == "" {
		return NeverRefresh()
	}
	var days int
	if _, err := fmt.Sscanf(s, "days:%d", &days); err == nil {
		return Days(days)
	}
	return NeverRefresh()
}

// Entry is a row in the URL Catalog. Identity is url_hash, a stable hash
// of the normalized URL.
type Entry struct {
	URLHash        string
	URL            string
	Kind           Kind
	Status         Status
	Priority       int
	DiscoveredFrom string // nullable: prompt id, parent URL, or channel URL
	Title          string // nullable: best-effort page/video/repo title
	AddedAt        time.Time
	LastFetchedAt  *time.Time
	NextRefreshAt  *time.Time
	RetryCount     int
	LastError      string // nullable
	RefreshPolicy  RefreshPolicy
}

// InsertCounts reports the outcome of insert_if_absent.
type InsertCounts struct {
	Added            int
	SkippedDuplicate int
}

// StatusFilter selects which statuses Clear removes. Only Pending and
// Failed may be combined; Fetched entries are never bulk-deleted.
type StatusFilter struct {
	Pending bool
	Failed  bool
}
