package jobs

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps Skip within int range at MaxLimit.
	MaxPage = math.MaxInt / MaxLimit
)

// ListQuery holds the optional listing parameters. All supplied filters are
// combined with logical AND.
type ListQuery struct {
	// Keyword is matched against the full-text index.
	Keyword string
	// Category and EmploymentType are exact matches.
	Category       string
	EmploymentType string
	// Location and Source are case-insensitive substring matches.
	Location string
	Source   string
	// Status restricts the lifecycle state. Public listings force StatusActive.
	Status Status
	Page   int
	Limit  int
}

// ParseListQuery reads a ListQuery from URL query values. Unparsable or out of
// range page/limit values fall back to their defaults.
func ParseListQuery(v url.Values) ListQuery {
	q := ListQuery{
		Keyword:        strings.TrimSpace(v.Get("keyword")),
		Category:       strings.TrimSpace(v.Get("category")),
		EmploymentType: strings.TrimSpace(v.Get("employmentType")),
		Location:       strings.TrimSpace(v.Get("location")),
		Source:         strings.TrimSpace(v.Get("source")),
		Status:         Status(strings.ToLower(strings.TrimSpace(v.Get("status")))),
		Page:           atoiDefault(v.Get("page"), DefaultPage),
		Limit:          atoiDefault(v.Get("limit"), DefaultLimit),
	}
	return q.Normalize()
}

// Normalize clamps page and limit into their valid ranges.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// Skip returns the number of records preceding the requested page.
func (q ListQuery) Skip() int {
	return (q.Page - 1) * q.Limit
}

// Filter returns the store predicate for the query.
func (q ListQuery) Filter() Filter {
	return Filter{
		Keyword:        q.Keyword,
		Category:       q.Category,
		EmploymentType: q.EmploymentType,
		Location:       q.Location,
		Source:         q.Source,
		Status:         q.Status,
	}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// Page is the listing response envelope.
type Page struct {
	Items      []*Posting `json:"items"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	Total      int64      `json:"total"`
	TotalPages int        `json:"totalPages"`
}

func newPage(items []*Posting, q ListQuery, total int64) *Page {
	if items == nil {
		items = []*Posting{}
	}
	pages := 0
	if total > 0 {
		pages = int((total + int64(q.Limit) - 1) / int64(q.Limit))
	}
	return &Page{
		Items:      items,
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: pages,
	}
}

// Stats is the aggregate statistics response.
type Stats struct {
	Overview      Overview    `json:"overview"`
	TopCategories []GroupStat `json:"topCategories"`
	TopLocations  []GroupStat `json:"topLocations"`
	RecentJobs    []RecentJob `json:"recentJobs"`
}

// Overview holds totals and averages across every posting.
type Overview struct {
	TotalJobs         int64   `json:"totalJobs" bson:"totalJobs"`
	TotalViews        int64   `json:"totalViews" bson:"totalViews"`
	TotalApplications int64   `json:"totalApplications" bson:"totalApplications"`
	AvgViews          float64 `json:"avgViews" bson:"avgViews"`
	AvgApplications   float64 `json:"avgApplications" bson:"avgApplications"`
}

// GroupStat is the record count and summed views for one category or location.
type GroupStat struct {
	Name       string `json:"name" bson:"_id"`
	Count      int64  `json:"count" bson:"count"`
	TotalViews int64  `json:"totalViews" bson:"totalViews"`
}

// RecentJob is the reduced projection used for the most recent postings.
type RecentJob struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Organization string    `json:"organization"`
	Location     string    `json:"location"`
	PublishDate  time.Time `json:"publishDate"`
	Views        int64     `json:"views"`
}

// Stats sizes.
const (
	topGroupsLimit  = 10
	recentJobsLimit = 5
)
