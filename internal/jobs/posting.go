// Package jobs provides the JobPosting record, its validation contract, the
// listing query engine and the create/update/delete service used by the HTTP API.
// Persistence is behind the Repository port with in-memory and MongoDB adapters.
package jobs

import (
	"time"
)

// Category is the closed set of job categories a posting can belong to.
type Category string

const (
	CategoryIT              Category = "IT & Software"
	CategoryBanking         Category = "Banking & Finance"
	CategoryHealthcare      Category = "Healthcare"
	CategoryEducation       Category = "Education"
	CategoryEngineering     Category = "Engineering"
	CategoryGovernment      Category = "Government"
	CategorySalesMarketing  Category = "Sales & Marketing"
	CategoryCustomerService Category = "Customer Service"
	CategoryAdministrative  Category = "Administrative"
	CategoryOther           Category = "Other"
)

// Categories lists every valid Category in display order.
var Categories = []Category{
	CategoryIT,
	CategoryBanking,
	CategoryHealthcare,
	CategoryEducation,
	CategoryEngineering,
	CategoryGovernment,
	CategorySalesMarketing,
	CategoryCustomerService,
	CategoryAdministrative,
	CategoryOther,
}

// IsValid returns true if c is one of Categories.
func (c Category) IsValid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// EmploymentType describes the contract type of a posting.
type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "Full-time"
	EmploymentPartTime   EmploymentType = "Part-time"
	EmploymentContract   EmploymentType = "Contract"
	EmploymentInternship EmploymentType = "Internship"
	EmploymentTemporary  EmploymentType = "Temporary"
	EmploymentFreelance  EmploymentType = "Freelance"
)

// EmploymentTypes lists every valid EmploymentType.
var EmploymentTypes = []EmploymentType{
	EmploymentFullTime,
	EmploymentPartTime,
	EmploymentContract,
	EmploymentInternship,
	EmploymentTemporary,
	EmploymentFreelance,
}

// IsValid returns true if t is one of EmploymentTypes.
func (t EmploymentType) IsValid() bool {
	for _, v := range EmploymentTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a posting. Only StatusActive postings are
// visible on public endpoints.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusClosed  Status = "closed"
	StatusDraft   Status = "draft"
)

// Statuses lists every valid Status.
var Statuses = []Status{StatusActive, StatusExpired, StatusClosed, StatusDraft}

// IsValid returns true if s is one of Statuses.
func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Posting is a validated job advertisement as stored and returned by the API.
type Posting struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Organization   string         `json:"organization"`
	Category       Category       `json:"category"`
	Location       string         `json:"location"`
	Source         string         `json:"source,omitempty"`
	PublishDate    time.Time      `json:"publishDate"`
	LastDate       time.Time      `json:"lastDate"`
	Description    string         `json:"description,omitempty"`
	ImageURL       string         `json:"imageUrl,omitempty"`
	Tags           []string       `json:"tags"`
	Status         Status         `json:"status"`
	SalaryMin      *float64       `json:"salaryMin,omitempty"`
	SalaryMax      *float64       `json:"salaryMax,omitempty"`
	EmploymentType EmploymentType `json:"employmentType,omitempty"`
	ApplyURL       string         `json:"applyUrl,omitempty"`
	Requirements   string         `json:"requirements,omitempty"`
	Benefits       string         `json:"benefits,omitempty"`
	Experience     string         `json:"experience,omitempty"`
	Education      string         `json:"education,omitempty"`
	Skills         []string       `json:"skills"`
	Views          int64          `json:"views"`
	Applications   int64          `json:"applications"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// IsActive returns true if the posting is publicly visible.
func (p *Posting) IsActive() bool {
	return p.Status == StatusActive
}

// Clone returns a deep copy so callers cannot mutate repository state.
func (p *Posting) Clone() *Posting {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.Skills = append([]string(nil), p.Skills...)
	if p.SalaryMin != nil {
		v := *p.SalaryMin
		c.SalaryMin = &v
	}
	if p.SalaryMax != nil {
		v := *p.SalaryMax
		c.SalaryMax = &v
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Skills == nil {
		c.Skills = []string{}
	}
	return &c
}
