package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/jobportal-api/internal/apperr"
)

// Draft is a job posting as submitted by a client, before normalization and
// validation. Dates are accepted as RFC 3339 timestamps or YYYY-MM-DD.
type Draft struct {
	Title          string   `json:"title" yaml:"title" validate:"required,max=200"`
	Organization   string   `json:"organization" yaml:"organization" validate:"required,max=200"`
	Category       string   `json:"category" yaml:"category" validate:"required,category"`
	Location       string   `json:"location" yaml:"location" validate:"required,max=200"`
	Source         string   `json:"source" yaml:"source" validate:"max=200"`
	PublishDate    string   `json:"publishDate" yaml:"publishDate"`
	LastDate       string   `json:"lastDate" yaml:"lastDate" validate:"required"`
	Description    string   `json:"description" yaml:"description" validate:"max=20000"`
	ImageURL       string   `json:"imageUrl" yaml:"imageUrl" validate:"omitempty,http_url"`
	Tags           []string `json:"tags" yaml:"tags" validate:"max=50,dive,max=100"`
	Status         string   `json:"status" yaml:"status" validate:"omitempty,jobstatus"`
	SalaryMin      *float64 `json:"salaryMin" yaml:"salaryMin" validate:"omitempty,min=0"`
	SalaryMax      *float64 `json:"salaryMax" yaml:"salaryMax" validate:"omitempty,min=0"`
	EmploymentType string   `json:"employmentType" yaml:"employmentType" validate:"omitempty,employmenttype"`
	ApplyURL       string   `json:"applyUrl" yaml:"applyUrl" validate:"omitempty,http_url"`
	Requirements   string   `json:"requirements" yaml:"requirements" validate:"max=20000"`
	Benefits       string   `json:"benefits" yaml:"benefits" validate:"max=20000"`
	Experience     string   `json:"experience" yaml:"experience" validate:"max=200"`
	Education      string   `json:"education" yaml:"education" validate:"max=200"`
	Skills         []string `json:"skills" yaml:"skills" validate:"max=50,dive,max=100"`
}

// Patch is a partial update. Nil fields are left untouched. In JSON, an
// explicit null on one of the optional fields clears it.
type Patch struct {
	Title          *string   `json:"title"`
	Organization   *string   `json:"organization"`
	Category       *string   `json:"category"`
	Location       *string   `json:"location"`
	Source         *string   `json:"source"`
	PublishDate    *string   `json:"publishDate"`
	LastDate       *string   `json:"lastDate"`
	Description    *string   `json:"description"`
	ImageURL       *string   `json:"imageUrl"`
	Tags           *[]string `json:"tags"`
	Status         *string   `json:"status"`
	SalaryMin      *float64  `json:"salaryMin"`
	SalaryMax      *float64  `json:"salaryMax"`
	EmploymentType *string   `json:"employmentType"`
	ApplyURL       *string   `json:"applyUrl"`
	Requirements   *string   `json:"requirements"`
	Benefits       *string   `json:"benefits"`
	Experience     *string   `json:"experience"`
	Education      *string   `json:"education"`
	Skills         *[]string `json:"skills"`

	cleared map[string]bool
}

// clearableFields are the optional fields a JSON null resets. Required
// fields, publishDate and status ignore null.
var clearableFields = []string{
	"source", "description", "imageUrl", "tags", "salaryMin", "salaryMax",
	"employmentType", "applyUrl", "requirements", "benefits", "experience",
	"education", "skills",
}

// UnmarshalJSON decodes the patch and records which optional fields were
// sent as null.
func (p *Patch) UnmarshalJSON(data []byte) error {
	type plain Patch
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Patch(v)
	for _, name := range clearableFields {
		if msg, ok := raw[name]; ok && bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			p.Clear(name)
		}
	}
	return nil
}

// Clear marks an optional field, by JSON name, to be reset to its zero
// value. Unknown or required fields are ignored.
func (p *Patch) Clear(field string) {
	for _, name := range clearableFields {
		if name == field {
			if p.cleared == nil {
				p.cleared = make(map[string]bool)
			}
			p.cleared[field] = true
			return
		}
	}
}

// Cleared reports whether field was marked by Clear.
func (p Patch) Cleared(field string) bool {
	return p.cleared[field]
}

// Apply copies every supplied field of p onto d, then resets cleared ones.
func (p Patch) Apply(d *Draft) {
	setString(&d.Title, p.Title)
	setString(&d.Organization, p.Organization)
	setString(&d.Category, p.Category)
	setString(&d.Location, p.Location)
	setString(&d.Source, p.Source)
	setString(&d.PublishDate, p.PublishDate)
	setString(&d.LastDate, p.LastDate)
	setString(&d.Description, p.Description)
	setString(&d.ImageURL, p.ImageURL)
	setString(&d.Status, p.Status)
	setString(&d.EmploymentType, p.EmploymentType)
	setString(&d.ApplyURL, p.ApplyURL)
	setString(&d.Requirements, p.Requirements)
	setString(&d.Benefits, p.Benefits)
	setString(&d.Experience, p.Experience)
	setString(&d.Education, p.Education)
	if p.Tags != nil {
		d.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Skills != nil {
		d.Skills = append([]string(nil), (*p.Skills)...)
	}
	if p.SalaryMin != nil {
		v := *p.SalaryMin
		d.SalaryMin = &v
	}
	if p.SalaryMax != nil {
		v := *p.SalaryMax
		d.SalaryMax = &v
	}

	for name := range p.cleared {
		switch name {
		case "source":
			d.Source = ""
		case "description":
			d.Description = ""
		case "imageUrl":
			d.ImageURL = ""
		case "tags":
			d.Tags = nil
		case "salaryMin":
			d.SalaryMin = nil
		case "salaryMax":
			d.SalaryMax = nil
		case "employmentType":
			d.EmploymentType = ""
		case "applyUrl":
			d.ApplyURL = ""
		case "requirements":
			d.Requirements = ""
		case "benefits":
			d.Benefits = ""
		case "experience":
			d.Experience = ""
		case "education":
			d.Education = ""
		case "skills":
			d.Skills = nil
		}
	}
}

// IsEmpty returns true if the patch neither sets nor clears a field.
func (p Patch) IsEmpty() bool {
	return reflect.ValueOf(p).IsZero()
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// DraftFrom converts a stored posting back into a draft so a patch can be
// applied and the merged result validated again.
func DraftFrom(p *Posting) Draft {
	d := Draft{
		Title:          p.Title,
		Organization:   p.Organization,
		Category:       string(p.Category),
		Location:       p.Location,
		Source:         p.Source,
		PublishDate:    p.PublishDate.UTC().Format(time.RFC3339Nano),
		LastDate:       p.LastDate.UTC().Format(time.RFC3339Nano),
		Description:    p.Description,
		ImageURL:       p.ImageURL,
		Tags:           append([]string(nil), p.Tags...),
		Status:         string(p.Status),
		EmploymentType: string(p.EmploymentType),
		ApplyURL:       p.ApplyURL,
		Requirements:   p.Requirements,
		Benefits:       p.Benefits,
		Experience:     p.Experience,
		Education:      p.Education,
		Skills:         append([]string(nil), p.Skills...),
	}
	if p.SalaryMin != nil {
		v := *p.SalaryMin
		d.SalaryMin = &v
	}
	if p.SalaryMax != nil {
		v := *p.SalaryMax
		d.SalaryMax = &v
	}
	return d
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("employmenttype", func(fl validator.FieldLevel) bool {
		return EmploymentType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("jobstatus", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
	return v
}

// Validate normalizes d and checks it against the posting schema. Every
// violated field is reported in the returned validation error; on success the
// normalized posting is returned with status, publishDate and counters defaulted.
// The returned posting has no ID or timestamps; the repository assigns those.
func Validate(d Draft, now time.Time) (*Posting, error) {
	d = normalize(d)
	fields := make(map[string]string)

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate job: %w", err)
		}
		for _, fe := range verrs {
			name := fieldName(fe)
			if _, seen := fields[name]; !seen {
				fields[name] = message(name, fe)
			}
		}
	}

	publish := now
	if d.PublishDate != "" {
		t, err := parseDate(d.PublishDate)
		if err != nil {
			fields["publishDate"] = "publishDate must be a valid date-time"
		} else {
			publish = t
		}
	}
	publish = publish.UTC().Truncate(time.Millisecond)

	var last time.Time
	if d.LastDate != "" {
		t, err := parseDate(d.LastDate)
		if err != nil {
			fields["lastDate"] = "lastDate must be a valid date-time"
		} else {
			last = t.UTC().Truncate(time.Millisecond)
		}
	}
	if _, bad := fields["lastDate"]; !bad && !last.IsZero() {
		if _, badPublish := fields["publishDate"]; !badPublish && !last.After(publish) {
			fields["lastDate"] = "lastDate must be after publishDate"
		}
	}

	if d.SalaryMin != nil && d.SalaryMax != nil && *d.SalaryMax < *d.SalaryMin {
		if _, bad := fields["salaryMax"]; !bad {
			fields["salaryMax"] = "salaryMax must be greater than or equal to salaryMin"
		}
	}

	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	status := Status(d.Status)
	if status == "" {
		status = StatusActive
	}

	return &Posting{
		Title:          d.Title,
		Organization:   d.Organization,
		Category:       Category(d.Category),
		Location:       d.Location,
		Source:         d.Source,
		PublishDate:    publish,
		LastDate:       last,
		Description:    d.Description,
		ImageURL:       d.ImageURL,
		Tags:           d.Tags,
		Status:         status,
		SalaryMin:      d.SalaryMin,
		SalaryMax:      d.SalaryMax,
		EmploymentType: EmploymentType(d.EmploymentType),
		ApplyURL:       d.ApplyURL,
		Requirements:   d.Requirements,
		Benefits:       d.Benefits,
		Experience:     d.Experience,
		Education:      d.Education,
		Skills:         d.Skills,
	}, nil
}

func normalize(d Draft) Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Organization = strings.TrimSpace(d.Organization)
	d.Category = strings.TrimSpace(d.Category)
	d.Location = strings.TrimSpace(d.Location)
	d.Source = strings.TrimSpace(d.Source)
	d.PublishDate = strings.TrimSpace(d.PublishDate)
	d.LastDate = strings.TrimSpace(d.LastDate)
	d.Description = strings.TrimSpace(d.Description)
	d.ImageURL = strings.TrimSpace(d.ImageURL)
	d.Status = strings.ToLower(strings.TrimSpace(d.Status))
	d.EmploymentType = strings.TrimSpace(d.EmploymentType)
	d.ApplyURL = strings.TrimSpace(d.ApplyURL)
	d.Requirements = strings.TrimSpace(d.Requirements)
	d.Benefits = strings.TrimSpace(d.Benefits)
	d.Experience = strings.TrimSpace(d.Experience)
	d.Education = strings.TrimSpace(d.Education)
	d.Tags = compact(d.Tags)
	d.Skills = compact(d.Skills)
	return d
}

// compact trims every entry and drops the empty ones.
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// fieldName strips slice indexes so tags[3] reports as tags.
func fieldName(fe validator.FieldError) string {
	name, _, _ := strings.Cut(fe.Field(), "[")
	return name
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return field + " must not be negative"
	case "http_url":
		return field + " must be a valid http(s) URL"
	case "category":
		return field + " must be one of: " + joinValues(Categories)
	case "employmenttype":
		return field + " must be one of: " + joinValues(EmploymentTypes)
	case "jobstatus":
		return field + " must be one of: " + joinValues(Statuses)
	default:
		return field + " is invalid"
	}
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
