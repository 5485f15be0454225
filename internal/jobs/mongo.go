package jobs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"
)

// Compile-time check that MongoRepository implements Repository.
var _ Repository = (*MongoRepository)(nil)

// TextIndexName is the name of the full-text index backing keyword search.
const TextIndexName = "jobs_text_index"

// MongoRepository stores postings in a MongoDB collection. Filtering, paging,
// counters and statistics are all expressed in MongoDB's query and
// aggregation language.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoRepository creates a repository over the named collection.
func NewMongoRepository(db *mongo.Database, collection string) *MongoRepository {
	return &MongoRepository{
		coll: db.Collection(collection),
		now:  time.Now,
	}
}

// jobDocument is the BSON shape of a posting.
type jobDocument struct {
	ID             bson.ObjectID `bson:"_id"`
	Title          string        `bson:"title"`
	Organization   string        `bson:"organization"`
	Category       string        `bson:"category"`
	Location       string        `bson:"location"`
	Source         string        `bson:"source"`
	PublishDate    time.Time     `bson:"publishDate"`
	LastDate       time.Time     `bson:"lastDate"`
	Description    string        `bson:"description"`
	ImageURL       string        `bson:"imageUrl"`
	Tags           []string      `bson:"tags"`
	Status         string        `bson:"status"`
	SalaryMin      *float64      `bson:"salaryMin,omitempty"`
	SalaryMax      *float64      `bson:"salaryMax,omitempty"`
	EmploymentType string        `bson:"employmentType"`
	ApplyURL       string        `bson:"applyUrl"`
	Requirements   string        `bson:"requirements"`
	Benefits       string        `bson:"benefits"`
	Experience     string        `bson:"experience"`
	Education      string        `bson:"education"`
	Skills         []string      `bson:"skills"`
	Views          int64         `bson:"views"`
	Applications   int64         `bson:"applications"`
	CreatedAt      time.Time     `bson:"createdAt"`
	UpdatedAt      time.Time     `bson:"updatedAt"`
}

func (d *jobDocument) posting() *Posting {
	p := &Posting{
		ID:             d.ID.Hex(),
		Title:          d.Title,
		Organization:   d.Organization,
		Category:       Category(d.Category),
		Location:       d.Location,
		Source:         d.Source,
		PublishDate:    d.PublishDate.UTC(),
		LastDate:       d.LastDate.UTC(),
		Description:    d.Description,
		ImageURL:       d.ImageURL,
		Tags:           d.Tags,
		Status:         Status(d.Status),
		SalaryMin:      d.SalaryMin,
		SalaryMax:      d.SalaryMax,
		EmploymentType: EmploymentType(d.EmploymentType),
		ApplyURL:       d.ApplyURL,
		Requirements:   d.Requirements,
		Benefits:       d.Benefits,
		Experience:     d.Experience,
		Education:      d.Education,
		Skills:         d.Skills,
		Views:          d.Views,
		Applications:   d.Applications,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}
	return p
}

// editableFields lists every field a client may change. Counters, _id and
// createdAt are deliberately absent so an update never rewinds them.
func editableFields(p *Posting) bson.D {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	return bson.D{
		{Key: "title", Value: p.Title},
		{Key: "organization", Value: p.Organization},
		{Key: "category", Value: string(p.Category)},
		{Key: "location", Value: p.Location},
		{Key: "source", Value: p.Source},
		{Key: "publishDate", Value: p.PublishDate},
		{Key: "lastDate", Value: p.LastDate},
		{Key: "description", Value: p.Description},
		{Key: "imageUrl", Value: p.ImageURL},
		{Key: "tags", Value: tags},
		{Key: "status", Value: string(p.Status)},
		{Key: "salaryMin", Value: p.SalaryMin},
		{Key: "salaryMax", Value: p.SalaryMax},
		{Key: "employmentType", Value: string(p.EmploymentType)},
		{Key: "applyUrl", Value: p.ApplyURL},
		{Key: "requirements", Value: p.Requirements},
		{Key: "benefits", Value: p.Benefits},
		{Key: "experience", Value: p.Experience},
		{Key: "education", Value: p.Education},
		{Key: "skills", Value: skills},
	}
}

// EnsureIndexes creates the text and compound indexes used by the listing
// queries. Indexes that already exist by name are left alone.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	cursor, err := r.coll.Indexes().List(ctx)
	if err != nil {
		return fmt.Errorf("mongo: list indexes: %w", err)
	}
	var existing []bson.M
	if err := cursor.All(ctx, &existing); err != nil {
		return fmt.Errorf("mongo: read indexes: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, idx := range existing {
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}

	wanted := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "organization", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "requirements", Value: "text"},
				{Key: "benefits", Value: "text"},
				{Key: "tags", Value: "text"},
			},
			Options: options.Index().SetName(TextIndexName).SetWeights(bson.D{
				{Key: "title", Value: 10},
				{Key: "organization", Value: 5},
				{Key: "tags", Value: 3},
				{Key: "description", Value: 1},
				{Key: "requirements", Value: 1},
				{Key: "benefits", Value: 1},
			}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "publishDate", Value: -1}},
			Options: options.Index().SetName("status_publishDate"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "views", Value: -1}, {Key: "applications", Value: -1}},
			Options: options.Index().SetName("status_popularity"),
		},
		{
			Keys:    bson.D{{Key: "employmentType", Value: 1}, {Key: "status", Value: 1}, {Key: "publishDate", Value: -1}},
			Options: options.Index().SetName("employmentType_status_publishDate"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("category"),
		},
	}

	var missing []mongo.IndexModel
	for _, m := range wanted {
		if !names[indexName(m)] {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, missing); err != nil {
		return fmt.Errorf("mongo: create indexes: %w", err)
	}
	return nil
}

func indexName(m mongo.IndexModel) string {
	var opts options.IndexOptions
	for _, set := range m.Options.List() {
		_ = set(&opts)
	}
	if opts.Name == nil {
		return ""
	}
	return *opts.Name
}

// Insert assigns a new ObjectID and timestamps, then inserts the document.
func (r *MongoRepository) Insert(ctx context.Context, p *Posting) error {
	now := r.now().UTC().Truncate(time.Millisecond)
	id := bson.NewObjectID()
	doc := bson.D{{Key: "_id", Value: id}}
	doc = append(doc, editableFields(p)...)
	doc = append(doc,
		bson.E{Key: "views", Value: int64(0)},
		bson.E{Key: "applications", Value: int64(0)},
		bson.E{Key: "createdAt", Value: now},
		bson.E{Key: "updatedAt", Value: now},
	)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: insert job: %w", err)
	}
	p.ID = id.Hex()
	p.Views = 0
	p.Applications = 0
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// FindByID retrieves a posting by its hex ObjectID.
func (r *MongoRepository) FindByID(ctx context.Context, id string) (*Posting, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc jobDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo: find job %s: %w", id, err)
	}
	return doc.posting(), nil
}

// Update sets the editable fields and returns the document after the write.
func (r *MongoRepository) Update(ctx context.Context, p *Posting) (*Posting, error) {
	oid, ok := parseID(p.ID)
	if !ok {
		return nil, ErrNotFound
	}
	set := editableFields(p)
	set = append(set, bson.E{Key: "updatedAt", Value: r.now().UTC().Truncate(time.Millisecond)})

	var doc jobDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo: update job %s: %w", p.ID, err)
	}
	return doc.posting(), nil
}

// Delete removes a posting by ID.
func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("mongo: delete job %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Find runs the filtered, sorted and paged query.
func (r *MongoRepository) Find(ctx context.Context, f Filter, opts FindOptions) ([]*Posting, error) {
	findOptions := options.Find().SetSort(sortDocument(opts.Sort))
	if opts.Skip > 0 {
		findOptions.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		findOptions.SetLimit(int64(opts.Limit))
	}

	cursor, err := r.coll.Find(ctx, buildFilter(f), findOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo: find jobs: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []jobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode jobs: %w", err)
	}
	out := make([]*Posting, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].posting())
	}
	return out, nil
}

// Count returns the number of documents matching f.
func (r *MongoRepository) Count(ctx context.Context, f Filter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, buildFilter(f))
	if err != nil {
		return 0, fmt.Errorf("mongo: count jobs: %w", err)
	}
	return n, nil
}

// IncrementViews applies $inc so concurrent readers never lose an update.
func (r *MongoRepository) IncrementViews(ctx context.Context, id string) error {
	oid, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}}},
	)
	if err != nil {
		return fmt.Errorf("mongo: increment views %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordApplication applies $inc on an active posting and returns it.
func (r *MongoRepository) RecordApplication(ctx context.Context, id string) (*Posting, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc jobDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "status", Value: string(StatusActive)}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "applications", Value: 1}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo: record application %s: %w", id, err)
	}
	return doc.posting(), nil
}

// Stats runs the overview, grouping and recent-jobs queries concurrently.
func (r *MongoRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pipeline := mongo.Pipeline{
			{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: nil},
				{Key: "totalJobs", Value: bson.D{{Key: "$sum", Value: 1}}},
				{Key: "totalViews", Value: bson.D{{Key: "$sum", Value: "$views"}}},
				{Key: "totalApplications", Value: bson.D{{Key: "$sum", Value: "$applications"}}},
				{Key: "avgViews", Value: bson.D{{Key: "$avg", Value: "$views"}}},
				{Key: "avgApplications", Value: bson.D{{Key: "$avg", Value: "$applications"}}},
			}}},
		}
		var rows []Overview
		if err := r.aggregate(gctx, pipeline, &rows); err != nil {
			return fmt.Errorf("overview: %w", err)
		}
		if len(rows) > 0 {
			stats.Overview = rows[0]
		}
		return nil
	})

	g.Go(func() error {
		rows, err := r.topGroups(gctx, "$category")
		if err != nil {
			return fmt.Errorf("top categories: %w", err)
		}
		stats.TopCategories = rows
		return nil
	})

	g.Go(func() error {
		rows, err := r.topGroups(gctx, "$location")
		if err != nil {
			return fmt.Errorf("top locations: %w", err)
		}
		stats.TopLocations = rows
		return nil
	})

	g.Go(func() error {
		opts := options.Find().
			SetSort(sortDocument(SortNewest)).
			SetLimit(recentJobsLimit).
			SetProjection(bson.D{
				{Key: "title", Value: 1},
				{Key: "organization", Value: 1},
				{Key: "location", Value: 1},
				{Key: "publishDate", Value: 1},
				{Key: "views", Value: 1},
			})
		cursor, err := r.coll.Find(gctx, bson.D{{Key: "status", Value: string(StatusActive)}}, opts)
		if err != nil {
			return fmt.Errorf("recent jobs: %w", err)
		}
		defer func() { _ = cursor.Close(gctx) }()
		var docs []jobDocument
		if err := cursor.All(gctx, &docs); err != nil {
			return fmt.Errorf("recent jobs: %w", err)
		}
		recent := make([]RecentJob, 0, len(docs))
		for _, d := range docs {
			recent = append(recent, RecentJob{
				ID:           d.ID.Hex(),
				Title:        d.Title,
				Organization: d.Organization,
				Location:     d.Location,
				PublishDate:  d.PublishDate.UTC(),
				Views:        d.Views,
			})
		}
		stats.RecentJobs = recent
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("mongo: stats: %w", err)
	}
	return stats, nil
}

func (r *MongoRepository) topGroups(ctx context.Context, field string) ([]GroupStat, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "totalViews", Value: bson.D{{Key: "$sum", Value: "$views"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: topGroupsLimit}},
	}
	rows := []GroupStat{}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MongoRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer func() { _ = cursor.Close(ctx) }()
	return cursor.All(ctx, out)
}

// DeleteAll removes every document in the collection.
func (r *MongoRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo: delete all jobs: %w", err)
	}
	return res.DeletedCount, nil
}

// buildFilter translates f into a MongoDB query document.
func buildFilter(f Filter) bson.D {
	filter := bson.D{}
	if f.Keyword != "" {
		filter = append(filter, bson.E{Key: "$text", Value: bson.D{{Key: "$search", Value: f.Keyword}}})
	}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: f.Category})
	}
	if f.EmploymentType != "" {
		filter = append(filter, bson.E{Key: "employmentType", Value: f.EmploymentType})
	}
	if f.Location != "" {
		filter = append(filter, bson.E{Key: "location", Value: containsPattern(f.Location)})
	}
	if f.Source != "" {
		filter = append(filter, bson.E{Key: "source", Value: containsPattern(f.Source)})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: string(f.Status)})
	}
	return filter
}

// containsPattern is a case-insensitive substring match with regex
// metacharacters escaped.
func containsPattern(s string) bson.D {
	return bson.D{
		{Key: "$regex", Value: regexp.QuoteMeta(s)},
		{Key: "$options", Value: "i"},
	}
}

func sortDocument(order SortOrder) bson.D {
	if order == SortPopular {
		return bson.D{
			{Key: "views", Value: -1},
			{Key: "applications", Value: -1},
			{Key: "publishDate", Value: -1},
			{Key: "_id", Value: -1},
		}
	}
	return bson.D{{Key: "publishDate", Value: -1}, {Key: "_id", Value: -1}}
}

func parseID(id string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, false
	}
	return oid, true
}
