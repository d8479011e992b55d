package leads

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionLeads is the document collection holding leads.
const CollectionLeads = "leads"

// MongoRepository stores each lead as one document keyed by its string id.
// Notes are embedded in the document.
type MongoRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoRepository returns a repository over db's leads collection. timeout
// bounds every call; zero means the caller's context alone applies.
func NewMongoRepository(db *mongo.Database, timeout time.Duration) *MongoRepository {
	if db == nil {
		panic("leads: mongo database required")
	}
	return &MongoRepository{coll: db.Collection(CollectionLeads), timeout: timeout}
}

// EnsureIndexes creates the secondary indexes the list and report queries use.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "preferred_locality", Value: 1}}},
		{Keys: bson.D{{Key: "budget_range", Value: 1}}},
		{Keys: bson.D{{Key: "assigned_to", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return storeErr("create indexes", err)
	}
	return nil
}

func (r *MongoRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *MongoRepository) Insert(ctx context.Context, lead *Lead) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	doc := lead.Clone()
	if doc.Notes == nil {
		doc.Notes = []Note{}
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return storeErr("insert", err)
	}
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var lead Lead
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&lead); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(id)
		}
		return nil, storeErr("find", err)
	}
	if lead.Notes == nil {
		lead.Notes = []Note{}
	}
	return &lead, nil
}

// Replace sets the mutable fields with $set, so write-once fields keep their stored values.
func (r *MongoRepository) Replace(ctx context.Context, lead *Lead) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: lead.ID}}, bson.D{{Key: "$set", Value: mutableFields(lead)}})
	if err != nil {
		return storeErr("update", err)
	}
	if res.MatchedCount == 0 {
		return notFound(lead.ID)
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return storeErr("delete", err)
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter = filter.normalize()
	query := mongoFilter(filter)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, storeErr("count", err)
	}

	opts := options.Find().
		SetSort(mongoSort(filter)).
		SetSkip(int64(filter.offset())).
		SetLimit(int64(filter.PageSize))
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, storeErr("list", err)
	}
	defer cursor.Close(ctx)

	leads := []*Lead{}
	if err := cursor.All(ctx, &leads); err != nil {
		return nil, 0, storeErr("decode", err)
	}
	for _, lead := range leads {
		if lead.Notes == nil {
			lead.Notes = []Note{}
		}
	}
	return leads, int(total), nil
}

func (r *MongoRepository) UpdateMany(ctx context.Context, ids []string, changes Changes, now time.Time) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateMany(ctx,
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}},
		bson.D{{Key: "$set", Value: changesDoc(changes, now)}},
	)
	if err != nil {
		return 0, storeErr("bulk update", err)
	}
	return int(res.MatchedCount), nil
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

func (r *MongoRepository) groupBy(ctx context.Context, field string) ([]groupCount, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cursor, err := r.coll.Aggregate(ctx, groupPipeline(field))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []groupCount
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) StatusCounts(ctx context.Context) (map[Status]int64, error) {
	groups, err := r.groupBy(ctx, "status")
	if err != nil {
		return nil, storeErr("count by status", err)
	}
	counts := make(map[Status]int64, len(groups))
	for _, g := range groups {
		counts[Status(g.Key)] = g.Count
	}
	return counts, nil
}

func (r *MongoRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}}})
	if err != nil {
		return 0, storeErr("count created", err)
	}
	return n, nil
}

func (r *MongoRepository) Distribution(ctx context.Context, dim Dimension) ([]Bucket, error) {
	if !dim.valid() {
		return nil, &ValidationError{Field: "dimension", Reason: "is not an allowed value"}
	}
	groups, err := r.groupBy(ctx, string(dim))
	if err != nil {
		return nil, storeErr("distribution", err)
	}
	buckets := make([]Bucket, 0, len(groups))
	for _, g := range groups {
		buckets = append(buckets, Bucket{Key: g.Key, Count: g.Count})
	}
	return buckets, nil
}

func mongoFilter(f ListFilter) bson.D {
	query := bson.D{}
	if f.Status != "" {
		query = append(query, bson.E{Key: "status", Value: string(f.Status)})
	}
	if f.Priority != "" {
		query = append(query, bson.E{Key: "priority", Value: string(f.Priority)})
	}
	if f.Locality != "" {
		query = append(query, bson.E{Key: "preferred_locality", Value: string(f.Locality)})
	}
	if f.Budget != "" {
		query = append(query, bson.E{Key: "budget_range", Value: string(f.Budget)})
	}
	if f.AssignedTo != "" {
		query = append(query, bson.E{Key: "assigned_to", Value: f.AssignedTo})
	}
	return query
}

func mongoSort(f ListFilter) bson.D {
	dir := 1
	if f.SortDesc {
		dir = -1
	}
	return bson.D{{Key: string(f.SortBy), Value: dir}, {Key: "_id", Value: dir}}
}

func changesDoc(c Changes, now time.Time) bson.D {
	cols := c.columns()
	doc := make(bson.D, 0, len(cols)+1)
	for _, col := range cols {
		doc = append(doc, bson.E{Key: col.name, Value: col.value})
	}
	return append(doc, bson.E{Key: "updated_at", Value: now})
}

func mutableFields(l *Lead) bson.D {
	notes := l.Notes
	if notes == nil {
		notes = []Note{}
	}
	return bson.D{
		{Key: "status", Value: string(l.Status)},
		{Key: "priority", Value: string(l.Priority)},
		{Key: "assigned_to", Value: l.AssignedTo},
		{Key: "follow_up_date", Value: l.FollowUpDate},
		{Key: "last_contacted_at", Value: l.LastContactedAt},
		{Key: "notes", Value: notes},
		{Key: "converted_property", Value: l.ConvertedProperty},
		{Key: "converted_at", Value: l.ConvertedAt},
		{Key: "deal_value", Value: l.DealValue},
		{Key: "updated_at", Value: l.UpdatedAt},
	}
}

func groupPipeline(field string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}
