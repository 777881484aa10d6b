package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
)

// mongoDoc is the stored shape of a record: one collection per record
// collection, fields nested under "fields" so system attributes never clash
// with document fields.
type mongoDoc struct {
	ID        string `bson:"_id"`
	CreatedAt string `bson:"createdAt"`
	Seq       int64  `bson:"seq"`
	Fields    bson.D `bson:"fields"`
}

// MongoStore keeps each collection in a MongoDB collection of the same
// name. On a replica set or sharded cluster Transact runs in a
// multi-document transaction. A standalone server refuses those, and
// Transact then applies the ops one by one and undoes the applied ones
// when a later op fails.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	clock  func() time.Time
	// standalone is set once the server refused a transaction.
	standalone atomic.Bool
}

// ConnectMongo dials uri and pings the server.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStore(client, database), nil
}

// NewMongoStore wraps a connected client.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database), clock: time.Now}
}

func (s *MongoStore) GetAll(ctx context.Context, collection string) ([]Record, error) {
	return s.GetWhere(ctx, collection)
}

var mongoOperators = map[Operator]string{
	Eq: "$eq", Ne: "$ne", Lt: "$lt", Le: "$lte", Gt: "$gt", Ge: "$gte",
}

func mongoPath(field string) string {
	switch field {
	case "id":
		return "_id"
	case "createdAt":
		return "createdAt"
	}
	return "fields." + field
}

func (s *MongoStore) GetWhere(ctx context.Context, collection string, preds ...Predicate) ([]Record, error) {
	filter := bson.D{}
	var residual []Predicate
	for _, p := range preds {
		op, ok := mongoOperators[p.Op]
		if !ok {
			return nil, apperr.Invalid("op", "unsupported operator %q", p.Op)
		}
		if !p.Pushdown() {
			residual = append(residual, p)
			continue
		}
		filter = append(filter, bson.E{Key: mongoPath(p.Field), Value: bson.D{{Key: op, Value: p.Value}}})
	}
	if len(filter) > 1 {
		// Two predicates on one path would collide in a flat document.
		and := bson.A{}
		for _, e := range filter {
			and = append(and, bson.D{e})
		}
		filter = bson.D{{Key: "$and", Value: and}}
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, apperr.WrapStore("get", collection, err)
	}
	defer cur.Close(ctx)

	out := []Record{}
	for cur.Next(ctx) {
		var doc mongoDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, apperr.WrapStore("get", collection, err)
		}
		r := fromMongo(doc)
		if MatchAll(r, residual) {
			out = append(out, r)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.WrapStore("get", collection, err)
	}
	return out, nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Record, error) {
	var doc mongoDoc
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	if err != nil {
		return Record{}, apperr.WrapStore("get", collection, err)
	}
	return fromMongo(doc), nil
}

func (s *MongoStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := NewID()
	if err := s.insert(ctx, AddOp{Collection: collection, ID: id, Fields: fields}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, partial Fields) error {
	if len(partial) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}
	set := bson.D{}
	for _, f := range partial {
		set = append(set, bson.E{Key: "fields." + f.Name, Value: toBSON(f.Value)})
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return apperr.WrapStore("update", collection, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return apperr.WrapStore("delete", collection, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Transact(ctx context.Context, ops ...Op) error {
	if s.standalone.Load() {
		return s.transactSequential(ctx, ops)
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return apperr.WrapStore("begin", "", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, op := range ops {
			if _, err := s.apply(sc, op, false); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if transactionsUnsupported(err) {
		s.standalone.Store(true)
		return s.transactSequential(ctx, ops)
	}
	return err
}

// transactionsUnsupported reports whether the server rejected the
// transaction because it is not part of a replica set.
func transactionsUnsupported(err error) bool {
	var ce mongo.CommandError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == 20 || ce.HasErrorMessage("Transaction numbers are only allowed")
}

// transactSequential applies ops in order. When an op fails, the applied
// ones are undone newest first and the op's error is returned. If an undo
// fails too, the result is a PartialWriteError naming the failed op.
func (s *MongoStore) transactSequential(ctx context.Context, ops []Op) error {
	undos := make([]func(context.Context) error, 0, len(ops))
	for _, op := range ops {
		undo, err := s.apply(ctx, op, true)
		if err == nil {
			undos = append(undos, undo)
			continue
		}
		if len(undos) == 0 {
			return err
		}
		compensated := true
		for i := len(undos) - 1; i >= 0; i-- {
			if uerr := undos[i](ctx); uerr != nil {
				compensated = false
			}
		}
		if compensated {
			return err
		}
		return &apperr.PartialWriteError{Step: opName(op), Err: err}
	}
	return nil
}

func opName(op Op) string {
	switch o := op.(type) {
	case AddOp:
		return "add " + o.Collection
	case UpdateOp:
		return "update " + o.Collection + "/" + o.ID
	case DeleteOp:
		return "delete " + o.Collection + "/" + o.ID
	case MutateOp:
		return "mutate " + o.Collection + "/" + o.ID
	}
	return fmt.Sprintf("%T", op)
}

// apply runs one op. With withUndo set it first captures what is needed to
// reverse it and returns the reversal.
func (s *MongoStore) apply(ctx context.Context, op Op, withUndo bool) (func(context.Context) error, error) {
	switch o := op.(type) {
	case AddOp:
		if o.ID == "" {
			o.ID = NewID()
		}
		if err := s.insert(ctx, o); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			_, err := s.db.Collection(o.Collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: o.ID}})
			return err
		}, nil
	case UpdateOp, DeleteOp, MutateOp:
		coll, id := opTarget(op)
		var prev mongoDoc
		if withUndo {
			err := s.db.Collection(coll).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&prev)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("%s/%s: %w", coll, id, apperr.ErrNotFound)
			}
			if err != nil {
				return nil, apperr.WrapStore("get", coll, err)
			}
		}
		var err error
		switch o := op.(type) {
		case UpdateOp:
			err = s.Update(ctx, o.Collection, o.ID, o.Fields)
		case DeleteOp:
			err = s.Delete(ctx, o.Collection, o.ID)
		case MutateOp:
			err = s.mutate(ctx, o)
		}
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			_, err := s.db.Collection(coll).ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, prev, options.Replace().SetUpsert(true))
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unsupported op %T", op)
	}
}

func opTarget(op Op) (collection, id string) {
	switch o := op.(type) {
	case UpdateOp:
		return o.Collection, o.ID
	case DeleteOp:
		return o.Collection, o.ID
	case MutateOp:
		return o.Collection, o.ID
	}
	return "", ""
}

func (s *MongoStore) insert(ctx context.Context, o AddOp) error {
	now := s.clock()
	id := o.ID
	if id == "" {
		id = NewID()
	}
	doc := mongoDoc{ID: id, CreatedAt: FormatTime(now), Seq: now.UnixNano(), Fields: toBSONDoc(o.Fields)}
	_, err := s.db.Collection(o.Collection).InsertOne(ctx, doc)
	return apperr.WrapStore("add", o.Collection, err)
}

func (s *MongoStore) mutate(ctx context.Context, o MutateOp) error {
	r, err := s.Get(ctx, o.Collection, o.ID)
	if err != nil {
		return err
	}
	if err := o.Apply(&r); err != nil {
		return err
	}
	res, err := s.db.Collection(o.Collection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: o.ID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "fields", Value: toBSONDoc(r.Fields)}}}})
	if err != nil {
		return apperr.WrapStore("update", o.Collection, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", o.Collection, o.ID, apperr.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toBSONDoc(f Fields) bson.D {
	d := make(bson.D, 0, len(f))
	for _, fl := range f {
		d = append(d, bson.E{Key: fl.Name, Value: toBSON(fl.Value)})
	}
	return d
}

func toBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case Fields:
		return toBSONDoc(t)
	case []interface{}:
		a := make(bson.A, len(t))
		for i := range t {
			a[i] = toBSON(t[i])
		}
		return a
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(bson.D, 0, len(t))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: toBSON(t[k])})
		}
		return d
	default:
		return v
	}
}

func fromMongo(doc mongoDoc) Record {
	r := Record{ID: doc.ID, CreatedAt: doc.CreatedAt, Fields: make(Fields, 0, len(doc.Fields))}
	for _, e := range doc.Fields {
		r.Fields = append(r.Fields, Field{Name: e.Key, Value: fromBSON(e.Value)})
	}
	return r
}

// fromBSON normalises decoded values to the shapes JSON decoding produces.
func fromBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = fromBSON(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = fromBSON(val)
		}
		return m
	case bson.A:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = fromBSON(t[i])
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return FormatTime(t.Time())
	default:
		return v
	}
}
