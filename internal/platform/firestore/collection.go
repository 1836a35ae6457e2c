package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// Record is a stored document schema that knows how to validate itself into a domain value.
type Record[T any] interface {
	ToDomain(id string) (T, error)
}

// Decoder hydrates a domain value from a snapshot.
type Decoder[T any] func(snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// RecordDecoder decodes the snapshot into R with Firestore's struct mapping and converts it to T.
// Conversion failures are reported as ErrInvalidDocument.
func RecordDecoder[R Record[T], T any]() Decoder[T] {
	return func(snap *firestore.DocumentSnapshot) (T, error) {
		var (
			rec  R
			zero T
		)
		if err := snap.DataTo(&rec); err != nil {
			return zero, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, snap.Ref.ID, err)
		}
		value, err := rec.ToDomain(snap.Ref.ID)
		if err != nil {
			if errors.Is(err, ErrInvalidDocument) {
				return zero, err
			}
			return zero, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, snap.Ref.ID, err)
		}
		return value, nil
	}
}

// Collection gives typed read access to one Firestore collection.
type Collection[T any] struct {
	provider *Provider
	name     string
	decode   Decoder[T]
	logger   *zap.Logger
}

// CollectionOption customises a Collection.
type CollectionOption func(*collectionOptions)

type collectionOptions struct {
	logger *zap.Logger
}

// WithCollectionLogger sets the logger used to report skipped documents.
func WithCollectionLogger(logger *zap.Logger) CollectionOption {
	return func(o *collectionOptions) {
		o.logger = logger
	}
}

// NewCollection binds a decoder to a collection name.
func NewCollection[T any](provider *Provider, name string, decode Decoder[T], opts ...CollectionOption) *Collection[T] {
	options := collectionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	name = strings.TrimSpace(name)
	return &Collection[T]{
		provider: provider,
		name:     name,
		decode:   decode,
		logger:   options.logger.With(zap.String("collection", name)),
	}
}

// Name returns the collection path.
func (c *Collection[T]) Name() string {
	return c.name
}

// Get fetches and decodes one document. Invalid documents are returned as an *Error with
// IsInvalid set rather than being skipped.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	ref, err := c.doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	value, err := c.decode(snap)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return value, nil
}

// List runs the query and returns every document that decodes. Documents failing validation are
// logged and skipped so that one bad record does not hide the rest of the collection.
func (c *Collection[T]) List(ctx context.Context, build QueryBuilder) ([]T, error) {
	coll, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}

	query := coll.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	items := make([]T, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(c.op("list"), err)
		}
		value, err := c.decode(snap)
		if err != nil {
			c.logger.Warn("skipping invalid document",
				zap.String("documentId", snap.Ref.ID),
				zap.Error(err),
			)
			continue
		}
		items = append(items, value)
	}
	return items, nil
}

// Snapshot fetches the raw snapshot for cursor construction.
func (c *Collection[T]) Snapshot(ctx context.Context, id string) (*firestore.DocumentSnapshot, error) {
	ref, err := c.doc(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, WrapError(c.op("snapshot"), err)
	}
	return snap, nil
}

func (c *Collection[T]) ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, WrapError("firestore.collection", errors.New("firestore: provider is nil"))
	}
	if c.name == "" {
		return nil, WrapError("firestore.collection", errors.New("firestore: collection name is required"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

func (c *Collection[T]) doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (c *Collection[T]) op(action string) string {
	return fmt.Sprintf("%s.%s", c.name, action)
}
