// Package vector provides the Qdrant-backed vector store used for
// chunk storage and similarity search.
package vector

import (
	"context"
	"fmt"
	"log/slog"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/corvid-labs/ragline/internal/rag"
)

// Store is a Qdrant-backed chunk store. It wraps one gRPC connection
// and is safe for concurrent use.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	logger      *slog.Logger
}

// NewStore connects to Qdrant at host:port and scopes all operations to
// the named collection. The connection is lazy; the first RPC dials.
func NewStore(host string, port int, collection string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}

	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		logger:      logger,
	}, nil
}

// EnsureCollection creates the collection with cosine distance if it
// does not exist yet. vectorSize must match the embedding model's
// output dimension; an existing collection is left untouched even if
// its dimension differs.
func (s *Store) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	resp, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	for _, c := range resp.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", s.collection, err)
	}

	s.logger.Info("created qdrant collection",
		"collection", s.collection,
		"vector_size", vectorSize)

	return nil
}

// Upsert writes all points in one batched call.
func (s *Store) Upsert(ctx context.Context, points []rag.Point) error {
	if len(points) == 0 {
		return nil
	}

	pts := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		payload, err := toPayload(p.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload for point %q: %w", p.ID, err)
		}
		pts[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: p.Vector}}},
			Payload: payload,
		}
	}

	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         pts,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(pts), err)
	}

	return nil
}

// Search returns up to limit hits ordered by descending similarity,
// with payloads attached.
func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]rag.ScoredPoint, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", s.collection, err)
	}

	hits := make([]rag.ScoredPoint, len(resp.Result))
	for i, pt := range resp.Result {
		hits[i] = rag.ScoredPoint{
			Score:   pt.Score,
			Payload: fromPayload(pt.Payload),
		}
	}

	return hits, nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// toPayload converts a generic payload map to the Qdrant value shape.
func toPayload(payload map[string]any) (map[string]*pb.Value, error) {
	out := make(map[string]*pb.Value, len(payload))
	for k, v := range payload {
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func toValue(v any) (*pb.Value, error) {
	switch val := v.(type) {
	case nil:
		return &pb.Value{Kind: &pb.Value_NullValue{NullValue: pb.NullValue_NULL_VALUE}}, nil
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}, nil
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}, nil
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}, nil
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}, nil
	case float32:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: float64(val)}}, nil
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}, nil
	case map[string]any:
		fields, err := toPayload(val)
		if err != nil {
			return nil, err
		}
		return &pb.Value{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: fields}}}, nil
	case []any:
		values := make([]*pb.Value, len(val))
		for i, item := range val {
			converted, err := toValue(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			values[i] = converted
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: values}}}, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", v)
	}
}

// fromPayload converts a Qdrant payload back to the generic map shape.
func fromPayload(payload map[string]*pb.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_StructValue:
		return fromPayload(kind.StructValue.GetFields())
	case *pb.Value_ListValue:
		values := kind.ListValue.GetValues()
		items := make([]any, len(values))
		for i, item := range values {
			items[i] = fromValue(item)
		}
		return items
	default:
		return nil
	}
}

var _ rag.VectorStore = (*Store)(nil)
