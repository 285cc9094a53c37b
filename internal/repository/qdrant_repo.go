package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultVectorDimension = 1024

// QdrantConnectionConfig holds Qdrant connection settings.
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud key; implies TLS
	UseTLS          bool
	VectorDimension int
}

// VibelogPayload is stored next to each vibelog vector.
type VibelogPayload struct {
	VibelogID string
	UserID    string
	Title     string
	Language  string
}

// VectorMatch is one nearest-neighbour hit.
type VectorMatch struct {
	VibelogID string
	Score     float32
	Payload   VibelogPayload
}

// QdrantRepository stores one vector per published vibelog, keyed by the vibelog id.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	points          pb.PointsClient
	collections     pb.CollectionsClient
	collection      string
	vectorDimension int
}

// NewQdrantRepository dials Qdrant over gRPC. The dial is lazy, so a down
// Qdrant surfaces on the first call rather than at startup.
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	dim := cfg.VectorDimension
	if dim <= 0 {
		dim = defaultVectorDimension
	}

	conn, err := grpc.NewClient(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), dialOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("qdrant dial %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantRepository{
		conn:            conn,
		points:          pb.NewPointsClient(conn),
		collections:     pb.NewCollectionsClient(conn),
		collection:      cfg.Collection,
		vectorDimension: dim,
	}, nil
}

// dialOptions uses plaintext for a local instance. An API key (Qdrant Cloud)
// or UseTLS switches to TLS 1.3, and the key rides along as call metadata.
func dialOptions(cfg *QdrantConnectionConfig) []grpc.DialOption {
	if !cfg.UseTLS && cfg.APIKey == "" {
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})),
	}
	if key := cfg.APIKey; key != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(
			func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
				return invoker(metadata.AppendToOutgoingContext(ctx, "api-key", key), method, req, reply, cc, callOpts...)
			}))
	}
	return opts
}

func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection on first start and refuses to run
// against one built for a different vector size.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: r.collection})
	if err == nil {
		if size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize(); size > 0 && size != uint64(r.vectorDimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collection, size, r.vectorDimension)
		}
		return nil
	}

	m, ef := uint64(16), uint64(128)
	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{M: &m, EfConstruct: &ef},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", r.collection, err)
	}
	return nil
}

// Upsert writes the vector for a vibelog.
func (r *QdrantRepository) Upsert(ctx context.Context, vector []float32, payload VibelogPayload) error {
	id, err := uuid.Parse(payload.VibelogID)
	if err != nil {
		return fmt.Errorf("invalid vibelog id %q: %w", payload.VibelogID, err)
	}

	_, err = r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points: []*pb.PointStruct{{
			Id: pointID(id),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}},
			},
			Payload: map[string]*pb.Value{
				"vibelog_id": stringValue(payload.VibelogID),
				"user_id":    stringValue(payload.UserID),
				"title":      stringValue(payload.Title),
				"language":   stringValue(payload.Language),
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert vibelog %s: %w", payload.VibelogID, err)
	}
	return nil
}

// Search returns the topK nearest vibelogs scoring at least minScore,
// leaving out excludeID when it is set.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int, minScore float32, excludeID string) ([]VectorMatch, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if minScore > 0 {
		req.ScoreThreshold = &minScore
	}
	if excludeID != "" {
		if id, err := uuid.Parse(excludeID); err == nil {
			req.Filter = &pb.Filter{
				MustNot: []*pb.Condition{{
					ConditionOneOf: &pb.Condition_HasId{
						HasId: &pb.HasIdCondition{HasId: []*pb.PointId{pointID(id)}},
					},
				}},
			}
		}
	}

	resp, err := r.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.collection, err)
	}

	out := make([]VectorMatch, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		p := parsePayload(hit.GetPayload())
		if p.VibelogID == "" {
			p.VibelogID = hit.GetId().GetUuid()
		}
		out = append(out, VectorMatch{VibelogID: p.VibelogID, Score: hit.GetScore(), Payload: p})
	}
	return out, nil
}

// Delete removes a vibelog's vector, e.g. after it is unpublished.
func (r *QdrantRepository) Delete(ctx context.Context, vibelogID string) error {
	id, err := uuid.Parse(vibelogID)
	if err != nil {
		return fmt.Errorf("invalid vibelog id %q: %w", vibelogID, err)
	}
	_, err = r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(id)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete vibelog %s: %w", vibelogID, err)
	}
	return nil
}

func pointID(id uuid.UUID) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func parsePayload(payload map[string]*pb.Value) VibelogPayload {
	return VibelogPayload{
		VibelogID: payload["vibelog_id"].GetStringValue(),
		UserID:    payload["user_id"].GetStringValue(),
		Title:     payload["title"].GetStringValue(),
		Language:  payload["language"].GetStringValue(),
	}
}
