package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
)

var qdrantKeywordFields = []string{"owner_id", "subject_id", "topic_id", "document_id"}

type qdrantConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	APIKey string `json:"api_key"`
}

type qdrantStore struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
	dimension   int

	mu      sync.Mutex
	ensured map[string]bool
}

func newQdrantStore(_ Deps, opts Options) (Store, error) {
	cfg := qdrantConfig{Host: "localhost", Port: 6334}
	if err := decodeConfig(opts.Data, &cfg); err != nil {
		return nil, fmt.Errorf("decode qdrant config: %w", err)
	}
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}
	conn, err := grpc.NewClient(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &qdrantStore{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  opts.Collection,
		dimension:   opts.Dimension,
		ensured:     map[string]bool{},
	}, nil
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (s *qdrantStore) Type() string { return "qdrant" }

func (s *qdrantStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[name] {
		return nil
	}
	exists, err := s.exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		m, ef := uint64(hnswM), uint64(hnswEfConstruction)
		_, err := s.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: name,
			VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
				Size:     uint64(dimension),
				Distance: pb.Distance_Cosine,
			}}},
			HnswConfig: &pb.HnswConfigDiff{M: &m, EfConstruct: &ef},
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	wait := true
	for _, field := range qdrantKeywordFields {
		_, err := s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: name,
			Wait:           &wait,
			FieldName:      field,
			FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("create payload index %s: %w", field, err)
		}
	}
	s.ensured[name] = true
	return nil
}

func (s *qdrantStore) exists(ctx context.Context, name string) (bool, error) {
	resp, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	for _, c := range resp.GetCollections() {
		if c.GetName() == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *qdrantStore) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ensured, name)
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (s *qdrantStore) Insert(ctx context.Context, records ...model.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	base := time.Now().UnixNano()
	points := make([]*pb.PointStruct, 0, len(records))
	for i, r := range records {
		if err := validateRecord(r, s.dimension); err != nil {
			return err
		}
		meta, err := encodeMetadata(r.Metadata)
		if err != nil {
			return err
		}
		points = append(points, &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Embedding}}},
			Payload: map[string]*pb.Value{
				"text":        stringValue(r.Text),
				"owner_id":    stringValue(r.OwnerID),
				"subject_id":  stringValue(r.SubjectID),
				"topic_id":    stringValue(r.TopicID),
				"document_id": stringValue(r.DocumentID),
				"metadata":    stringValue(meta),
				"seq":         {Kind: &pb.Value_IntegerValue{IntegerValue: base + int64(i)}},
			},
		})
	}
	wait := true
	return s.withCollection(ctx, func() error {
		_, err := s.points.Upsert(ctx, &pb.UpsertPoints{CollectionName: s.collection, Wait: &wait, Points: points})
		return err
	})
}

func (s *qdrantStore) Search(ctx context.Context, vector []float32, filter Filter, topK int) ([]model.SearchHit, error) {
	if filter.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}
	f := filter.Effective()
	must := []*pb.Condition{keywordCondition("owner_id", f.OwnerID)}
	if len(f.DocumentIDs) > 0 {
		must = append(must, &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   "document_id",
			Match: &pb.Match{MatchValue: &pb.Match_Keywords{Keywords: &pb.RepeatedStrings{Strings: f.DocumentIDs}}},
		}}})
	}
	if f.SubjectID != "" {
		must = append(must, keywordCondition("subject_id", f.SubjectID))
	}
	if f.TopicID != "" {
		must = append(must, keywordCondition("topic_id", f.TopicID))
	}
	var resp *pb.SearchResponse
	err := s.withCollection(ctx, func() error {
		var err error
		resp, err = s.points.Search(ctx, &pb.SearchPoints{
			CollectionName: s.collection,
			Vector:         vector,
			Filter:         &pb.Filter{Must: must},
			Limit:          uint64(topK),
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	type ranked struct {
		hit model.SearchHit
		seq int64
	}
	items := make([]ranked, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		p := pt.GetPayload()
		items = append(items, ranked{
			hit: model.SearchHit{
				Text:       p["text"].GetStringValue(),
				Score:      pt.GetScore(),
				DocumentID: p["document_id"].GetStringValue(),
				SubjectID:  p["subject_id"].GetStringValue(),
				TopicID:    p["topic_id"].GetStringValue(),
				Metadata:   decodeMetadata([]byte(p["metadata"].GetStringValue())),
			},
			seq: p["seq"].GetIntegerValue(),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].hit.Score != items[j].hit.Score {
			return items[i].hit.Score > items[j].hit.Score
		}
		return items[i].seq < items[j].seq
	})
	hits := make([]model.SearchHit, 0, len(items))
	for _, it := range items {
		hits = append(hits, it.hit)
	}
	return hits, nil
}

func (s *qdrantStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return nil
	}
	return s.deleteWhere(ctx, &pb.Filter{Must: []*pb.Condition{keywordCondition("document_id", documentID)}})
}

func (s *qdrantStore) DeleteByScope(ctx context.Context, scopeID string) error {
	if scopeID == "" {
		return nil
	}
	return s.deleteWhere(ctx, &pb.Filter{Should: []*pb.Condition{
		keywordCondition("subject_id", scopeID),
		keywordCondition("topic_id", scopeID),
	}})
}

func (s *qdrantStore) deleteWhere(ctx context.Context, f *pb.Filter) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: f}},
	})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (s *qdrantStore) withCollection(ctx context.Context, fn func() error) error {
	err := fn()
	if status.Code(err) != codes.NotFound {
		return err
	}
	logutil.GetLogger(ctx).Warn("vector collection missing, recreating", zap.String("collection", s.collection))
	s.mu.Lock()
	delete(s.ensured, s.collection)
	s.mu.Unlock()
	if err := s.EnsureCollection(ctx, s.collection, s.dimension); err != nil {
		return err
	}
	return fn()
}

func (s *qdrantStore) Close() error {
	return s.conn.Close()
}

func stringValue(v string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
		Key:   key,
		Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
	}}}
}

func init() {
	Register("qdrant", newQdrantStore)
}
