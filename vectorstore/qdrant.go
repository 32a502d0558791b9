package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cortexmem/engine/cortexerr"
	"github.com/cortexmem/engine/types"
)

// QdrantConfig configures the Qdrant-backed VectorStore, grounded on the
// teacher's rag/qdrant_store.go QdrantConfig, extended with the tenant
// naming and collection-lifecycle dimension verification spec §4.5 requires.
type QdrantConfig struct {
	BaseURL    string        `json:"base_url,omitempty"`
	APIKey     string        `json:"api_key,omitempty"`
	BaseName   string        `json:"base_name"`
	TenantID   string        `json:"tenant_id,omitempty"`
	Dimension  int           `json:"dimension"`
	Distance   string        `json:"distance,omitempty"` // Cosine (default), Dot, Euclid
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// QdrantStore implements Store using Qdrant's REST API.
type QdrantStore struct {
	cfg        QdrantConfig
	collection string
	baseURL    string
	client     *http.Client
	logger     *zap.Logger

	ensureOnce sync.Once
	ensureErr  error
}

var cortexQdrantNamespace = uuid.MustParse("c0d9f9a2-2f1a-4f2a-9a7e-6c7a1f9b4d2e")

func qdrantPointID(memID string) string {
	return uuid.NewSHA1(cortexQdrantNamespace, []byte(memID)).String()
}

// CollectionName returns the effective, tenant-suffixed collection name
// (spec §4.5 "Tenant-aware naming"): base_name, with "_<tenant_id>"
// suffixed when a tenant is configured.
func (cfg QdrantConfig) CollectionName() string {
	if cfg.TenantID == "" {
		return cfg.BaseName
	}
	return cfg.BaseName + "_" + cfg.TenantID
}

// NewQdrantStore creates a Qdrant-backed Store and eagerly ensures the
// tenant-scoped collection exists with the configured dimension (spec §4.5
// "Collection lifecycle"). A dimension mismatch against an existing
// collection is a hard Config error, never silently tolerated.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.BaseName) == "" {
		return nil, cortexerr.New(cortexerr.Config, "qdrant base_name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, cortexerr.New(cortexerr.Config, "qdrant dimension is required when ensuring a collection")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Distance == "" {
		cfg.Distance = "Cosine"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}

	s := &QdrantStore{
		cfg:        cfg,
		collection: cfg.CollectionName(),
		baseURL:    baseURL,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(zap.String("component", "vectorstore_qdrant"), zap.String("collection", cfg.CollectionName())),
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

type qdrantCollectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	s.ensureOnce.Do(func() {
		var info qdrantCollectionInfo
		err := s.doJSON(ctx, http.MethodGet, s.collectionPath(""), nil, &info)
		if err == nil {
			// Collection exists: verify dimension matches (spec §4.5
			// "a mismatch is a hard error (config misuse)").
			got := info.Result.Config.Params.Vectors.Size
			if got != 0 && got != s.cfg.Dimension {
				s.ensureErr = cortexerr.Newf(cortexerr.Config,
					"qdrant collection %q has dimension %d, configured dimension is %d; operator must migrate or reconfigure",
					s.collection, got, s.cfg.Dimension)
			}
			return
		}

		// Absent: create with the configured dimension and distance.
		body := map[string]any{
			"vectors": map[string]any{
				"size":     s.cfg.Dimension,
				"distance": s.cfg.Distance,
			},
		}
		var created any
		if err := s.doJSON(ctx, http.MethodPut, s.collectionPath(""), body, &created); err != nil {
			s.ensureErr = cortexerr.New(cortexerr.VectorStore, "create qdrant collection").WithCause(err)
		}
	})
	return s.ensureErr
}

func (s *QdrantStore) collectionPath(suffix string) string {
	return fmt.Sprintf("/collections/%s%s", url.PathEscape(s.collection), suffix)
}

func (s *QdrantStore) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *QdrantStore) Insert(ctx context.Context, mem types.Memory) error {
	return s.upsert(ctx, mem)
}

func (s *QdrantStore) Update(ctx context.Context, mem types.Memory) error {
	if _, err := s.Get(ctx, mem.ID); err != nil {
		return err
	}
	return s.upsert(ctx, mem)
}

func (s *QdrantStore) upsert(ctx context.Context, mem types.Memory) error {
	if mem.ID == "" {
		return cortexerr.New(cortexerr.Validation, "memory id is required")
	}
	if len(mem.Embedding) != s.cfg.Dimension {
		return cortexerr.Newf(cortexerr.Config, "vector dimension mismatch: got %d want %d", len(mem.Embedding), s.cfg.Dimension)
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	payload := EncodePayload(mem)
	payload["cortex_id"] = mem.ID

	req := struct {
		Points []point `json:"points"`
	}{Points: []point{{ID: qdrantPointID(mem.ID), Vector: mem.Embedding, Payload: payload}}}

	var resp any
	if err := s.doJSON(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), req, &resp); err != nil {
		return cortexerr.New(cortexerr.VectorStore, "qdrant upsert").WithCause(err)
	}
	return nil
}

func (s *QdrantStore) Delete(ctx context.Context, id string) error {
	req := struct {
		Points []string `json:"points"`
	}{Points: []string{qdrantPointID(id)}}
	var resp any
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, &resp); err != nil {
		return cortexerr.New(cortexerr.VectorStore, "qdrant delete").WithCause(err)
	}
	return nil
}

func (s *QdrantStore) Get(ctx context.Context, id string) (types.Memory, error) {
	req := struct {
		IDs         []string `json:"ids"`
		WithPayload bool     `json:"with_payload"`
		WithVector  bool     `json:"with_vector"`
	}{IDs: []string{qdrantPointID(id)}, WithPayload: true, WithVector: true}

	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points"), req, &resp); err != nil {
		return types.Memory{}, cortexerr.New(cortexerr.VectorStore, "qdrant get").WithCause(err)
	}
	if len(resp.Result) == 0 {
		return types.Memory{}, cortexerr.Newf(cortexerr.NotFound, "memory %q not found", id)
	}
	return decodeQdrantPoint(id, resp.Result[0]), nil
}

type qdrantPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func decodeQdrantPoint(fallbackID string, p qdrantPoint) types.Memory {
	id := fallbackID
	if p.Payload != nil {
		if cid, ok := p.Payload["cortex_id"].(string); ok && cid != "" {
			id = cid
		}
	}
	return DecodePayload(id, p.Vector, p.Payload)
}

func (s *QdrantStore) Search(ctx context.Context, query []float32, topK int, filter map[string]any) ([]types.ScoredMemory, error) {
	return s.SearchWithThreshold(ctx, query, topK, filter, nil)
}

func (s *QdrantStore) SearchWithThreshold(
	ctx context.Context,
	query []float32,
	topK int,
	filter map[string]any,
	threshold *float64,
) ([]types.ScoredMemory, error) {
	if topK <= 0 {
		return []types.ScoredMemory{}, nil
	}
	if len(query) != s.cfg.Dimension {
		return nil, cortexerr.Newf(cortexerr.Config, "query dimension mismatch: got %d want %d", len(query), s.cfg.Dimension)
	}

	req := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	if qf := translateFilterToQdrant(filter); qf != nil {
		req["filter"] = qf
	}
	if threshold != nil {
		req["score_threshold"] = *threshold
	}

	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &resp); err != nil {
		return nil, cortexerr.New(cortexerr.VectorStore, "qdrant search").WithCause(err)
	}

	out := make([]types.ScoredMemory, 0, len(resp.Result))
	for _, p := range resp.Result {
		out = append(out, types.ScoredMemory{
			Memory:     decodeQdrantPoint(fmt.Sprint(p.ID), p),
			Similarity: p.Score,
		})
	}
	return out, nil
}

// List returns matching memories newest first, capped at limit. It reads a
// single scroll page of max(limit, 1000) points; matching points beyond that
// page are not returned, even when limit is 0.
func (s *QdrantStore) List(ctx context.Context, filter map[string]any, limit int) ([]types.Memory, error) {
	page := limit
	if page < 1000 {
		page = 1000
	}
	_, points, err := s.scroll(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	out := make([]types.Memory, 0, len(points))
	for _, p := range points {
		out = append(out, decodeQdrantPoint(fmt.Sprint(p.ID), p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *QdrantStore) ScrollIDs(ctx context.Context, filter map[string]any, limit int) ([]string, error) {
	ids, _, err := s.scroll(ctx, filter, limit)
	return ids, err
}

func (s *QdrantStore) scroll(ctx context.Context, filter map[string]any, limit int) ([]string, []qdrantPoint, error) {
	if limit <= 0 {
		limit = 1000
	}
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	if qf := translateFilterToQdrant(filter); qf != nil {
		req["filter"] = qf
	}
	var resp struct {
		Result struct {
			Points []qdrantPoint `json:"points"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/scroll"), req, &resp); err != nil {
		return nil, nil, cortexerr.New(cortexerr.VectorStore, "qdrant scroll").WithCause(err)
	}
	ids := make([]string, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		ids = append(ids, fmt.Sprint(decodeQdrantPoint(fmt.Sprint(p.ID), p).ID))
	}
	return ids, resp.Result.Points, nil
}

func (s *QdrantStore) HealthCheck(ctx context.Context) (HealthStatus, error) {
	start := time.Now()
	var info qdrantCollectionInfo
	err := s.doJSON(ctx, http.MethodGet, s.collectionPath(""), nil, &info)
	latency := time.Since(start)
	if err != nil {
		return HealthStatus{Healthy: false, Latency: latency, Message: err.Error()}, nil
	}
	return HealthStatus{
		Healthy:   true,
		Dimension: info.Result.Config.Params.Vectors.Size,
		Latency:   latency,
	}, nil
}

// translateFilterToQdrant renders the engine's generic equality/range/list
// filter map into Qdrant's "must" clause form (spec §4.5 "Filter
// translation").
func translateFilterToQdrant(filter map[string]any) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filter))
	for k, v := range filter {
		switch val := v.(type) {
		case RangeFilter:
			rng := map[string]any{}
			if val.Min != nil {
				rng["gte"] = *val.Min
			}
			if val.Max != nil {
				rng["lte"] = *val.Max
			}
			must = append(must, map[string]any{"key": k, "range": rng})
		case []string:
			for _, item := range val {
				must = append(must, map[string]any{"key": k, "match": map[string]any{"value": item}})
			}
		case []any:
			should := make([]map[string]any, 0, len(val))
			for _, item := range val {
				should = append(should, map[string]any{"key": k, "match": map[string]any{"value": item}})
			}
			must = append(must, map[string]any{"should": should})
		default:
			must = append(must, map[string]any{"key": k, "match": map[string]any{"value": val}})
		}
	}
	return map[string]any{"must": must}
}
