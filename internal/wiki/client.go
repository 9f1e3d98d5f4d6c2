package wiki

import (
	"context"
	"math"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/news-similarity/engine/internal/annotate"
	"github.com/news-similarity/engine/internal/metrics"
	"github.com/news-similarity/engine/internal/storage/models"
	"github.com/news-similarity/engine/pkg/logger"
	"github.com/news-similarity/engine/pkg/retry"
)

// histogramCats are the entity categories merged into a reference
// article's mention histogram.
var histogramCats = map[string]bool{
	"PERSON": true,
	"ORG":    true,
	"FAC":    true,
	"GPE":    true,
	"LOC":    true,
}

// Store is the persistent side of the client; *sqlite.Client
// implements it.
type Store interface {
	GetArticleByID(id int64) (*models.ReferenceArticle, error)
	GetArticleByTitle(title string) (*models.ReferenceArticle, error)
	UpsertArticle(a *models.ReferenceArticle) error
	GetEntityRefs(name string) ([]int64, bool, error)
	PutEntityRefs(name string, ids []int64) error
	PutHistogram(id int64, histogram map[string]float64) error
	GetSimilarity(id1, id2 int64) (float64, bool, error)
	PutSimilarity(id1, id2 int64, sim float64) error
}

// SharedCache is an optional cross-process memo in front of the store;
// *redis.Client implements it. All shared-cache failures are degraded
// to misses.
type SharedCache interface {
	GetSimilarity(ctx context.Context, id1, id2 int64) (float64, bool, error)
	SetSimilarity(ctx context.Context, id1, id2 int64, sim float64) error
	GetEntityRefs(ctx context.Context, name string) ([]int64, bool, error)
	SetEntityRefs(ctx context.Context, name string, ids []int64) error
}

// Options bound the client's retry and memo behavior.
type Options struct {
	MaxAttempts    int
	SearchLimit    int
	ArticleLRUSize int
	SimLRUSize     int
	EntityLRUSize  int
}

func (o *Options) setDefaults() {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.SearchLimit == 0 {
		o.SearchLimit = 10
	}
	if o.ArticleLRUSize == 0 {
		o.ArticleLRUSize = 1000
	}
	if o.SimLRUSize == 0 {
		o.SimLRUSize = 10000
	}
	if o.EntityLRUSize == 0 {
		o.EntityLRUSize = 1000
	}
}

type simKey struct {
	id1, id2 int64
}

// Client layers bounded in-process memos, an optional shared cache and
// the persistent store over a live Provider. Not safe for concurrent
// use; give each worker its own Client over the shared store.
type Client struct {
	provider  Provider
	store     Store
	shared    SharedCache
	annotator annotate.Annotator
	opts      Options

	artLRU  *lru.Cache[int64, *models.ReferenceArticle]
	histLRU *lru.Cache[int64, map[string]float64]
	simLRU  *lru.Cache[simKey, float64]
	entLRU  *lru.Cache[string, []int64]
}

// NewClient wires the caching layers. shared may be nil.
func NewClient(provider Provider, store Store, shared SharedCache, annotator annotate.Annotator, opts Options) (*Client, error) {
	opts.setDefaults()

	artLRU, err := lru.New[int64, *models.ReferenceArticle](opts.ArticleLRUSize)
	if err != nil {
		return nil, err
	}
	histLRU, err := lru.New[int64, map[string]float64](opts.ArticleLRUSize)
	if err != nil {
		return nil, err
	}
	simLRU, err := lru.New[simKey, float64](opts.SimLRUSize)
	if err != nil {
		return nil, err
	}
	entLRU, err := lru.New[string, []int64](opts.EntityLRUSize)
	if err != nil {
		return nil, err
	}

	return &Client{
		provider:  provider,
		store:     store,
		shared:    shared,
		annotator: annotator,
		opts:      opts,
		artLRU:    artLRU,
		histLRU:   histLRU,
		simLRU:    simLRU,
		entLRU:    entLRU,
	}, nil
}

func (c *Client) retryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  c.opts.MaxAttempts,
		InitialDelay: 200 * time.Millisecond,
		RetryIf: func(err error) bool {
			// Absences are terminal; only transient failures retry.
			return !IsResolvableAbsence(err)
		},
		Logger: logger.L(),
	}
}

// Article returns a reference article by id or by title (exactly one
// must be given). A terminal "no article" outcome is (nil, nil) and is
// never persisted; a later call may fetch it again. Only context
// cancellation and store failures surface as errors.
func (c *Client) Article(ctx context.Context, id int64, title string) (*models.ReferenceArticle, error) {
	if (id > 0) == (title != "") {
		return nil, ErrInvalidArgument
	}

	if id > 0 {
		if a, ok := c.artLRU.Get(id); ok {
			metrics.CacheHits.WithLabelValues("ref_article").Inc()
			return a, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("ref_article").Inc()

	var stored *models.ReferenceArticle
	var err error
	if id > 0 {
		stored, err = c.store.GetArticleByID(id)
	} else {
		stored, err = c.store.GetArticleByTitle(title)
	}
	if err != nil {
		return nil, err
	}
	if stored != nil {
		c.artLRU.Add(stored.ID, stored)
		return stored, nil
	}

	page, err := retry.DoWithResult(ctx, c.retryConfig(), func() (*Page, error) {
		if id > 0 {
			return c.provider.FetchByID(ctx, id)
		}
		return c.provider.FetchByTitle(ctx, title)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if IsResolvableAbsence(err) {
			metrics.WikiFetches.WithLabelValues("absent").Inc()
		} else {
			metrics.WikiFetches.WithLabelValues("failed").Inc()
		}
		logger.Debug("No reference article",
			zap.Int64("id", id),
			zap.String("title", title),
			zap.Error(err),
		)
		return nil, nil
	}
	metrics.WikiFetches.WithLabelValues("ok").Inc()

	// The page may already be stored under an older title; the upsert
	// keyed on id keeps that idempotent.
	article := &models.ReferenceArticle{
		ID:        page.ID,
		Title:     page.Title,
		Content:   page.Content,
		FetchedAt: time.Now(),
	}
	if err := c.store.UpsertArticle(article); err != nil {
		return nil, err
	}

	c.artLRU.Add(article.ID, article)
	return article, nil
}

// ResolveEntity maps an entity name to its search-ranked reference
// article ids. Resolutions, empty ones included, are persisted and
// never re-queried.
func (c *Client) ResolveEntity(ctx context.Context, name string) ([]int64, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	if ids, ok := c.entLRU.Get(name); ok {
		metrics.CacheHits.WithLabelValues("entity_refs").Inc()
		return ids, nil
	}
	metrics.CacheMisses.WithLabelValues("entity_refs").Inc()

	if c.shared != nil {
		if ids, ok, err := c.shared.GetEntityRefs(ctx, name); err == nil && ok {
			c.entLRU.Add(name, ids)
			return ids, nil
		}
	}

	if ids, ok, err := c.store.GetEntityRefs(name); err != nil {
		return nil, err
	} else if ok {
		c.entLRU.Add(name, ids)
		if c.shared != nil {
			c.shared.SetEntityRefs(ctx, name, ids)
		}
		return ids, nil
	}

	metrics.WikiSearches.Inc()
	titles, err := retry.DoWithResult(ctx, c.retryConfig(), func() ([]string, error) {
		return c.provider.Search(ctx, name, c.opts.SearchLimit)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Degrade to an empty resolution; it is still persisted.
		logger.Warn("Entity search failed", zap.String("name", name), zap.Error(err))
		titles = nil
	}

	ids := make([]int64, 0, len(titles))
	for _, title := range titles {
		a, err := c.Article(ctx, 0, title)
		if err != nil {
			return nil, err
		}
		if a == nil {
			continue
		}
		ids = append(ids, a.ID)
	}

	if err := c.store.PutEntityRefs(name, ids); err != nil {
		return nil, err
	}
	c.entLRU.Add(name, ids)
	if c.shared != nil {
		c.shared.SetEntityRefs(ctx, name, ids)
	}

	logger.Debug("Entity resolved",
		zap.String("name", name),
		zap.Int("articles", len(ids)),
	)
	return ids, nil
}

// EntityHistogram returns the article's normalized entity-mention
// histogram, computing and persisting it on first use. An absent
// article yields an empty histogram.
func (c *Client) EntityHistogram(ctx context.Context, id int64) (map[string]float64, error) {
	if h, ok := c.histLRU.Get(id); ok {
		metrics.CacheHits.WithLabelValues("histogram").Inc()
		return h, nil
	}
	metrics.CacheMisses.WithLabelValues("histogram").Inc()

	a, err := c.Article(ctx, id, "")
	if err != nil {
		return nil, err
	}
	if a == nil {
		empty := map[string]float64{}
		c.histLRU.Add(id, empty)
		return empty, nil
	}
	if a.Histogram != nil {
		c.histLRU.Add(id, a.Histogram)
		return a.Histogram, nil
	}

	doc, err := c.annotator.Annotate(a.Content, annotate.Level{Syntax: true, Entities: true})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	total := 0
	for _, ent := range doc.Entities {
		if histogramCats[ent.Label] {
			counts[strings.ToLower(ent.Text)]++
			total++
		}
	}

	histogram := make(map[string]float64, len(counts))
	if total > 0 {
		for term, n := range counts {
			histogram[term] = float64(n) / float64(total)
		}
	}

	if err := c.store.PutHistogram(id, histogram); err != nil {
		return nil, err
	}
	a.Histogram = histogram
	c.histLRU.Add(id, histogram)

	return histogram, nil
}

// ArticleSimilarity is the histogram-intersection similarity of two
// reference articles, in [0,1], symmetric and memoized.
func (c *Client) ArticleSimilarity(ctx context.Context, id1, id2 int64) (float64, error) {
	if id1 > id2 {
		id1, id2 = id2, id1
	}
	key := simKey{id1, id2}

	if sim, ok := c.simLRU.Get(key); ok {
		metrics.CacheHits.WithLabelValues("article_sim").Inc()
		return sim, nil
	}
	metrics.CacheMisses.WithLabelValues("article_sim").Inc()

	if c.shared != nil {
		if sim, ok, err := c.shared.GetSimilarity(ctx, id1, id2); err == nil && ok {
			c.simLRU.Add(key, sim)
			return sim, nil
		}
	}

	if sim, ok, err := c.store.GetSimilarity(id1, id2); err != nil {
		return 0, err
	} else if ok {
		c.simLRU.Add(key, sim)
		return sim, nil
	}

	h1, err := c.EntityHistogram(ctx, id1)
	if err != nil {
		return 0, err
	}
	h2, err := c.EntityHistogram(ctx, id2)
	if err != nil {
		return 0, err
	}

	sim := 0.0
	for term, v1 := range h1 {
		if v2, ok := h2[term]; ok {
			sim += math.Min(v1, v2)
		}
	}
	sim = math.Max(0, math.Min(1, sim))

	if err := c.store.PutSimilarity(id1, id2, sim); err != nil {
		return 0, err
	}
	c.simLRU.Add(key, sim)
	if c.shared != nil {
		c.shared.SetSimilarity(ctx, id1, id2, sim)
	}

	return sim, nil
}
