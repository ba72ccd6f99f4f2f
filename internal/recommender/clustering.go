package recommender

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
)

// ClusteringRecommender рекомендует продукты из того же k-means-кластера,
// ранжируя их по евклидову расстоянию в стандартизованном пространстве признаков.
type ClusteringRecommender struct {
	cfg    *cfg.RecsCfg
	logger logger.Logger

	mu    sync.RWMutex
	state *clusterState
}

// clusterState — неизменяемый снапшот состояния движка.
// Fit собирает новый снапшот целиком и подменяет указатель, поэтому
// конкурентные Recommend видят либо старое, либо новое состояние.
type clusterState struct {
	ids      []int64
	index    map[int64]int
	features [][]float64
	labels   []int
	clusters map[int][]int // метка кластера -> индексы членов
}

func NewClusteringRecommender(cfg *cfg.RecsCfg, logger logger.Logger) *ClusteringRecommender {
	return &ClusteringRecommender{
		cfg:    cfg,
		logger: logger,
	}
}

// Fit пересчитывает признаки и разбиение каталога на кластеры с нуля.
// Стандартизация выполняется по текущему каталогу при каждом вызове,
// поскольку состав каталога мог измениться. Пустой каталог сбрасывает
// состояние: последующие Recommend отвечают e.ErrProductNotFound.
func (c *ClusteringRecommender) Fit(_ context.Context, products []domain.Product) error {
	if len(products) == 0 {
		c.mu.Lock()
		c.state = nil
		c.mu.Unlock()
		return nil
	}

	brandFreq := brandFrequencies(products)

	ids := make([]int64, len(products))
	index := make(map[int64]int, len(products))
	features := make([][]float64, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = i
		features[i] = extractFeatures(&products[i], brandFreq)
	}

	standardize(features)

	k := c.cfg.Clusters
	if k > len(products) {
		k = len(products)
	}

	rng := rand.New(rand.NewSource(c.cfg.RandomSeed))
	labels, iterations := kmeans(features, k, c.cfg.MaxIterations, rng)

	clusters := make(map[int][]int, k)
	for i, label := range labels {
		clusters[label] = append(clusters[label], i)
	}

	c.logger.Debugf("clustering fit complete: products=%d, clusters=%d, iterations=%d", len(products), k, iterations)

	c.mu.Lock()
	c.state = &clusterState{
		ids:      ids,
		index:    index,
		features: features,
		labels:   labels,
		clusters: clusters,
	}
	c.mu.Unlock()

	return nil
}

// Recommend возвращает до k соседей продукта по его кластеру,
// ближайшие первыми; равные расстояния упорядочиваются по возрастанию ID.
func (c *ClusteringRecommender) Recommend(productID int64, k int) ([]int64, error) {
	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()

	if state == nil {
		return nil, e.ErrProductNotFound
	}

	idx, ok := state.index[productID]
	if !ok {
		return nil, e.ErrProductNotFound
	}

	members := state.clusters[state.labels[idx]]

	type neighbor struct {
		id   int64
		dist float64
	}
	neighbors := make([]neighbor, 0, len(members))
	for _, m := range members {
		if m == idx {
			continue
		}
		neighbors = append(neighbors, neighbor{
			id:   state.ids[m],
			dist: euclidean(state.features[idx], state.features[m]),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].dist != neighbors[j].dist {
			return neighbors[i].dist < neighbors[j].dist
		}
		return neighbors[i].id < neighbors[j].id
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}

	result := make([]int64, 0, k)
	for _, n := range neighbors[:k] {
		result = append(result, n.id)
	}

	return result, nil
}

// kmeans выполняет разбиение точек на k кластеров.
// Центроиды инициализируются случайными (через rng) различными точками,
// затем повторяются шаги назначения и пересчёта до сходимости или maxIterations.
// Возвращает метки точек и число выполненных итераций.
func kmeans(points [][]float64, k, maxIterations int, rng *rand.Rand) ([]int, int) {
	n := len(points)
	dim := len(points[0])

	centroids := make([][]float64, k)
	for i, p := range rng.Perm(n)[:k] {
		centroids[i] = make([]float64, dim)
		copy(centroids[i], points[p])
	}

	labels := make([]int, n)
	iterations := 0

	for ; iterations < maxIterations; iterations++ {
		changed := false
		for i, point := range points {
			best := 0
			bestDist := euclidean(point, centroids[0])
			for c := 1; c < k; c++ {
				if d := euclidean(point, centroids[c]); d < bestDist {
					best = c
					bestDist = d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		if !changed && iterations > 0 {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, point := range points {
			counts[labels[i]]++
			for d, v := range point {
				sums[labels[i]][d] += v
			}
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Опустевший кластер получает случайную точку вместо центроида.
				copy(centroids[c], points[rng.Intn(n)])
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	return labels, iterations
}
