package recommender

import (
	"math"

	"github.com/genai-ecommerce/go-backend/internal/domain"
)

// featureDim — размерность вектора признаков кластеризации.
const featureDim = 7

// brandFrequencies считает частотное кодирование брендов по текущему каталогу.
// Отсутствующий бренд кодируется нулём.
func brandFrequencies(products []domain.Product) map[string]float64 {
	counts := make(map[string]int)
	for i := range products {
		if b := products[i].BrandOrEmpty(); b != "" {
			counts[b]++
		}
	}

	freqs := make(map[string]float64, len(counts))
	total := float64(len(products))
	for brand, n := range counts {
		freqs[brand] = float64(n) / total
	}

	return freqs
}

// extractFeatures проецирует продукт в числовой вектор признаков:
// цена, скидка, число атрибутов, число категорий, число изображений,
// наличие описания, частота бренда в каталоге.
func extractFeatures(p *domain.Product, brandFreq map[string]float64) []float64 {
	var discount float64
	if p.Price.OriginalAmount != nil && p.Price.DiscountPercent != nil {
		discount = *p.Price.DiscountPercent
	}

	var hasDescription float64
	if p.Description != nil && *p.Description != "" {
		hasDescription = 1
	}

	return []float64{
		float64(p.Price.Amount),
		discount,
		float64(len(p.Attributes)),
		float64(len(p.Categories)),
		float64(len(p.Images)),
		hasDescription,
		brandFreq[p.BrandOrEmpty()],
	}
}

// standardize приводит каждую колонку матрицы к нулевому среднему и единичной
// дисперсии. Колонки с нулевой дисперсией обнуляются целиком, деления на ноль
// не происходит. Матрица модифицируется на месте.
func standardize(features [][]float64) {
	if len(features) == 0 {
		return
	}

	dim := len(features[0])
	n := float64(len(features))

	for col := 0; col < dim; col++ {
		var mean float64
		for _, row := range features {
			mean += row[col]
		}
		mean /= n

		var variance float64
		for _, row := range features {
			d := row[col] - mean
			variance += d * d
		}
		variance /= n

		if variance == 0 {
			for _, row := range features {
				row[col] = 0
			}
			continue
		}

		std := math.Sqrt(variance)
		for _, row := range features {
			row[col] = (row[col] - mean) / std
		}
	}
}

// euclidean возвращает евклидово расстояние между двумя векторами одной длины.
func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
