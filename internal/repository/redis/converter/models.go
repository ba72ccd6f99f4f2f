package converter

type ProductInfoRedisModel struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}
