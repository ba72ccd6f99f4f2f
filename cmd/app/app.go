package main

import (
	"github.com/genai-ecommerce/go-backend/internal/app"
)

//	@title			Catalog Recommendations API
//	@version		1.0
//	@description	Каталог продуктов с двумя рекомендательными движками

//	@BasePath	/api/v1

func main() {
	app.Run()
}
