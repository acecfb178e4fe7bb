package main

import (
	"context"
	"os"
)

//	@title						Visual Search API
//	@version					1.0
//	@description				Поиск товаров каталога по фотографии
//	@BasePath					/
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
func main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
