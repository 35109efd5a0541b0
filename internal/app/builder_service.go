package app

import (
	"arbiter/internal/config"
	apihttp "arbiter/internal/transport/http/api"
)

func buildAPIHTTPServer(cfg config.AppConfig, sessions apihttp.SessionRunner, models apihttp.ModelCatalog, defaults []string) (*apihttp.Server, error) {
	return apihttp.NewServer(apihttp.ServerConfig{
		Addr:          cfg.HTTPAddr,
		Sessions:      sessions,
		Models:        models,
		DefaultModels: defaults,
	})
}
