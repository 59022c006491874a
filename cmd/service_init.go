package main

import (
	"github.com/sells-group/leadenrich-connector/internal/connector"
)

// initService validates config for mode and builds the enrichment service.
func initService(mode string) (*connector.Service, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return connector.NewService(cfg), nil
}
