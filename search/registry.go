package search

import (
	"fmt"

	"github.com/use-agent/fetchwise/config"
)

// Providers lists the supported provider names.
var Providers = []string{"searx", "baidu", "bing"}

// NewProvider returns the named provider configured from cfg.
func NewProvider(name string, cfg config.SearchConfig) (Provider, error) {
	switch name {
	case "searx", "":
		return NewSearx(cfg.SearxURL), nil
	case "baidu":
		return NewBaidu(cfg.BaiduURL), nil
	case "bing":
		return NewBing(cfg.BingURL), nil
	default:
		return nil, fmt.Errorf("search: unknown provider %q", name)
	}
}
