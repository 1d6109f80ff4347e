package fetcher

import (
	"math/rand/v2"
	"net/http"
	"sync"
)

// AgentPool hands out user agents for header rotation.
type AgentPool struct {
	mu     sync.Mutex
	agents []string
	pick   func(n int) int
}

// NewAgentPool builds a pool over agents. A nil pick selects uniformly at random;
// tests pass a fixed picker to pin the sequence.
func NewAgentPool(agents []string, pick func(n int) int) *AgentPool {
	if pick == nil {
		pick = rand.IntN
	}
	return &AgentPool{
		agents: append([]string(nil), agents...),
		pick:   pick,
	}
}

func (p *AgentPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.agents) == 0 {
		return ""
	}
	return p.agents[p.pick(len(p.agents))]
}

// browserHeaders is the static part of every direct request.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-GB,en;q=0.9",
	"Cache-Control":             "max-age=0",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
}

func applyHeaders(req *http.Request, agent string) {
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	if agent != "" {
		req.Header.Set("User-Agent", agent)
	}
}
