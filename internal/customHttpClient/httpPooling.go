package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/GoDocRAG/internal/config"
)

var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

var once sync.Once
var pooledClient *http.Client

// GetPooledClient is shared by the reranker, the provider SDKs and the PDF fetcher so they
// reuse keep-alive connections.
func GetPooledClient() *http.Client {
	once.Do(func() {
		pooledClient = &http.Client{
			Transport: customTransport,
			Timeout:   config.HTTPClientTimeout,
		}
	})
	return pooledClient
}

// GetLongRunningClient shares the transport without the client timeout, for LLM calls that are
// bounded by the request context instead.
func GetLongRunningClient() *http.Client {
	return &http.Client{Transport: customTransport}
}
