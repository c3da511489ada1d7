package network

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"sentiment-observer/src/logger"

	"github.com/gorilla/websocket"
)

const (
	readBufferSize  = 4096
	writeBufferSize = 1024
)

// -----------------------------------------------------------------------------

// NewFeedDialer builds the websocket dialer shared by all connection workers.
// proxy is optional ("http://host:port").
func NewFeedDialer(handshakeTimeout time.Duration, proxy string, log *logger.Logger) (*websocket.Dialer, error) {
	dialer := &websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  handshakeTimeout,
		ReadBufferSize:    readBufferSize,
		WriteBufferSize:   writeBufferSize,
		EnableCompression: true,
	}

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid feed proxy %q: %w", proxy, err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
		log.Info("Feed connections routed through proxy %s", proxyURL.Host)
	}

	return dialer, nil
}
