package interfaces

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// IFeedDialer opens websocket sessions to the upstream feed.
// -----------------------------------------------------------------------------

type IFeedDialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}
