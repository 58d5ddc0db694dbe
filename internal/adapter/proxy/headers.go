package proxy

import (
	"encoding/base64"
	"net/http"

	"github.com/relaylb/relaylb/internal/core/domain"
)

// hopByHopHeaders is the minimum set spec §4.4 requires stripped before
// forwarding and before returning a response to the client.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

func stripHopByHop(h http.Header) {
	for _, k := range hopByHopHeaders {
		h.Del(k)
	}
}

// copyClientHeaders copies every client header except hop-by-hop ones,
// then applies the upstream's declared header operations in order, then
// injects the auth descriptor (spec §4.4 step c).
func copyClientHeaders(dst http.Header, src http.Header, u *domain.Upstream) {
	for k, vals := range src {
		for _, v := range vals {
			dst.Add(k, v)
		}
	}
	stripHopByHop(dst)

	applyHeaderOps(dst, u.Headers)
	applyAuth(dst, u.Auth)
}

// applyHeaderOps applies insert/replace/remove operations in declared
// order: insert only adds if absent, replace always sets, remove deletes
// all occurrences (spec §4.4).
func applyHeaderOps(h http.Header, ops []domain.HeaderOp) {
	for _, op := range ops {
		switch op.Op {
		case domain.HeaderOpInsert:
			if h.Get(op.Key) == "" {
				h.Set(op.Key, op.Value)
			}
		case domain.HeaderOpReplace:
			h.Set(op.Key, op.Value)
		case domain.HeaderOpRemove:
			h.Del(op.Key)
		}
	}
}

func applyAuth(h http.Header, auth domain.Auth) {
	switch auth.Kind {
	case domain.AuthBearer:
		h.Set("Authorization", "Bearer "+auth.Token)
	case domain.AuthBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
		h.Set("Authorization", "Basic "+creds)
	case domain.AuthNone, "":
		// no-op
	}
}
