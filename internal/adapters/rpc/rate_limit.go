package rpc

import (
	"net"
	"net/http"
	"strings"
	"time"

	"seedslot/go-backend/internal/address"
)

func rpcRateLimitKey(r *http.Request, token string) string {
	if strings.TrimSpace(token) != "" {
		return "token:" + token
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "ip:unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return "ip:" + remote
	}
	if strings.TrimSpace(host) == "" {
		return "ip:unknown"
	}
	return "ip:" + host
}

// allowSigners charges one token per signer so a single wallet cannot flood
// submissions from many connections.
func (s *Server) allowSigners(signers []address.Address, now time.Time) bool {
	for _, signer := range signers {
		if !s.limiter.Allow("signer:"+signer.String(), now) {
			return false
		}
	}
	return true
}
