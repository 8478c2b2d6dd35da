// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package metrics exposes a node's chain height, peer count, and, on
// request, one address's balance as a plain-text HTTP endpoint, in the
// style of a scrape target.
package metrics

import (
	"fmt"
	"net/http"
	"strings"
)

// Source is the subset of *peer.Node that metrics needs. Declared as an
// interface so this package never imports peer, avoiding an import cycle
// with anything peer might one day want to report through metrics.
type Source interface {
	ChainLen() int
	ChainBalance(address string) float64
	Peers() []string
}

// Handler polls src on every request and renders its state as
// newline-separated "name value" pairs, one per line. An "address" query
// parameter adds a ledgernode_balance line for that address, since
// balance is per-address and cannot be scraped unconditionally.
func Handler(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var lines []string
		lines = append(lines, fmt.Sprintf("ledgernode_chain_height %d", src.ChainLen()))
		lines = append(lines, fmt.Sprintf("ledgernode_peer_count %d", len(src.Peers())))

		if address := r.URL.Query().Get("address"); address != "" {
			lines = append(lines, fmt.Sprintf("ledgernode_balance{address=%q} %v", address, src.ChainBalance(address)))
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, strings.Join(lines, "\n"))
	}
}

// Serve starts an HTTP server on addr exposing Handler(src) at /metrics.
// It blocks until the server stops; callers typically run it in its own
// goroutine.
func Serve(addr string, src Source) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(src))
	return http.ListenAndServe(addr, mux)
}
