// Package registry implements the per-listener connection lookup tables
// of : a first-Initial-packet table keyed by extended DCID, and
// a steady-state table keyed by local SCID.
package registry

import (
	"sync"

	"github.com/quicbridge/engine/transport"
	"github.com/rs/xid"
)

// Registry owns a listener's two lookup tables ("Connection
// registry"): icids for first Initial packets, cids for everything else.
// It is safe for concurrent use; Conn itself is only ever
// touched from its own tasklet, but registration/lookup happens from
// whichever goroutine is reading the socket ("the only
// cross-thread operations are connection migration and idle-list
// removal").
type Registry struct {
	mu sync.RWMutex
	icids map[transport.ExtendedCID]*Entry
	cids map[string]*Entry
}

// Entry pairs a live connection with its owning tasklet handle. The
// handle is opaque to this package (typically a *quicsrv.Tasklet); it
// exists so lookups can wake the right goroutine without this package
// importing quicsrv (which would create an import cycle).
type Entry struct {
	Conn *transport.Conn
	Wake func()
	SCID transport.CID

	// TrackID is a sortable, loggable connection handle distinct from
	// the wire CID, set by the caller (quicsrv) so this entry's identity
	// survives a CID update and can be cross-referenced against logs.
	TrackID xid.ID
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		icids: make(map[transport.ExtendedCID]*Entry),
		cids: make(map[string]*Entry),
	}
}

// LookupInitial finds a connection for a first Initial packet, keyed by
// the peer's chosen DCID plus its socket address ("used only
// for the first Initial packet").
func (r *Registry) LookupInitial(dcid transport.CID, addr string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.icids[transport.NewExtendedCID(dcid, addr)]
	return e, ok
}

// Lookup finds a connection by local SCID, used for every packet after
// the first Initial .
func (r *Registry) Lookup(scid transport.CID) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cids[string(scid)]
	return e, ok
}

// RegisterInitial inserts a fresh connection under its extended DCID, for
// clients whose first Initial has not yet been matched to a local SCID.
func (r *Registry) RegisterInitial(dcid transport.CID, addr string, e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.icids[transport.NewExtendedCID(dcid, addr)] = e
}

// Promote moves a connection from the icids table to the steady-state
// cids table once its local SCID is established, and drops the
// transient extended-DCID entry.
func (r *Registry) Promote(dcid transport.CID, addr string, scid transport.CID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := transport.NewExtendedCID(dcid, addr)
	e, ok := r.icids[key]
	if !ok {
		return
	}
	delete(r.icids, key)
	e.SCID = scid
	r.cids[string(scid)] = e
}

// RegisterSCID adds an additional local CID mapping to the same entry,
// used when NEW_CONNECTION_ID frames are issued.
func (r *Registry) RegisterSCID(scid transport.CID, e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cids[string(scid)] = e
}

// Remove drops every mapping for a closed connection.
func (r *Registry) Remove(scids []transport.CID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, scid := range scids {
		delete(r.cids, string(scid))
	}
	for key, e := range r.icids {
		for _, scid := range scids {
			if e.SCID.Equal(scid) {
				delete(r.icids, key)
				break
			}
		}
	}
}

// Len reports the number of live steady-state entries, used by metrics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cids)
}
