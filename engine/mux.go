package engine

import "context"

// Mux routes each open mode to its own backend. A nil backend makes that mode
// unsupported.
type Mux struct {
	Local   Engine
	Remote  Engine
	Replica Engine
}

var _ Engine = Mux{}

func (m Mux) OpenLocal(ctx context.Context, cfg LocalConfig) (Database, error) {
	if m.Local == nil {
		return nil, ErrUnsupported
	}
	return m.Local.OpenLocal(ctx, cfg)
}

func (m Mux) OpenRemote(ctx context.Context, cfg RemoteConfig) (Database, error) {
	if m.Remote == nil {
		return nil, ErrUnsupported
	}
	return m.Remote.OpenRemote(ctx, cfg)
}

func (m Mux) OpenReplica(ctx context.Context, cfg ReplicaConfig) (Database, error) {
	if m.Replica == nil {
		return nil, ErrUnsupported
	}
	return m.Replica.OpenReplica(ctx, cfg)
}
