package app

import (
	"time"

	"essaylens/internal/registry"
	"essaylens/pkg/types"
)

// Status builds a detailed status response for /status.
func (a *App) Status() types.StatusResponse {
	resp := types.StatusResponse{
		Backend:        a.cfg.Backend,
		Family:         a.cfg.ModelFamily,
		QueueLen:       a.adm.queued(),
		Inflight:       a.adm.inflight(),
		MaxQueueDepth:  cap(a.adm.queueCh),
		UptimeSeconds:  int64(time.Since(a.started).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	switch {
	case a.sup != nil:
		resp.Model = a.cfg.Server.ModelAlias
		resp.State = a.sup.State().String()
		resp.PID = a.sup.PID()
		resp.ChatURL = a.client.ChatURL()
	case a.client != nil:
		resp.Model = a.cfg.Server.ModelAlias
		resp.State = "external"
		resp.ChatURL = a.client.ChatURL()
	case a.engine != nil:
		resp.Model = a.cfg.KV.ModelPath
		resp.State = "ready"
		resp.CacheTokens, _ = a.engine.TryCacheLen()
	default:
		resp.Model = a.cfg.KV.ModelPath
		resp.State = "ready"
	}
	a.mu.Lock()
	resp.LastError = a.lastErr
	a.mu.Unlock()
	return resp
}

// ListModels returns the GGUF files in the models directory next to the
// built-in catalog. A missing or unset directory yields no files.
func (a *App) ListModels() types.ModelsResponse {
	resp := types.ModelsResponse{Catalog: registry.Catalog()}
	if a.cfg.ModelsDir == "" {
		return resp
	}
	models, err := registry.LoadDir(a.cfg.ModelsDir)
	if err != nil {
		a.log.Warn().Err(err).Str("dir", a.cfg.ModelsDir).Msg("scan models dir")
		return resp
	}
	resp.Models = models
	return resp
}
