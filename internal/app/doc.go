// Package app is the composition root. It turns a Config into a running
// backend and exposes it to the HTTP layer and the CLI:
//
//   - app.go: App type, backend construction (New), Start, Close, Ready.
//   - admission.go: bounded queue and slot admission for chat calls.
//   - chat.go: backend-agnostic Chat, ChatStream and JSON entry points.
//   - status.go: Status and ListModels reporting.
//   - errors.go: error helpers (IsTooBusy, IsUnavailable).
//
// Backends:
//
//   - server: a supervised llama-server process (or an already running one when
//     server_url is set) reached through the OpenAI-compatible chat client.
//   - kv: the in-process prefix cache engine. Requires `-tags=llamakv`.
//   - embedded: the go-llama.cpp predictor. Requires `-tags=llama`.
package app
