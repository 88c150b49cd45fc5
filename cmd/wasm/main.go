//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"
	"time"

	"repomesh/internal/adapter/extractor"
	"repomesh/internal/adapter/graph"
	"repomesh/internal/adapter/memstore"
	"repomesh/internal/adapter/resolver"
	"repomesh/internal/domain"
	"repomesh/internal/port"
)

var (
	store *memstore.MemoryStore
	ext   *extractor.Extractor
)

func init() {
	store = memstore.NewMemoryStore()
	ext = extractor.New(nil)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("meshAddFile", js.FuncOf(addFile))
	js.Global().Set("meshGraph", js.FuncOf(renderGraph))
	js.Global().Set("meshClear", js.FuncOf(clearIndex))
	js.Global().Set("meshStats", js.FuncOf(getStats))

	<-c
}

func loadIndex() *domain.Index {
	ix, err := store.Load()
	if err != nil || ix == nil {
		return domain.NewIndex("wasm", time.Now())
	}
	return ix
}

func addFile(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return makeError("usage: meshAddFile(repoId, relFile, content)")
	}

	f := port.SourceFile{
		RepoID:  args[0].String(),
		RelFile: args[1].String(),
		Content: args[2].String(),
	}
	f.Path = f.RepoID + "/" + f.RelFile

	ix := loadIndex()
	if _, ok := ix.Repos[f.RepoID]; !ok {
		ix.Repos[f.RepoID] = domain.Repository{ID: f.RepoID, Name: f.RepoID, Path: f.RepoID, DetectedLanguages: []string{}}
	}

	// Re-adding a file replaces its previous records.
	for id, ep := range ix.Endpoints {
		if ep.RepoID == f.RepoID && ep.RelFile == f.RelFile {
			delete(ix.Endpoints, id)
		}
	}
	for id, u := range ix.Usages {
		if u.RepoID == f.RepoID && u.RelFile == f.RelFile {
			delete(ix.Usages, id)
		}
	}

	eps := ext.ExtractEndpoints(f)
	us := ext.ExtractUsages(f)
	for _, ep := range eps {
		ix.Endpoints[ep.ID] = ep
	}
	for _, u := range us {
		ix.Usages[u.ID] = u
	}
	ix.Edges = resolver.Resolve(values(ix.Endpoints), values(ix.Usages), resolver.Options{})
	ix.UpdatedAt = time.Now()

	if err := store.Save(ix); err != nil {
		return makeError("save failed: " + err.Error())
	}

	return makeResult(map[string]interface{}{
		"endpoints": eps,
		"usages":    us,
		"edges":     len(ix.Edges),
	})
}

func renderGraph(this js.Value, args []js.Value) interface{} {
	format := ""
	if len(args) > 0 {
		format = args[0].String()
	}
	out, err := graph.Render(loadIndex(), format)
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(map[string]interface{}{
		"format": format,
		"graph":  out,
	})
}

func clearIndex(this js.Value, args []js.Value) interface{} {
	store = memstore.NewMemoryStore()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	ix := loadIndex()
	return makeResult(map[string]interface{}{
		"repos":     len(ix.Repos),
		"endpoints": len(ix.Endpoints),
		"usages":    len(ix.Usages),
		"edges":     ix.Edges,
	})
}

func values[T any](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
