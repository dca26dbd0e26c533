package service

import (
	"sync"
	"time"

	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
)

var _ output.ToolRegistry = (*ToolRegistryImpl)(nil)

type ToolRegistryImpl struct {
	mu       sync.RWMutex
	versions map[string]uint64
	latest   map[string]entity.ToolRegistrySnapshot
	now      func() time.Time
}

func NewToolRegistry() *ToolRegistryImpl {
	return &ToolRegistryImpl{
		versions: make(map[string]uint64),
		latest:   make(map[string]entity.ToolRegistrySnapshot),
		now:      time.Now,
	}
}

// Publish stamps tools with the next version for pageID. Versions are never
// reused, even after Forget.
func (r *ToolRegistryImpl) Publish(pageID, url string, tools []entity.Tool) entity.ToolRegistrySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.versions[pageID]++
	snap := entity.NewSnapshot(pageID, url, r.versions[pageID], tools, r.now())
	r.latest[pageID] = snap
	return snap
}

func (r *ToolRegistryImpl) Latest(pageID string) (entity.ToolRegistrySnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.latest[pageID]
	return snap, ok
}

func (r *ToolRegistryImpl) Forget(pageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.latest, pageID)
}

// Declarations converts a snapshot into the function declarations handed to
// the model. Unparseable schemas fall back to the empty object schema.
func Declarations(snap entity.ToolRegistrySnapshot, onInvalid func(entity.ToolName, error)) []entity.FunctionDeclaration {
	result := make([]entity.FunctionDeclaration, 0, len(snap.Tools))
	for _, tool := range snap.Tools {
		schema, err := tool.ParsedInputSchema()
		if err != nil {
			if onInvalid != nil {
				onInvalid(tool.Name, err)
			}
			schema = []byte(entity.DefaultInputSchema)
		}
		result = append(result, entity.FunctionDeclaration{
			Name:                 string(tool.Name),
			Description:          tool.Description,
			ParametersJSONSchema: schema,
		})
	}
	return result
}
