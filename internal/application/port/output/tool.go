package output

import "webmcp-agent/internal/domain/entity"

// ToolRegistry assigns versions to the tool sets pages report and keeps the latest per page.
type ToolRegistry interface {
	Publish(pageID, url string, tools []entity.Tool) entity.ToolRegistrySnapshot
	Latest(pageID string) (entity.ToolRegistrySnapshot, bool)
	Forget(pageID string)
}
