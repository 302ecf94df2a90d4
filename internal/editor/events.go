package editor

// Типы событий шины редактора
const (
	EventStoreChanged     = "StoreChanged"
	EventSelectionChanged = "SelectionChanged"
	EventHistoryChanged   = "HistoryChanged"
	EventPlaceRefused     = "PlaceRefused"
	EventConsistency      = "ConsistencyWarning"
	EventProjectSaved     = "ProjectSaved"
	EventProjectLoaded    = "ProjectLoaded"
	EventLoadFailed       = "LoadFailed"
	EventWorldOpened      = "WorldOpened"
	EventWorldClosed      = "WorldClosed"
	EventAssetLoaded      = "AssetLoaded"
)

// Источники событий
const (
	sourceEditor    = "editor"
	sourceHistory   = "history"
	sourceSelection = "selection"
	sourceAssets    = "assets"
)

// CommandEvent полезная нагрузка событий, вызванных командой
type CommandEvent struct {
	Command string   `json:"command"`
	IDs     []string `json:"ids,omitempty"`
	Label   string   `json:"label,omitempty"`
}

// RefusedEvent отклонённая правка
type RefusedEvent struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// ProjectEvent сохранение или загрузка проекта
type ProjectEvent struct {
	Name   string `json:"name"`
	Blocks int    `json:"blocks"`
	Error  string `json:"error,omitempty"`
}

// WorldEvent переход во вложенный мир или выход из него
type WorldEvent struct {
	WorldID string   `json:"worldId"`
	Name    string   `json:"name,omitempty"`
	Path    []string `json:"path"`
}

// WarningsEvent предупреждения истории
type WarningsEvent struct {
	Command  string   `json:"command"`
	Warnings []string `json:"warnings"`
}
