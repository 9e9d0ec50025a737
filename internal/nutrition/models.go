package nutrition

// ModelCatalog lists the upstream models usable per task.
type ModelCatalog struct {
	Vision []string `json:"vision"`
	Chat   []string `json:"chat"`
}

// ModelConfig reports the models currently configured.
type ModelConfig struct {
	VisionModel string `json:"vision_model"`
	ChatModel   string `json:"chat_model"`
}

// ModelsResponse is the payload of the models endpoint.
type ModelsResponse struct {
	AvailableModels ModelCatalog `json:"available_models"`
	CurrentConfig   ModelConfig  `json:"current_config"`
}

// NewModelsResponse builds a ModelsResponse from the catalog and the active
// configuration.
func NewModelsResponse(catalog ModelCatalog, visionModel, chatModel string) ModelsResponse {
	return ModelsResponse{
		AvailableModels: catalog,
		CurrentConfig:   ModelConfig{VisionModel: visionModel, ChatModel: chatModel},
	}
}
