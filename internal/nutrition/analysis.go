package nutrition

// AnalysisRequest carries one encoded food image plus optional steering input.
// ImageData is base64, with or without a data URL prefix.
type AnalysisRequest struct {
	ImageData       string         `json:"image_data"`
	Prompt          string         `json:"prompt,omitempty"`
	UserPreferences map[string]any `json:"user_preferences,omitempty"`
}

// MacroBreakdown holds per-serving macronutrient estimates in grams.
type MacroBreakdown struct {
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
	FiberG   float64 `json:"fiber_g"`
}

// AnalysisResult is the structured outcome of one vision analysis.
type AnalysisResult struct {
	Success           bool            `json:"success"`
	Analysis          string          `json:"analysis"`
	HealthScore       int             `json:"health_score"`
	EstimatedCalories int             `json:"estimated_calories"`
	Macros            *MacroBreakdown `json:"macros,omitempty"`
	ModelUsed         string          `json:"model_used"`
	Timestamp         int64           `json:"timestamp"`
}

// Context converts the result into the flat attribute map attached to
// follow-up conversations.
func (r AnalysisResult) Context(foodName string) AnalysisContext {
	ctx := AnalysisContext{
		"health_score": r.HealthScore,
		"calories":     r.EstimatedCalories,
	}
	if foodName != "" {
		ctx["food_name"] = foodName
	}
	if r.Macros != nil {
		ctx["protein_g"] = r.Macros.ProteinG
		ctx["carbs_g"] = r.Macros.CarbsG
		ctx["fat_g"] = r.Macros.FatG
		ctx["fiber_g"] = r.Macros.FiberG
	}
	return ctx
}
