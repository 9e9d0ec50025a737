package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/healthscan-ai/healthscan-api/internal/adapter"
	"github.com/healthscan-ai/healthscan-api/internal/nutrition"
)

// Defaults applied when the model's free-text analysis omits a parseable value.
const (
	DefaultHealthScore = 75
	DefaultCalories    = 250
)

// Analyzer turns an encoded food image into a structured nutrition result by
// driving a vision collaborator and parsing its free-text analysis.
type Analyzer struct {
	vision adapter.VisionAdapter
	model  string
	logger *log.Logger
}

// New creates an Analyzer over the given vision collaborator. model is the
// name reported back in results.
func New(vision adapter.VisionAdapter, model string) *Analyzer {
	return &Analyzer{vision: vision, model: model}
}

// SetLogger attaches a logger for analysis timing diagnostics.
func (a *Analyzer) SetLogger(logger *log.Logger) {
	a.logger = logger
}

// Analyze runs the full pipeline for one request: decode, prompt, upstream
// call, metric extraction.
func (a *Analyzer) Analyze(ctx context.Context, req nutrition.AnalysisRequest) (nutrition.AnalysisResult, error) {
	if a.vision == nil {
		return nutrition.AnalysisResult{}, errors.New("analysis: no vision collaborator configured")
	}

	image, err := DecodeImage(req.ImageData)
	if err != nil {
		return nutrition.AnalysisResult{}, err
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = DefaultPrompt(req.UserPreferences)
	}

	start := time.Now()
	text, err := a.vision.AnalyzeImage(ctx, image, prompt)
	if err != nil {
		return nutrition.AnalysisResult{}, fmt.Errorf("analysis: vision call failed: %w", err)
	}
	if a.logger != nil {
		a.logger.Printf("analysis.vision upstream_ms=%d chars=%d", time.Since(start).Milliseconds(), len(text))
	}

	return nutrition.AnalysisResult{
		Success:           true,
		Analysis:          text,
		HealthScore:       ExtractHealthScore(text),
		EstimatedCalories: ExtractCalories(text),
		Macros:            ExtractMacros(text),
		ModelUsed:         a.model,
		Timestamp:         time.Now().Unix(),
	}, nil
}

// ErrInvalidImage reports undecodable image input. Handlers map it to a 400.
var ErrInvalidImage = errors.New("invalid image data")

// DecodeImage decodes base64 image data into an upstream-ready payload. A
// data URL prefix ("data:image/png;base64,...") is tolerated and stripped.
// The MIME type is sniffed from the decoded bytes rather than trusted from
// the prefix.
func DecodeImage(imageData string) (adapter.ImagePayload, error) {
	data := strings.TrimSpace(imageData)
	if data == "" {
		return adapter.ImagePayload{}, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	if strings.HasPrefix(data, "data:image") {
		idx := strings.Index(data, ",")
		if idx < 0 {
			return adapter.ImagePayload{}, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		data = data[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return adapter.ImagePayload{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(raw) == 0 {
		return adapter.ImagePayload{}, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	mimeType := http.DetectContentType(raw)
	if !strings.HasPrefix(mimeType, "image/") {
		return adapter.ImagePayload{}, fmt.Errorf("%w: payload is %s, not an image", ErrInvalidImage, mimeType)
	}
	return adapter.ImagePayload{MIMEType: mimeType, Data: raw}, nil
}

// DefaultPrompt builds the nutritionist analysis prompt, optionally extended
// with user preferences.
func DefaultPrompt(preferences map[string]any) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)
	if len(preferences) > 0 {
		sb.WriteString("\n\n## User Context\nConsider these user preferences:")
		for _, key := range sortedPrefKeys(preferences) {
			fmt.Fprintf(&sb, " %s=%v", key, preferences[key])
		}
	}
	sb.WriteString("\n\nProvide accurate, evidence-based nutritional information. If uncertain about specific values, provide reasonable estimates with appropriate disclaimers.")
	return sb.String()
}

const basePrompt = `You are an expert nutritionist and food analyst. Analyze the food image provided and give a comprehensive nutritional analysis.

Please provide your analysis in the following structured format:

## Food Identification
- **Primary Food Items**: List all main food items visible
- **Preparation Method**: How the food appears to be prepared
- **Estimated Portion Size**: Approximate serving size

## Nutritional Analysis
- **Calories**: Estimated total calories
- **Macronutrients**:
  - Protein: X grams
  - Carbohydrates: X grams
  - Fat: X grams
  - Fiber: X grams
- **Key Micronutrients**: Important vitamins and minerals present

## Health Assessment
- **Health Score**: Rate from 1-100 (100 being extremely healthy)
- **Health Benefits**: Key nutritional benefits
- **Potential Concerns**: Any nutritional concerns or allergens

## Recommendations
- **Dietary Advice**: Suggestions for this food choice
- **Pairing Suggestions**: Foods that would complement this meal
- **Portion Guidance**: Appropriate serving size recommendations`

var (
	healthScorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Health Score[:\s*]+(\d+)`),
		regexp.MustCompile(`(?i)Score[:\s*]+(\d+)`),
		regexp.MustCompile(`(\d+)/100`),
		regexp.MustCompile(`(?i)rated?\s+(\d+)\s*out\s*of\s*100`),
	}
	caloriePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Calories[:\s*]+(\d+)`),
		regexp.MustCompile(`(?i)(\d+)\s*calories`),
		regexp.MustCompile(`(?i)(\d+)\s*kcal`),
	}
	proteinPattern = regexp.MustCompile(`(?i)Protein[:\s*]+(\d+(?:\.\d+)?)\s*g`)
	carbsPattern   = regexp.MustCompile(`(?i)Carbohydrates?[:\s*]+(\d+(?:\.\d+)?)\s*g`)
	fatPattern     = regexp.MustCompile(`(?i)Fat[:\s*]+(\d+(?:\.\d+)?)\s*g`)
	fiberPattern   = regexp.MustCompile(`(?i)Fiber[:\s*]+(\d+(?:\.\d+)?)\s*g`)
)

// ExtractHealthScore pulls the 1-100 health score out of the analysis text,
// falling back to DefaultHealthScore when no pattern matches.
func ExtractHealthScore(text string) int {
	for _, pattern := range healthScorePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if score, err := strconv.Atoi(m[1]); err == nil {
				return score
			}
		}
	}
	return DefaultHealthScore
}

// ExtractCalories pulls the calorie estimate out of the analysis text,
// falling back to DefaultCalories when no pattern matches.
func ExtractCalories(text string) int {
	for _, pattern := range caloriePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if cal, err := strconv.Atoi(m[1]); err == nil {
				return cal
			}
		}
	}
	return DefaultCalories
}

// ExtractMacros pulls the macronutrient estimates out of the analysis text.
// Returns nil when none of the four values are present.
func ExtractMacros(text string) *nutrition.MacroBreakdown {
	macros := &nutrition.MacroBreakdown{}
	found := false
	if v, ok := matchFloat(proteinPattern, text); ok {
		macros.ProteinG = v
		found = true
	}
	if v, ok := matchFloat(carbsPattern, text); ok {
		macros.CarbsG = v
		found = true
	}
	if v, ok := matchFloat(fatPattern, text); ok {
		macros.FatG = v
		found = true
	}
	if v, ok := matchFloat(fiberPattern, text); ok {
		macros.FiberG = v
		found = true
	}
	if !found {
		return nil
	}
	return macros
}

func matchFloat(pattern *regexp.Regexp, text string) (float64, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func sortedPrefKeys(prefs map[string]any) []string {
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	// Stable order keeps prompts deterministic for tests
	sort.Strings(keys)
	return keys
}
