package placement

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func img(url, alt string, importance models.Importance) models.ImageMetadata {
	return models.ImageMetadata{URL: url, Alt: alt, Importance: importance, IsValid: true, Width: 800, Height: 600}
}

func para(text string) models.ContentBlock {
	return models.ContentBlock{Type: models.BlockParagraph, Text: text}
}

func blockURLs(blocks []models.ContentBlock) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch {
		case b.IsImage():
			out = append(out, b.Image.URL)
		default:
			out = append(out, string(b.Type)+":"+b.Text)
		}
	}
	return out
}

func TestScore_NoOverlapNoKeywords(t *testing.T) {
	section := models.Section{ID: "s1", Title: "Installation steps", Content: "run the installer then reboot"}
	assert.Equal(t, 0.0, RawScore(img("u", "kitten sleeping", models.ImportanceHigh), section))
	assert.Equal(t, 0.0, RawScore(img("u", "", models.ImportanceLow), section))
}

func TestScore_ArchitectureScenario(t *testing.T) {
	section := models.Section{ID: "arch", Title: "Architecture Overview", Content: "system architecture diagram"}
	image := img("https://example.com/arch.png", "architecture diagram screenshot", models.ImportanceHigh)

	raw := RawScore(image, section)
	assert.Greater(t, raw, 1.0)
	assert.InDelta(t, 2.0/3.0*1.3+3*0.15, raw, 1e-9)
	assert.Equal(t, 1.0, Score(image, section))

	pl, ok := NewPlanner(DefaultThresholds(), testLogger()).PlanImage(image, []models.Section{section})
	require.True(t, ok)
	assert.Equal(t, 1.0, pl.Confidence)
	assert.Equal(t, models.PositionTop, pl.Position)
	assert.Equal(t, "arch", pl.SectionID)
	assert.Equal(t, "Architecture Overview", pl.SectionTitle)
}

func TestRawScore_Components(t *testing.T) {
	section := models.Section{Title: "Deploy", Content: "the pipeline runs nightly"}

	// both signal words match
	assert.InDelta(t, 1.0, RawScore(img("u", "deploy pipeline", models.ImportanceLow), section), 1e-9)
	// half match
	assert.InDelta(t, 0.5, RawScore(img("u", "deploy servers", models.ImportanceMedium), section), 1e-9)
	// high importance boost
	assert.InDelta(t, 0.65, RawScore(img("u", "deploy servers", models.ImportanceHigh), section), 1e-9)
	// short words carry no signal, keyword still counts
	assert.InDelta(t, 0.15, RawScore(img("u", "a ui of", models.ImportanceLow), section), 1e-9)
	// caption contributes signal words
	withCaption := img("u", "", models.ImportanceLow)
	withCaption.Caption = "Nightly pipeline"
	assert.InDelta(t, 1.0, RawScore(withCaption, section), 1e-9)
}

func TestRawScore_SignalWordsCountRunes(t *testing.T) {
	section := models.Section{Title: "Deploy", Content: "the pipeline runs nightly"}

	// three runes, five bytes: no signal
	assert.InDelta(t, 1.0, RawScore(img("u", "été deploy", models.ImportanceLow), section), 1e-9)
	// four runes: counts as an unmatched signal word
	assert.InDelta(t, 0.5, RawScore(img("u", "café deploy", models.ImportanceLow), section), 1e-9)
}

func TestThresholds_PositionFor(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, models.PositionTop, th.PositionFor(0.6))
	assert.Equal(t, models.PositionMiddle, th.PositionFor(0.59))
	assert.Equal(t, models.PositionMiddle, th.PositionFor(0.3))
	assert.Equal(t, models.PositionBottom, th.PositionFor(0.2999))

	half := 0.5
	custom := ThresholdsFromConfig(config.PlacementConfig{ConfidenceThreshold: &half})
	assert.Equal(t, 0.5, custom.Confidence)
	assert.Equal(t, 0.6, custom.Top)
}

func TestPlanner_ZeroConfidencePlacesEveryImage(t *testing.T) {
	zero := 0.0
	th := ThresholdsFromConfig(config.PlacementConfig{ConfidenceThreshold: &zero})
	require.Equal(t, 0.0, th.Confidence)

	section := models.Section{ID: "s1", Title: "Installation steps", Content: "run the installer then reboot"}
	pl, ok := NewPlanner(th, testLogger()).PlanImage(img("u", "kitten sleeping", models.ImportanceLow), []models.Section{section})
	require.True(t, ok)
	assert.Equal(t, "s1", pl.SectionID)
	assert.Equal(t, models.PositionBottom, pl.Position)
	assert.Equal(t, 0.0, pl.Confidence)
}

func TestPlanner_TiesKeepEarlierSection(t *testing.T) {
	sections := []models.Section{
		{ID: "first", Title: "Deploy pipeline"},
		{ID: "second", Title: "Deploy pipeline"},
	}
	pl, ok := NewPlanner(DefaultThresholds(), testLogger()).PlanImage(img("u", "deploy pipeline", models.ImportanceLow), sections)
	require.True(t, ok)
	assert.Equal(t, "first", pl.SectionID)
}

func TestPlanner_PicksBestAndRoutesUnplaced(t *testing.T) {
	sections := []models.Section{
		{ID: "install", Title: "Install", Content: "download the binary"},
		{ID: "config", Title: "Configure", Content: "edit settings file"},
	}
	images := []models.ImageMetadata{
		img("a", "settings file", models.ImportanceLow),
		img("b", "kitten photo", models.ImportanceLow),
		img("c", "binary download", models.ImportanceLow),
		img("d", "edit blah blah", models.ImportanceLow),
	}

	placements, unplaced := NewPlanner(DefaultThresholds(), testLogger()).Plan(images, sections)
	require.Len(t, placements, 3)
	assert.Equal(t, "config", placements[0].SectionID)
	assert.Equal(t, models.PositionTop, placements[0].Position)
	assert.Equal(t, "install", placements[1].SectionID)
	assert.Equal(t, "config", placements[2].SectionID)
	assert.Equal(t, models.PositionMiddle, placements[2].Position)

	require.Len(t, unplaced, 1)
	assert.Equal(t, "b", unplaced[0].URL)
}

func TestPlanner_NoSections(t *testing.T) {
	_, ok := NewPlanner(DefaultThresholds(), testLogger()).PlanImage(img("u", "architecture diagram", models.ImportanceHigh), nil)
	assert.False(t, ok)
}

func TestComposer_InsertionOrder(t *testing.T) {
	section := models.Section{ID: "s", Title: "S", Blocks: []models.ContentBlock{para("p0"), para("p1"), para("p2"), para("p3")}}
	original := section.Clone()

	placements := []models.Placement{
		{Image: img("bottom", "", models.ImportanceLow), SectionID: "s", Position: models.PositionBottom, Confidence: 0.25},
		{Image: img("mid-low", "", models.ImportanceLow), SectionID: "s", Position: models.PositionMiddle, Confidence: 0.4},
		{Image: img("top-low", "", models.ImportanceLow), SectionID: "s", Position: models.PositionTop, Confidence: 0.7},
		{Image: img("mid-high", "", models.ImportanceLow), SectionID: "s", Position: models.PositionMiddle, Confidence: 0.5},
		{Image: img("top-high", "", models.ImportanceLow), SectionID: "s", Position: models.PositionTop, Confidence: 0.9},
	}

	res := NewComposer("", testLogger()).Compose([]models.Section{section}, placements, nil)
	require.Len(t, res.Sections, 1)

	// tops: top-high prepended, then top-low prepended above it
	// middles: mid-high at 6/2=3, then mid-low at 7/2=3
	// bottom appended last
	assert.Equal(t, []string{
		"top-low", "top-high", "paragraph:p0", "mid-low", "mid-high", "paragraph:p1", "paragraph:p2", "paragraph:p3", "bottom",
	}, blockURLs(res.Sections[0].Blocks))

	assert.Equal(t, original, section, "input section must not be modified")
	assert.Equal(t, 5, res.Stats.TotalImages)
	assert.Equal(t, 5, res.Stats.PlacedImages)
	assert.Equal(t, 0, res.Stats.UnplacedImages)
	assert.InDelta(t, 0.55, res.Stats.AverageConfidence, 1e-9)
}

func TestComposer_Appendix(t *testing.T) {
	c := NewComposer("", testLogger())
	c.newID = func() string { return "appendix-id" }

	unplaced := []models.ImageMetadata{img("x", "x", models.ImportanceLow), img("y", "y", models.ImportanceLow)}
	orphan := models.Placement{Image: img("z", "z", models.ImportanceLow), SectionID: "missing", Position: models.PositionTop, Confidence: 0.9}

	res := c.Compose([]models.Section{{ID: "s", Title: "S"}}, []models.Placement{orphan}, unplaced)
	require.Len(t, res.Sections, 2)

	appendix := res.Sections[1]
	assert.Equal(t, "appendix-id", appendix.ID)
	assert.Equal(t, "Screenshots", appendix.Title)
	require.Len(t, appendix.Blocks, 7)
	assert.Equal(t, models.BlockParagraph, appendix.Blocks[0].Type)
	assert.Equal(t, "x", appendix.Blocks[1].Image.URL)
	assert.Equal(t, models.BlockSpacer, appendix.Blocks[2].Type)
	assert.Equal(t, "y", appendix.Blocks[3].Image.URL)
	assert.Equal(t, "z", appendix.Blocks[5].Image.URL)
	assert.Equal(t, models.BlockSpacer, appendix.Blocks[6].Type)

	assert.Equal(t, 3, res.Stats.TotalImages)
	assert.Equal(t, 0, res.Stats.PlacedImages)
	assert.Equal(t, 3, res.Stats.UnplacedImages)
	assert.Equal(t, 0.0, res.Stats.AverageConfidence)
}

func TestComposeImagesIntoDocumentation_NoSections(t *testing.T) {
	images := []models.ImageMetadata{
		img("a", "architecture diagram", models.ImportanceHigh),
		img("b", "dashboard screenshot", models.ImportanceHigh),
	}
	res := ComposeImagesIntoDocumentation(nil, images, testLogger())

	require.Len(t, res.Sections, 1)
	assert.Equal(t, "Screenshots", res.Sections[0].Title)
	assert.NotEmpty(t, res.Sections[0].ID)
	assert.Equal(t, models.PlacementStats{TotalImages: 2, UnplacedImages: 2}, res.Stats)
}

func TestComposeImagesIntoDocumentation_NoImages(t *testing.T) {
	sections := []models.Section{{ID: "s", Title: "S", Blocks: []models.ContentBlock{para("p")}}}
	res := ComposeImagesIntoDocumentation(sections, nil, testLogger())
	assert.Equal(t, sections, res.Sections)
	assert.Equal(t, models.PlacementStats{}, res.Stats)
}

func TestPlacer_SkipsInvalidAndRepeatedImages(t *testing.T) {
	sections := []models.Section{{ID: "arch", Title: "Architecture Overview", Content: "system architecture diagram"}}
	good := img("https://example.com/a.png", "architecture diagram screenshot", models.ImportanceHigh)
	invalid := good
	invalid.URL = "https://example.com/broken.png"
	invalid.IsValid = false

	res := NewPlacer(config.PlacementConfig{}, testLogger()).Place(sections, []models.ImageMetadata{good, invalid, good})
	assert.Equal(t, 1, res.Stats.TotalImages)
	assert.Equal(t, 1, res.Stats.PlacedImages)
	assert.Equal(t, 1.0, res.Stats.AverageConfidence)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, []string{"https://example.com/a.png"}, blockURLs(res.Sections[0].Blocks))
}
