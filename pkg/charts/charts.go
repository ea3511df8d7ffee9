package charts

import (
	"strings"
	"time"

	"github.com/your-org/ci-breakage-dashboard/pkg/analytics"
	"github.com/your-org/ci-breakage-dashboard/pkg/models"
)

// Container ids, also used as DOM ids
const (
	IDWeeklyImpact    = "container-downstream-impact-by-week"
	IDFailureModes    = "container-failure-modes"
	IDStepFailures    = "container-step-failures"
	IDSummarySunburst = "container-visited-fraction"
)

// Chart is a Highcharts options object
type Chart struct {
	ID          string         `json:"-"`
	Colors      []string       `json:"colors,omitempty"`
	Chart       ChartOptions   `json:"chart"`
	Title       Text           `json:"title"`
	Subtitle    *Text          `json:"subtitle,omitempty"`
	XAxis       *Axis          `json:"xAxis,omitempty"`
	YAxis       []Axis         `json:"yAxis,omitempty"`
	Tooltip     *Tooltip       `json:"tooltip,omitempty"`
	PlotOptions map[string]any `json:"plotOptions,omitempty"`
	Credits     Credits        `json:"credits"`
	Series      []Series       `json:"series"`

	// transparentCenter keeps the sunburst root uncolored
	transparentCenter bool
}

// ChartOptions is the "chart" block
type ChartOptions struct {
	Type                string  `json:"type,omitempty"`
	Height              string  `json:"height,omitempty"`
	BackgroundColor     string  `json:"backgroundColor,omitempty"`
	PlotBackgroundColor *string `json:"plotBackgroundColor"`
	PlotBorderWidth     *int    `json:"plotBorderWidth"`
	PlotShadow          bool    `json:"plotShadow"`
	Style               Style   `json:"style,omitempty"`
}

// Style holds CSS properties
type Style struct {
	FontFamily    string `json:"fontFamily,omitempty"`
	Color         string `json:"color,omitempty"`
	PointerEvents string `json:"pointerEvents,omitempty"`
}

// Text is a title or subtitle
type Text struct {
	Text string `json:"text"`
}

// Axis describes one axis
type Axis struct {
	Type                 string            `json:"type,omitempty"`
	Title                Text              `json:"title"`
	DateTimeLabelFormats map[string]string `json:"dateTimeLabelFormats,omitempty"`
}

// Tooltip is the tooltip block
type Tooltip struct {
	UseHTML      bool   `json:"useHTML,omitempty"`
	HeaderFormat string `json:"headerFormat,omitempty"`
	PointFormat  string `json:"pointFormat,omitempty"`
	Style        *Style `json:"style,omitempty"`
}

// Credits toggles the vendor credit line
type Credits struct {
	Enabled bool `json:"enabled"`
}

// Series is one data series. Data holds [x, y] pairs, pie slices or
// sunburst nodes depending on the chart
type Series struct {
	Type             string      `json:"type,omitempty"`
	Name             string      `json:"name,omitempty"`
	ColorByPoint     bool        `json:"colorByPoint,omitempty"`
	AllowDrillToNode bool        `json:"allowDrillToNode,omitempty"`
	Cursor           string      `json:"cursor,omitempty"`
	DataLabels       *DataLabels `json:"dataLabels,omitempty"`
	Levels           []Level     `json:"levels,omitempty"`
	Data             any         `json:"data"`
}

// DataLabels configures point labels
type DataLabels struct {
	Enabled *bool        `json:"enabled,omitempty"`
	Format  string       `json:"format,omitempty"`
	Filter  *LabelFilter `json:"filter,omitempty"`
	Style   *Style       `json:"style,omitempty"`
}

// LabelFilter hides labels that do not fit
type LabelFilter struct {
	Property string  `json:"property"`
	Operator string  `json:"operator"`
	Value    float64 `json:"value"`
}

// Level configures one sunburst ring
type Level struct {
	Level           int   `json:"level"`
	LevelIsConstant *bool `json:"levelIsConstant,omitempty"`
	ColorByPoint    bool  `json:"colorByPoint,omitempty"`
}

// Point is an [x, y] pair
type Point [2]float64

// Theme is the fixed look applied to every chart
type Theme struct {
	Colors          []string
	FontFamily      string
	TextColor       string
	BackgroundColor string
}

// ApplyTheme sets colors and fonts from the theme
func (c *Chart) ApplyTheme(t Theme) {
	colors := append([]string(nil), t.Colors...)
	if c.transparentCenter {
		colors = append([]string{"transparent"}, colors...)
	}
	c.Colors = colors
	c.Chart.BackgroundColor = t.BackgroundColor
	c.Chart.Style.FontFamily = t.FontFamily
	for i := range c.Series {
		if dl := c.Series[i].DataLabels; dl != nil && dl.Style != nil {
			dl.Style.Color = t.TextColor
		}
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// WeeklyImpact plots commits broken by upstream breakages per week. Points
// with an unparseable week are skipped
func WeeklyImpact(points []models.WeeklyImpact) *Chart {
	data := make([]Point, 0, len(points))
	for _, p := range points {
		week, ok := parseWeek(p.Week)
		if !ok {
			continue
		}
		data = append(data, Point{float64(week.UnixMilli()), float64(p.Impact.DownstreamBrokenCommitCount)})
	}

	return &Chart{
		ID:       IDWeeklyImpact,
		Chart:    ChartOptions{Type: "line"},
		Title:    Text{Text: "Downstream collateral by Week"},
		Subtitle: &Text{Text: "Showing only full weeks, starting on labeled day"},
		XAxis: &Axis{
			Type:                 "datetime",
			Title:                Text{Text: "Date"},
			DateTimeLabelFormats: map[string]string{"month": "%e. %b", "year": "%b"},
		},
		YAxis: []Axis{{Title: Text{Text: "Broken downstream commits"}}},
		Tooltip: &Tooltip{
			UseHTML: true,
			Style:   &Style{PointerEvents: "auto"},
		},
		PlotOptions: map[string]any{
			"line": map[string]any{"marker": map[string]any{"enabled": true}},
		},
		Series: []Series{{Name: "Commits broken by upstream", Data: data}},
	}
}

func parseWeek(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func pie(id, title, series string, rows []models.NamedCount) *Chart {
	if rows == nil {
		rows = []models.NamedCount{}
	}
	return &Chart{
		ID:    id,
		Chart: ChartOptions{Type: "pie"},
		Title: Text{Text: title},
		Tooltip: &Tooltip{
			PointFormat: "{series.name}: <b>{point.percentage:.1f}%</b>",
		},
		PlotOptions: map[string]any{
			"pie": map[string]any{
				"allowPointSelect": true,
				"cursor":           "pointer",
			},
		},
		Series: []Series{{
			Name:         series,
			ColorByPoint: true,
			DataLabels: &DataLabels{
				Enabled: boolPtr(true),
				Format:  "<b>{point.name}</b>: {point.percentage:.1f} %",
				Style:   &Style{Color: "black"},
			},
			Data: rows,
		}},
	}
}

// FailureModesPie shows the deterministic failure mode distribution on master
func FailureModesPie(rows []models.NamedCount) *Chart {
	return pie(IDFailureModes, "Failure modes", "Failure modes", rows)
}

// StepFailuresPie shows failures by build step name
func StepFailuresPie(rows []models.NamedCount) *Chart {
	return pie(IDStepFailures, "Failures by step name", "Steps", rows)
}

// SummarySunburst draws the triage funnel as a sunburst
func SummarySunburst(summary models.Summary) *Chart {
	return &Chart{
		ID:    IDSummarySunburst,
		Chart: ChartOptions{Height: "100%"},
		Title: Text{Text: "Failure causes"},
		Tooltip: &Tooltip{
			HeaderFormat: "",
			PointFormat:  "<b>{point.value}</b> in <b>{point.name}</b>",
		},
		Series: []Series{{
			Type:             "sunburst",
			AllowDrillToNode: true,
			Cursor:           "pointer",
			DataLabels: &DataLabels{
				Format: "{point.name}",
				Filter: &LabelFilter{Property: "innerArcLength", Operator: ">", Value: 16},
			},
			Levels: []Level{
				{Level: 1, LevelIsConstant: boolPtr(false)},
				{Level: 2, ColorByPoint: true},
				{Level: 3, ColorByPoint: true},
				{Level: 4, ColorByPoint: true},
			},
			Data: analytics.SunburstNodes(summary),
		}},
		transparentCenter: true,
	}
}
