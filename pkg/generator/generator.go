package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/ci-breakage-dashboard/pkg/analytics"
	"github.com/your-org/ci-breakage-dashboard/pkg/charts"
	"github.com/your-org/ci-breakage-dashboard/pkg/client"
	"github.com/your-org/ci-breakage-dashboard/pkg/config"
	"github.com/your-org/ci-breakage-dashboard/pkg/format"
	"github.com/your-org/ci-breakage-dashboard/pkg/logger"
	"github.com/your-org/ci-breakage-dashboard/pkg/models"
	"github.com/your-org/ci-breakage-dashboard/pkg/renderer"
	"github.com/your-org/ci-breakage-dashboard/pkg/table"
	"github.com/your-org/ci-breakage-dashboard/pkg/themes"
)

// EditBase is the path prefix of the dashboard's mutation endpoints
const EditBase = "/breakages"

// longestBreakages is how many entries the stats ranking keeps
const longestBreakages = 5

// Panel ids that are not table or chart ids
const (
	PanelModeList = "failure-mode-list"
)

// Generator builds dashboard pages from the analytics API and writes
// static snapshots of them
type Generator struct {
	config    *config.Config
	client    *client.Client
	renderer  *renderer.Renderer
	themes    *themes.Manager
	formatter *format.Formatter
	location  *time.Location
	panels    *panelSet
	static    bool
	now       func() time.Time
}

// panelSet holds the latest status of every panel, keyed by view. Only
// status lives here; each page build keeps the data it fetched
type panelSet struct {
	mu     sync.Mutex
	panels map[string]*Panel
}

// NewGenerator creates a new dashboard generator
func NewGenerator(cfg *config.Config, api *client.Client, r *renderer.Renderer) (*Generator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid time zone: %w", err)
	}

	f := format.NewFormatter(cfg.CommitURLPrefix, loc)
	f.BuildURLPrefix = cfg.BuildURLPrefix
	f.AppBaseURL = cfg.LinkBase()

	return &Generator{
		config:    cfg,
		client:    api,
		renderer:  r,
		themes:    themes.NewManager(cfg),
		formatter: f,
		location:  loc,
		panels:    &panelSet{panels: make(map[string]*Panel)},
		now:       time.Now,
	}, nil
}

// snapshot returns a generator producing read-only pages with file links
// It shares panels with g so generations stay monotonic
func (g *Generator) snapshot() *Generator {
	f := *g.formatter
	f.StaticLinks = true
	sg := *g
	sg.formatter = &f
	sg.static = true
	return &sg
}

// panel returns the status panel of one view. A view is a page kind plus
// its pattern id, so loads of different patterns never share a panel
func (g *Generator) panel(page *renderer.Page, id, title string) *Panel {
	g.panels.mu.Lock()
	defer g.panels.mu.Unlock()
	key := string(page.Kind) + "/" + page.PatternID + "/" + id
	p, ok := g.panels.panels[key]
	if !ok {
		p = newPanel(id, title)
		g.panels.panels[key] = p
	}
	return p
}

// Panels reports the state of every panel loaded so far
func (g *Generator) Panels() []PanelStatus {
	g.panels.mu.Lock()
	keys := make([]string, 0, len(g.panels.panels))
	for k := range g.panels.panels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]PanelStatus, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.panels.panels[k].Status())
	}
	g.panels.mu.Unlock()
	return out
}

func (g *Generator) newPage(kind renderer.PageKind, title string) *renderer.Page {
	page := &renderer.Page{
		Kind:        kind,
		Title:       title,
		Theme:       g.themes.Current(),
		GeneratedAt: g.now().In(g.location).Format("2006-01-02 15:04:05 MST"),
		Live:        !g.static,
	}
	if page.Live {
		page.EditBase = EditBase
	}
	return page
}

// sized applies the configured table height to tables using the default
func (g *Generator) sized(tables ...*table.Table) []*table.Table {
	for _, t := range tables {
		if t.Height == table.DefaultHeight && g.config.TableHeight != "" {
			t.Height = g.config.TableHeight
		}
	}
	return tables
}

// task fetches one panel. The returned apply installs the result on the
// page that asked for it
type task struct {
	panel string
	title string
	fetch func(ctx context.Context) (apply func(), err error)
}

func (g *Generator) limit() int {
	if g.config.MaxConcurrentGen > 0 {
		return g.config.MaxConcurrentGen
	}
	return 1
}

func (g *Generator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.config.RequestTimeout)
}

// loadPanels runs the tasks concurrently. A failing panel never stops the
// others; it ends in the error state and leaves a notice on the page
// Every load fills its own page. When an older load of the same view
// finishes after a newer one began, only its status report is dropped
func (g *Generator) loadPanels(ctx context.Context, page *renderer.Page, tasks []task) {
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.limit())

	var mu sync.Mutex
	notices := make([][]Notice, len(tasks))

	for i, t := range tasks {
		grp.Go(func() error {
			p := g.panel(page, t.panel, t.title)
			gen := p.Begin()

			fctx, cancel := g.withTimeout(gctx)
			defer cancel()

			apply, err := t.fetch(fctx)
			if !p.Finish(gen, err) {
				logger.Debugf("Newer %s load in progress, not reporting generation %d", t.panel, gen)
			}
			if err != nil {
				logger.WithFields(logrus.Fields{
					"page":  page.Kind,
					"panel": t.panel,
					"kind":  client.KindOf(err),
				}).Warnf("Panel failed: %v", err)
				notices[i] = append(notices[i], NoticeFor(t.title, err))
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if apply != nil {
				apply()
			}
			return nil
		})
	}
	_ = grp.Wait()

	for _, ns := range notices {
		page.Notices = append(page.Notices, ns...)
	}
}

// tableTask loads a table into a scratch copy and installs the rows
func (g *Generator) tableTask(t *table.Table) task {
	return task{
		panel: t.ID,
		title: t.Title,
		fetch: func(ctx context.Context) (func(), error) {
			scratch := *t
			if err := scratch.Load(ctx, g.client); err != nil {
				return nil, err
			}
			return func() { t.SetRows(scratch.Rows) }, nil
		},
	}
}

// modeLookup loads the failure mode list. On failure every mode renders as
// unknown and the page carries a notice
func (g *Generator) modeLookup(ctx context.Context, page *renderer.Page) *analytics.ModeLookup {
	var modes []models.FailureMode
	g.loadPanels(ctx, page, []task{{
		panel: PanelModeList,
		title: "Failure mode list",
		fetch: func(ctx context.Context) (func(), error) {
			m, err := g.client.FailureModes(ctx)
			if err != nil {
				return nil, err
			}
			return func() { modes = m }, nil
		},
	}})
	return analytics.NewModeLookup(modes)
}

// CodeBreakages builds the annotated breakages page
func (g *Generator) CodeBreakages(ctx context.Context) *renderer.Page {
	page := g.newPage(renderer.PageCodeBreakages, "Code breakages")

	lookup := g.modeLookup(ctx, page)
	page.ModeGroups = analytics.SelectorGroups(lookup)
	engine := analytics.NewEngine(lookup)

	annotated := table.AnnotatedBreakages(lookup, g.formatter)
	authors := table.AuthorStats()
	detected := table.DetectedBreakages(g.formatter)
	leftover := table.LeftoverBreakages()
	page.Tables = g.sized(annotated, authors, detected, leftover)
	page.Charts = []*charts.Chart{charts.WeeklyImpact(nil), charts.FailureModesPie(nil)}

	g.loadPanels(ctx, page, []task{
		{
			panel: annotated.ID,
			title: annotated.Title,
			fetch: func(ctx context.Context) (func(), error) {
				rows, err := g.client.AnnotatedBreakages(ctx)
				if err != nil {
					return nil, err
				}
				return func() {
					annotated.SetRows(table.Box(rows))
					page.Stats = engine.Analyze(rows, longestBreakages)
				}, nil
			},
		},
		g.tableTask(authors),
		g.tableTask(detected),
		g.tableTask(leftover),
		{
			panel: charts.IDWeeklyImpact,
			title: "Downstream impact by week",
			fetch: func(ctx context.Context) (func(), error) {
				rows, err := g.client.WeeklyImpact(ctx, g.config.ImpactWeeks)
				if err != nil {
					return nil, err
				}
				return func() { page.Charts[0] = charts.WeeklyImpact(rows) }, nil
			},
		},
		{
			panel: charts.IDFailureModes,
			title: "Failure modes",
			fetch: func(ctx context.Context) (func(), error) {
				rows, err := g.client.FailureModeCounts(ctx)
				if err != nil {
					return nil, err
				}
				return func() { page.Charts[1] = charts.FailureModesPie(rows) }, nil
			},
		},
	})
	return page
}

// Index builds the overview page: the triage funnel, step failures and the
// pattern list
func (g *Generator) Index(ctx context.Context) *renderer.Page {
	page := g.newPage(renderer.PageIndex, "CI failure overview")

	patterns := table.Patterns(nil, g.formatter)
	page.Tables = g.sized(patterns)
	page.Charts = []*charts.Chart{charts.SummarySunburst(models.Summary{}), charts.StepFailuresPie(nil)}

	g.loadPanels(ctx, page, []task{
		{
			panel: charts.IDSummarySunburst,
			title: "Failure causes",
			fetch: func(ctx context.Context) (func(), error) {
				summary, err := g.client.Summary(ctx)
				if err != nil {
					return nil, err
				}
				return func() {
					page.Charts[0] = charts.SummarySunburst(*summary)
					if err := summary.Validate(); err != nil {
						page.AddNotice(Notice{
							Level:   renderer.NoticeWarning,
							Panel:   "Failure causes",
							Message: "Summary counts are inconsistent: " + err.Error(),
						})
					}
				}, nil
			},
		},
		{
			panel: charts.IDStepFailures,
			title: "Failures by step name",
			fetch: func(ctx context.Context) (func(), error) {
				rows, err := g.client.StepFailures(ctx)
				if err != nil {
					return nil, err
				}
				return func() { page.Charts[1] = charts.StepFailuresPie(rows) }, nil
			},
		},
		g.tableTask(patterns),
	})
	return page
}

// PatternDetails builds the page for one log pattern
func (g *Generator) PatternDetails(ctx context.Context, patternID string) (*renderer.Page, error) {
	id, err := models.ParseID(patternID)
	if err != nil {
		return nil, fmt.Errorf("pattern_id: %w", err)
	}
	idStr := strconv.FormatInt(id, 10)

	page := g.newPage(renderer.PagePatternDetails, "Pattern details")
	page.PatternID = idStr

	patterns := table.Patterns(&idStr, g.formatter)
	matches := table.PatternMatches(idStr, g.formatter)
	page.Tables = g.sized(patterns, matches)

	g.loadPanels(ctx, page, []task{g.tableTask(patterns), g.tableTask(matches)})
	return page, nil
}

// Page builds the page of the given kind
func (g *Generator) Page(ctx context.Context, kind renderer.PageKind, patternID string) (*renderer.Page, error) {
	switch kind {
	case renderer.PageIndex:
		return g.Index(ctx), nil
	case renderer.PageCodeBreakages:
		return g.CodeBreakages(ctx), nil
	case renderer.PagePatternDetails:
		return g.PatternDetails(ctx, patternID)
	}
	return nil, fmt.Errorf("unknown page %q", kind)
}

// Generate writes a static snapshot of every page into outputDir
func (g *Generator) Generate(ctx context.Context, outputDir string) error {
	startTime := time.Now()
	logger.Info("Starting dashboard snapshot generation...")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	sg := g.snapshot()

	logger.Info("Loading overview...")
	index := sg.Index(ctx)
	logger.Info("Loading code breakages...")
	breakages := sg.CodeBreakages(ctx)

	pages := []*renderer.Page{index, breakages}
	var mu sync.Mutex

	ids := patternIDs(index)
	if len(ids) > 0 {
		logger.Infof("Loading %d pattern pages...", len(ids))
		grp, gctx := errgroup.WithContext(ctx)
		grp.SetLimit(g.limit())
		for _, id := range ids {
			grp.Go(func() error {
				page, err := sg.PatternDetails(gctx, id)
				if err != nil {
					return err
				}
				mu.Lock()
				pages = append(pages, page)
				mu.Unlock()
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return fmt.Errorf("failed to build pattern pages: %w", err)
		}
	}

	logger.Info("Rendering HTML pages...")
	failed := 0
	for _, page := range pages {
		failed += len(page.Notices)
		path := filepath.Join(outputDir, page.Kind.FileName(page.PatternID))
		if err := g.renderer.RenderToFile(page, path); err != nil {
			return fmt.Errorf("failed to render %s: %w", path, err)
		}
	}

	logger.Info("Copying assets...")
	if err := g.themes.CopyAssets(outputDir); err != nil {
		return fmt.Errorf("failed to copy assets: %w", err)
	}

	if failed > 0 {
		logger.Warnf("%d notices recorded while loading panels; see the pages for details", failed)
	}
	logger.Infof("✓ Dashboard generated successfully in %v", time.Since(startTime))
	logger.Infof("Open: file://%s/index.html", outputDir)
	return nil
}

// patternIDs lists the ids of the patterns shown on the overview page
func patternIDs(index *renderer.Page) []string {
	t, ok := index.Table(table.IDPatterns)
	if !ok {
		return nil
	}
	var ids []string
	for _, row := range t.Rows {
		if p, ok := row.(*models.PatternRecord); ok && p != nil {
			ids = append(ids, strconv.FormatInt(p.ID, 10))
		}
	}
	return ids
}
